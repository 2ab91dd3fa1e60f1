// Package main is the entry point for the outbreak API server.
//
// It loads the configuration, assembles the engine over the configured store,
// builds the HTTP server with the core chassis (middleware, routing, health
// checks) and serves until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"outbreakwatch/internal/api/handlers"
	"outbreakwatch/internal/app"
	"outbreakwatch/internal/auth"
	"outbreakwatch/internal/config"
	"outbreakwatch/internal/core"
	"outbreakwatch/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.DefaultSecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("outbreak API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("assembling engine: %w", err)
	}
	if cfg.IsLocal() && cfg.Store.Backend == config.BackendPostgres {
		if err := engine.Migrate(ctx); err != nil {
			_ = engine.Close()
			return fmt.Errorf("applying local schema: %w", err)
		}
	}

	srv, err := newServer(cfg, engine, logger)
	if err != nil {
		_ = engine.Close()
		return err
	}

	return runHTTPServer(srv, cfg, logger)
}

// newServer wires the engine into the HTTP chassis and mounts all routes.
func newServer(cfg *config.Config, engine *app.App, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	if cfg.AuthEnabled() {
		authenticator, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   cfg.Auth.JWTSecret.Unmask(),
			Issuer:   cfg.Auth.JWTIssuer,
			Audience: cfg.Auth.JWTAudience,
		}, types.RealClock{})
		if err != nil {
			return nil, fmt.Errorf("creating authenticator: %w", err)
		}
		srv.Authenticator = authenticator
	} else {
		logger.Warn("bearer authentication disabled; all requests run as the local system actor")
	}

	srv.RateLimitStore = core.NewMemoryRateLimitStore(types.RealClock{})
	if engine.Metrics != nil {
		srv.Metrics = engine.Metrics
	}
	srv.HealthProbes = append(srv.HealthProbes, engine.Probes...)
	srv.OnShutdown(engine.Close)

	outbreakHandler := handlers.NewOutbreakHandler(engine.Risk, srv.Validator, logger)
	alertHandler := handlers.NewAlertHandler(engine.Alerts, srv.Validator, srv.RequireOperator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/outbreak", outbreakHandler.RegisterRoutes)
		r.Route("/alerts", alertHandler.RegisterRoutes)
	})

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	var listenErr error
	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			listenErr = fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Flushes metrics and closes the store pool.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return errors.Join(listenErr, fmt.Errorf("server shutdown: %w", err))
	}
	if listenErr != nil {
		return listenErr
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

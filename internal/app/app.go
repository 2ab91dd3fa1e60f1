// Package app assembles the outbreak engine from configuration. The API
// server and the operator CLI share it so both run against the same stores
// and collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"outbreakwatch/internal/config"
	"outbreakwatch/internal/core"
	"outbreakwatch/internal/db"
	"outbreakwatch/internal/docstore"
	"outbreakwatch/internal/external"
	"outbreakwatch/internal/outbreak"
	"outbreakwatch/internal/telemetry"
	"outbreakwatch/internal/types"
)

// Options adjusts how the application is assembled.
type Options struct {
	// Clock replaces the wall clock. The CLI uses it to replay a query.
	Clock types.Clock
	// DisableMetrics skips CloudWatch even when METRICS_ENABLED is set.
	DisableMetrics bool
}

// App holds the assembled engine and the resources it owns.
type App struct {
	Risk   *outbreak.Service
	Alerts *outbreak.AlertService
	// Records writes engine inputs to the active store.
	Records outbreak.RecordWriter

	// Metrics is nil when CloudWatch is disabled.
	Metrics *telemetry.CloudWatchMetrics
	Probes  []core.HealthProbe

	pool    *pgxpool.Pool
	closers []func() error
}

// Stores are the record source, record writer and alert store of one backend.
type Stores struct {
	Source outbreak.SignalSource
	Writer outbreak.RecordWriter
	Alerts outbreak.AlertAdminStore
	Ping   func(ctx context.Context) error
}

// Collaborators are the optional engine dependencies. Nil fields disable the
// corresponding feature.
type Collaborators struct {
	Generator outbreak.TextGenerator
	Publisher outbreak.AlertPublisher
	Metrics   outbreak.MetricsRecorder
}

// Build opens the configured store, creates the optional AWS and OpenAI
// clients and wires the engine. Close releases everything Build opened.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{}

	stores, err := a.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Records = stores.Writer
	a.Probes = append(a.Probes, core.ProbeFunc{ProbeName: "store", Fn: stores.Ping})

	var collab Collaborators

	gen, err := newGenerator(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if gen != nil {
		collab.Generator = gen
	}

	if cfg.AWS.AlertsQueue != "" || (cfg.Observability.MetricsEnabled && !opts.DisableMetrics) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		endpoint := cfg.AWS.EndpointURL

		if cfg.Observability.MetricsEnabled && !opts.DisableMetrics {
			cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
				if endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
			a.Metrics = telemetry.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, logger)
			a.closers = append(a.closers, a.Metrics.Close)
			collab.Metrics = a.Metrics
		}

		if cfg.AWS.AlertsQueue != "" {
			client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
				if endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
			var failures telemetry.PublishFailureRecorder
			if a.Metrics != nil {
				failures = a.Metrics
			}
			pub := telemetry.NewSQSAlertPublisher(client, cfg.AWS.AlertsQueue, failures, logger)
			collab.Publisher = pub
			a.Probes = append(a.Probes, core.ProbeFunc{ProbeName: "alerts_queue", Fn: pub.Ping})
		}
	}

	a.Risk, a.Alerts = NewEngine(cfg, stores, collab, opts.Clock, logger)

	logger.Info("outbreak engine assembled",
		"store", cfg.Store.Backend,
		"summaries", collab.Generator != nil,
		"alert_publishing", collab.Publisher != nil,
		"metrics", collab.Metrics != nil,
		"baseline", cfg.Engine.BaselineEnabled,
	)
	return a, nil
}

// NewEngine wires the risk query service and the alert administration
// service over stores.
func NewEngine(cfg *config.Config, stores Stores, collab Collaborators, clock types.Clock, logger *slog.Logger) (*outbreak.Service, *outbreak.AlertService) {
	if clock == nil {
		clock = types.RealClock{}
	}

	var baseline outbreak.BaselineSupplier
	if cfg.Engine.BaselineEnabled {
		baseline = outbreak.NewStaticBaseline()
	}

	risk := outbreak.NewService(outbreak.ServiceDeps{
		Source:    stores.Source,
		Alerts:    outbreak.NewAlertEmitter(stores.Alerts, collab.Publisher, collab.Metrics, logger),
		Summaries: outbreak.NewSummaryRequester(collab.Generator, cfg.AI.Timeout, collab.Metrics, logger),
		Baseline:  baseline,
		Clock:     clock,
		Metrics:   collab.Metrics,
		Logger:    logger,
	})
	return risk, outbreak.NewAlertService(stores.Alerts, clock, logger)
}

// newGenerator returns nil when no OpenAI key is configured. Deployed
// environments get an egress-restricted HTTP client.
func newGenerator(cfg *config.Config) (*external.OpenAIGenerator, error) {
	if !cfg.AI.OpenAIAPIKey.IsSet() {
		return nil, nil
	}
	httpClient := &http.Client{Timeout: cfg.AI.Timeout}
	if !cfg.IsLocal() {
		httpClient = external.NewRestrictedHTTPClient(cfg.AI.Timeout, nil)
	}
	gen, err := external.NewOpenAIGenerator(external.OpenAIConfig{
		APIKey:    cfg.AI.OpenAIAPIKey.Unmask(),
		Model:     cfg.AI.Model,
		BaseURL:   cfg.AI.BaseURL,
		MaxTokens: cfg.AI.MaxTokens,
		UserAgent: cfg.Service + "/" + cfg.Build.Version,
	}, httpClient)
	if err != nil {
		return nil, fmt.Errorf("creating text generator: %w", err)
	}
	return gen, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (Stores, error) {
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		client, err := docstore.NewClient(ctx, cfg.Store.FirestoreProjectID, cfg.Store.FirebaseCredentials.Unmask())
		if err != nil {
			return Stores{}, err
		}
		a.closers = append(a.closers, client.Close)
		signals := docstore.NewSignalStore(client)
		return Stores{
			Source: signals,
			Writer: signals,
			Alerts: docstore.NewAlertStore(client),
			Ping:   docstore.NewPinger(client).Ping,
		}, nil

	case config.BackendPostgres, "":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL.Unmask(), db.PoolOptions{
			MaxConns:          cfg.Store.MaxConns,
			MinConns:          cfg.Store.MinConns,
			MaxConnLifetime:   cfg.Store.MaxConnLifetime,
			HealthCheckPeriod: cfg.Store.HealthCheckPeriod,
		})
		if err != nil {
			return Stores{}, err
		}
		a.pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		signals := db.NewSignalRepository(pool)
		return Stores{
			Source: signals,
			Writer: signals,
			Alerts: db.NewAlertRepository(pool),
			Ping:   pool.Ping,
		}, nil

	default:
		return Stores{}, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// ErrMigrateUnsupported is returned by Migrate for backends without a schema.
var ErrMigrateUnsupported = errors.New("migrations apply to the postgres backend only")

// Migrate applies the PostgreSQL schema.
func (a *App) Migrate(ctx context.Context) error {
	if a.pool == nil {
		return ErrMigrateUnsupported
	}
	return db.Migrate(ctx, a.pool)
}

// Close releases resources in reverse order of acquisition. Metrics are
// flushed before the store closes.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

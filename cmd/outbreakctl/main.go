// Package main is outbreakctl, the operator CLI for the outbreak service.
//
// It runs against the same configuration and stores as the API server:
//
//	outbreakctl risk [--area K] [--no-summary] [--at RFC3339] [--json]
//	outbreakctl alerts list [--status ACTIVE|RESOLVED] [--area K]
//	outbreakctl alerts resolve <id> [--as NAME]
//	outbreakctl migrate
//	outbreakctl seed <fixture.json|-> [--rebase]
//	outbreakctl token --subject S [--role operator] [--ttl 24h]
//	outbreakctl bootstrap --env dev [--overwrite]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"outbreakwatch/internal/app"
	"outbreakwatch/internal/config"
	"outbreakwatch/internal/outbreak"
	"outbreakwatch/internal/types"
)

// riskQuerier is the part of the engine the risk command uses.
type riskQuerier interface {
	GetOutbreakRisk(ctx context.Context, opts outbreak.QueryOptions) (*types.RiskReport, error)
}

// alertAdmin is the part of the engine the alerts commands use.
type alertAdmin interface {
	List(ctx context.Context, filter types.AlertFilter) ([]types.Alert, error)
	Resolve(ctx context.Context, id string) (*types.Alert, error)
}

// engine is what openEngine hands to commands.
type engine struct {
	Risk    riskQuerier
	Alerts  alertAdmin
	Records outbreak.RecordWriter
	Migrate func(ctx context.Context) error
	Close   func() error
}

// cli carries the collaborators shared by every command. Tests replace the
// functions to run commands without stores or AWS.
type cli struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
	now    func() time.Time

	openEngine     func(ctx context.Context, clock types.Clock) (*engine, error)
	resolveSecrets func() error
	lookupEnv      func(key string) (string, bool)
	newSSM         func(ctx context.Context, region, endpoint string) (SSMClient, error)
}

func main() {
	c := newCLI(os.Stdout)
	if err := c.rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCLI(out io.Writer) *cli {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return &cli{
		in:             os.Stdin,
		out:            out,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
		openEngine:     openAppEngine(logger),
		resolveSecrets: func() error { return config.ResolveSecrets(config.DefaultSecretProvider()) },
		lookupEnv:      os.LookupEnv,
		newSSM:         newSSMClient,
	}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "outbreakctl",
		Short:         "Operate the outbreak risk service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.AddCommand(c.riskCmd())
	root.AddCommand(c.alertsCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.seedCmd())
	root.AddCommand(c.tokenCmd())
	root.AddCommand(c.bootstrapCmd())
	return root
}

// openAppEngine loads the configuration and assembles the engine the same
// way the API server does. CloudWatch is skipped for one-shot commands.
func openAppEngine(logger *slog.Logger) func(ctx context.Context, clock types.Clock) (*engine, error) {
	return func(ctx context.Context, clock types.Clock) (*engine, error) {
		cfg, err := config.LoadConfig(config.DefaultSecretProvider())
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}

		a, err := app.Build(ctx, cfg, logger, app.Options{Clock: clock, DisableMetrics: true})
		if err != nil {
			return nil, err
		}
		return &engine{
			Risk:    a.Risk,
			Alerts:  a.Alerts,
			Records: a.Records,
			Migrate: a.Migrate,
			Close:   a.Close,
		}, nil
	}
}

// withEngine opens the engine, runs fn and closes it.
func (c *cli) withEngine(ctx context.Context, clock types.Clock, fn func(*engine) error) error {
	e, err := c.openEngine(ctx, clock)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			c.logger.Warn("closing engine", "error", cerr)
		}
	}()
	return fn(e)
}

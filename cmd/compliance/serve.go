package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"skuldbot/compliance/pkg/cli"
	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence/query"
	"skuldbot/compliance/pkg/evidence/retention"
	"skuldbot/compliance/pkg/server"
	"skuldbot/compliance/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the compliance HTTP API",
	Long: `Start the compliance HTTP API.

Packs are loaded once at startup. With packs.watch or packs.git.poll enabled,
new pack versions are registered while the server runs; existing versions
never change.

Examples:
  # Start with default config
  compliance serve

  # Start with a config file and a different address
  compliance serve --config /etc/compliance/config.yaml --listen 0.0.0.0:8090

  # Load packs and open storage, then exit
  compliance serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and packs without serving")
}

func applyServeFlags(cfg *config.Config) {
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cfg)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.loadPacks(ctx)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	for _, rejected := range report.Rejected {
		a.logger.Warn("pack rejected", "error", rejected)
	}

	if cfg.Evidence.Enabled {
		if err := a.openEvidence(); err != nil {
			return cli.NewCommandError("serve", err)
		}
	}
	if err := a.startEngine(); err != nil {
		return err
	}

	checker := health.New(0)
	checker.RegisterCheck("packs", health.PackRegistryCheck(a.registry.Count))
	if a.store != nil {
		checker.RegisterCheck("evidence", health.PingCheck("evidence", a.store))
	}

	deps := server.Deps{
		Evaluator:   a.service,
		Packs:       a.registry,
		Evidence:    a.store,
		QueryLimits: query.LimitsFromConfig(&cfg.Evidence.Query),
		Health:      checker,
		Tracer:      a.tracer,
		Version:     Version,
		Commit:      GitCommit,
		BuildTime:   BuildDate,
	}
	if cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = a.collector.Handler()
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}

	srv, err := server.New(&cfg.Server, deps, a.log.Component("server"))
	if err != nil {
		return cli.NewConfigError("server", err.Error())
	}

	if serveFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d packs registered, %d rejected, listen address %s\n",
			len(report.Registered), len(report.Rejected), cfg.Server.ListenAddress)
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.store != nil && cfg.Evidence.Retention.PruneSchedule != "" {
		pruner := retention.NewPruner(a.store, retention.FromConfig(&cfg.Evidence.Retention), a.log.Component("evidence-retention"), a.collector)
		if err := pruner.Start(ctx); err != nil {
			return cli.NewConfigError("evidence.retention.prune_schedule", err.Error())
		}
		defer pruner.Stop()
	}

	if a.packs.Watchable() {
		go func() {
			if err := a.packs.Watch(ctx); err != nil {
				a.logger.Error("pack watch stopped", "error", err)
				a.collector.RecordPackReload("watch", err)
			}
		}()
	}

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return cli.NewCommandError("serve", err)
	}
	return nil
}

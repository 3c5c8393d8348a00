package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"skuldbot/compliance/pkg/cli"
	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/evidence/recorder"
	"skuldbot/compliance/pkg/evidence/storage"
	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/engine"
	"skuldbot/compliance/pkg/policy/manager"
	"skuldbot/compliance/pkg/policy/service"
	"skuldbot/compliance/pkg/telemetry/logging"
	"skuldbot/compliance/pkg/telemetry/metrics"
	"skuldbot/compliance/pkg/telemetry/tracing"
)

// app holds the components shared by the commands. Fields a command does
// not ask for stay nil.
type app struct {
	cfg       *config.Config
	log       *logging.Logger
	logger    *slog.Logger
	collector *metrics.Collector
	tracer    *tracing.Tracer

	registry *manager.Registry
	packs    *manager.Manager

	pool     *engine.Pool
	store    evidence.Storage
	recorder *recorder.Recorder
	service  *service.Service

	closers []func() error
}

// loadConfig reads --config (plus .env and COMPLIANCE_* overrides) into
// the process configuration.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	cfg := config.GetConfig()
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newApp configures logging, the lattice, metrics and tracing.
func newApp(cfg *config.Config) (*app, error) {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	logCfg.Writer = os.Stderr
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	log.SetDefault()

	if levels := cfg.Lattice.ClassificationLevels(); len(levels) > 0 {
		if err := lattice.Init(levels...); err != nil && !errors.Is(err, lattice.ErrAlreadyInitialized) {
			return nil, cli.NewConfigError("lattice.levels", err.Error())
		}
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		logger:    log.Slog(),
		collector: metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry()),
		tracer:    tracer,
	}
	a.closers = append(a.closers, func() error { return tracer.Shutdown(context.Background()) })
	return a, nil
}

// loadPacks registers the configured pack sources and tenant bindings.
func (a *app) loadPacks(ctx context.Context) (*manager.LoadReport, error) {
	var registry *manager.Registry
	registry = manager.NewRegistry(
		manager.WithLogger(a.log.Component("pack-registry")),
		manager.WithRegisterHook(func(_ pack.Ref, err error) {
			a.collector.RecordPackRegistration(err)
			a.collector.SetPacksRegistered(registry.Count())
		}),
	)

	packs, err := manager.NewManager(a.cfg, registry, a.logger)
	if err != nil {
		return nil, cli.NewConfigError("packs", err.Error())
	}
	report, err := packs.Load(ctx)
	if err != nil {
		a.collector.RecordPackReload("startup", err)
		return nil, err
	}
	a.collector.RecordPackReload("startup", nil)

	a.registry = registry
	a.packs = packs
	return report, nil
}

// openStore opens the configured evidence store.
func (a *app) openStore() error {
	store, err := storage.New(&a.cfg.Evidence, a.log.Component("evidence-storage"))
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	return nil
}

// openEvidence opens the evidence store and its recorder.
func (a *app) openEvidence() error {
	if err := a.openStore(); err != nil {
		return err
	}
	a.recorder = recorder.NewRecorder(a.store, recorder.FromConfig(&a.cfg.Evidence), a.log.Component("evidence-recorder"), a.collector)
	a.closers = append(a.closers, a.recorder.Close)
	return nil
}

// startEngine builds the evaluator pool and the evaluation service. Packs
// must be loaded first; evidence is recorded when openEvidence ran.
func (a *app) startEngine() error {
	engCfg := engine.FromConfig(&a.cfg.Engine)
	ev, err := engine.NewEvaluator(engCfg, a.log.Component("engine"), engine.WithTracer(a.tracer.Tracer()))
	if err != nil {
		return cli.NewConfigError("engine", err.Error())
	}
	a.pool = engine.NewPool(ev, engCfg, a.log.Component("engine-pool"))
	a.closers = append(a.closers, func() error { a.pool.Close(); return nil })

	opts := []service.Option{
		service.WithMetrics(a.collector),
		service.WithTracer(a.tracer.Tracer()),
	}
	if a.recorder != nil {
		opts = append(opts, service.WithRecorder(a.recorder))
	}
	a.service = service.New(a.registry, a.pool, a.log.Component("service"), opts...)
	return nil
}

// Close releases components in reverse order of creation. The recorder
// drains before its store closes.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

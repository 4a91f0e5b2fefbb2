package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/compliance"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/export"
	"mercator-hq/callisto/pkg/feedback"
	"mercator-hq/callisto/pkg/insights"
	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
	"mercator-hq/callisto/pkg/usage/storage"
)

// app holds the services every command builds from configuration.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Collector
	store      usage.Storage
	policies   *policy.Store
	evaluator  *compliance.Evaluator
	generator  *insights.Generator
	dispatcher *ledger.Dispatcher
	ledger     *ledger.Ledger
	insights   *insights.Service
	feedback   *feedback.Service
	export     *export.Service
}

// loadConfig reads the configuration file. A missing default config.yaml
// falls back to built-in defaults; an explicitly named file must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	config.SetConfig(cfg)
	return cfg, nil
}

// newApp wires storage and services. Commands other than run log to stderr
// at warn level unless --verbose is set, so their stdout stays parseable.
func newApp(cfg *config.Config, serving bool) (*app, error) {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging, os.Stderr)
	if !serving && !verbose {
		logCfg.Level = "warn"
	} else if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.Setup(logCfg)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	var collector *metrics.Collector
	if serving {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	store, err := storage.New(cfg.Storage.Backend, &storage.SQLiteConfig{
		Path:         cfg.Storage.SQLite.Path,
		Driver:       cfg.Storage.SQLite.Driver,
		MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
		MaxIdleConns: cfg.Storage.SQLite.MaxIdleConns,
		WALMode:      cfg.Storage.SQLite.WALMode,
		BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	loc := cfg.Ledger.Location()
	policies := policy.NewStore(store, logger).WithMetrics(collector)

	evaluator := compliance.NewEvaluator(store, store, policies, compliance.Options{
		Location:     loc,
		HistoryLimit: cfg.Compliance.HistoryLimit,
		Metrics:      collector,
		Logger:       logger,
	})

	generator := insights.NewGenerator(store, store, policies, evaluator, insights.Options{
		PatternThreshold:    cfg.Insights.PatternThreshold,
		PatternMinEvents:    cfg.Insights.PatternMinEvents,
		StreakDays:          cfg.Insights.StreakDays,
		WarningDays:         cfg.Insights.WarningDays,
		WarningLookbackDays: cfg.Insights.WarningLookbackDays,
		Milestones:          cfg.Insights.Milestones,
		TTL:                 cfg.Insights.TTL,
		Metrics:             collector,
		Logger:              logger,
	})

	var dispatcher *ledger.Dispatcher
	if serving {
		dispatcher = ledger.NewDispatcher(generator, ledger.DispatcherConfig{
			Async:     cfg.Insights.Async,
			Workers:   cfg.Insights.Workers,
			QueueSize: cfg.Insights.QueueSize,
		}, collector, logger)
	}

	l := ledger.New(store, policies, dispatcher, ledger.Options{
		Location:             loc,
		MaxClockSkew:         cfg.Ledger.MaxClockSkew,
		MaxDescriptionLength: cfg.Ledger.MaxDescriptionLength,
		DefaultHistoryLimit:  cfg.Ledger.DefaultHistoryLimit,
		Metrics:              collector,
		Logger:               logger,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    collector,
		store:      store,
		policies:   policies,
		evaluator:  evaluator,
		generator:  generator,
		dispatcher: dispatcher,
		ledger:     l,
		insights:   insights.NewService(store, logger),
		feedback:   feedback.NewService(store, logger),
		export:     export.NewService(store, logger),
	}, nil
}

// policySource returns the configured policies file source, nil when no
// file is configured.
func (a *app) policySource() *policy.Source {
	if a.cfg.Policy.FilePath == "" {
		return nil
	}
	return policy.NewSource(a.cfg.Policy.FilePath, a.policies, a.cfg.Policy.Actor, a.logger)
}

// Close drains the regeneration workers and closes storage.
func (a *app) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	return a.store.Close()
}

// withApp loads configuration, builds the app for a one-shot command and
// closes it when fn returns.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("failed to close storage", "error", cerr)
		}
	}()
	return fn(a)
}

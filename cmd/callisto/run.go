package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/compliance"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/retention"
	"mercator-hq/callisto/pkg/scheduler"
	"mercator-hq/callisto/pkg/server"
	"mercator-hq/callisto/pkg/server/handlers"
	"mercator-hq/callisto/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Callisto API server",
	Long: `Start the Callisto API server with the specified configuration.

The server records usage events, serves compliance scores and insights, and
runs the scheduled compliance sweep and insight retention jobs.

Examples:
  # Start with default config
  callisto run

  # Start with custom config
  callisto run --config /etc/callisto/config.yaml

  # Override listen address
  callisto run --listen 0.0.0.0:8080

  # Validate config without starting server
  callisto run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Error("failed to close storage", "error", cerr)
		}
	}()
	logger := a.logger

	ctx, stop := cli.SignalContext()
	defer stop()

	printBanner(cmd, cfg)

	stopWatcher, err := startPolicySource(ctx, a)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer stopWatcher()

	checker := health.New(0, Version)
	checker.RegisterCheck("storage", health.StorageCheck(a.store))
	checker.RegisterCheck("insight_queue", health.QueueCheck(a.dispatcher.Depth, a.dispatcher.Capacity()))

	sched := scheduler.New(cfg.Ledger.Location(), logger)
	if cfg.Compliance.SweepEnabled {
		sweeper := compliance.NewSweeper(a.evaluator, a.store, a.metrics, logger)
		err := sched.Add(ctx, "compliance_sweep", cfg.Compliance.SweepSchedule, func(ctx context.Context) error {
			_, err := sweeper.Run(ctx)
			return err
		})
		if err != nil {
			return cli.NewConfigError("compliance.sweep_schedule", err.Error())
		}
	}
	if cfg.Retention.Enabled {
		pruner := retention.NewPruner(a.store, retention.Config{DismissedDays: cfg.Retention.DismissedDays}, a.metrics, logger)
		if err := sched.Add(ctx, "insight_retention", cfg.Retention.Schedule, pruner.Run); err != nil {
			return cli.NewConfigError("retention.schedule", err.Error())
		}
	}
	sched.Start(ctx)
	defer sched.Stop()
	for _, name := range sched.Jobs() {
		if next := sched.NextRun(name); next != nil {
			logger.Debug("scheduled job registered", "job", name, "next_run", next)
		}
	}

	api := handlers.NewAPI(handlers.Deps{
		Ledger:    a.ledger,
		Evaluator: a.evaluator,
		Policies:  a.policies,
		Insights:  a.insights,
		Feedback:  a.feedback,
		Export:    a.export,
		Logger:    logger,
		MaxBody:   cfg.Server.MaxBodyBytes,
		Location:  cfg.Ledger.Location(),
	})

	opts := server.Options{
		API:    api,
		Health: checker,
		Logger: logger,
	}
	if cfg.Telemetry.Metrics.Enabled {
		opts.Metrics = a.metrics
		opts.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	srv := server.New(&cfg.Server, opts)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		return nil
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}
		<-errChan
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
		return nil
	}
}

// startPolicySource synchronizes the policies file and, when configured,
// watches it for changes. A missing file is logged and skipped so the
// server can start with policies already in storage. The returned function
// stops the watcher.
func startPolicySource(ctx context.Context, a *app) (func(), error) {
	noop := func() {}
	src := a.policySource()
	if src == nil {
		return noop, nil
	}

	if a.cfg.Policy.SyncOnStart {
		result, err := src.Sync(ctx)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			a.logger.Warn("policies file not found, using stored policies", "path", src.Path())
		case err != nil:
			return noop, fmt.Errorf("failed to synchronize policies: %w", err)
		default:
			a.logger.Info("policies synchronized",
				"path", src.Path(),
				"created", result.Created,
				"transitioned", result.Transitioned,
			)
		}
	}

	if !a.cfg.Policy.Watch {
		return noop, nil
	}
	watcher, err := policy.NewWatcher(src, a.cfg.Policy.WatchDebounce, a.logger)
	if err != nil {
		return noop, fmt.Errorf("failed to create policy watcher: %w", err)
	}
	go func() {
		if err := watcher.Watch(ctx); err != nil {
			a.logger.Error("policy watcher stopped", "error", err)
		}
	}()
	return func() {
		if err := watcher.Stop(); err != nil {
			a.logger.Warn("failed to stop policy watcher", "error", err)
		}
	}, nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Callisto v%s\n", Version)
	fmt.Fprintln(out, "✓ Configuration loaded")
	fmt.Fprintf(out, "✓ Storage: %s\n", cfg.Storage.Backend)
	if cfg.Insights.Async {
		fmt.Fprintf(out, "✓ Insight workers: %d\n", cfg.Insights.Workers)
	}
}

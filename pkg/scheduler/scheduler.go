// Package scheduler runs named background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/callisto/pkg/telemetry/logging"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on standard five-field cron expressions, e.g.
//   - "0 3 * * *"    daily at 3 AM
//   - "0 2 * * 1"    Mondays at 2 AM
//   - "*/15 * * * *" every 15 minutes
//
// A job that is still running when its next run is due is skipped.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID
	logger  *slog.Logger
	running bool
}

// New creates a scheduler evaluating schedules in loc (UTC when nil).
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
	}
}

// Add registers job under name. An empty schedule disables the job and is
// not an error.
func (s *Scheduler) Add(ctx context.Context, name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == "" {
		s.logger.Info("job schedule not configured, skipping", "job", name)
		return nil
	}
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q already scheduled", name)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q for job %q: %w", schedule, name, err)
	}

	id, err := s.cron.AddFunc(schedule, func() { s.run(ctx, name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}
	s.entries[name] = id
	s.logger.Info("job scheduled", "job", name, "schedule", schedule)
	return nil
}

// Start begins running scheduled jobs. The scheduler stops when ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "jobs", len(s.entries))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs returns the names of scheduled jobs, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextRun returns the next run of the named job, or nil when the job is
// unknown or the scheduler is not running.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// RunNow executes the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	return s.run(ctx, name, job)
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	ctx = logging.WithJob(ctx, name)
	start := time.Now()
	s.logger.InfoContext(ctx, "starting scheduled job")

	if err := job(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled job failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
	s.logger.InfoContext(ctx, "scheduled job completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

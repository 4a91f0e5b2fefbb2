package compliance

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
)

// SweepResult summarizes one sweep.
type SweepResult struct {
	Users      int
	Stored     int
	Failures   int
	Violations int
	Duration   time.Duration
}

// Sweeper stores a week-window snapshot for every recently active user.
type Sweeper struct {
	evaluator *Evaluator
	events    usage.EventRepository
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(evaluator *Evaluator, events usage.EventRepository, collector *metrics.Collector, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		evaluator: evaluator,
		events:    events,
		metrics:   collector,
		logger:    logger.With("component", "compliance.sweep"),
	}
}

// Run evaluates every user with events in the last seven days. A failure
// for one user is logged and does not stop the sweep.
func (s *Sweeper) Run(ctx context.Context) (*SweepResult, error) {
	ctx = logging.WithJob(ctx, "compliance_sweep")
	start := time.Now()
	now := s.evaluator.now()

	users, err := s.events.ActiveUsers(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Users: len(users)}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		snap, err := s.evaluator.Current(ctx, userID, usage.WindowWeek, true)
		if err != nil {
			result.Failures++
			s.logger.ErrorContext(ctx, "sweep evaluation failed", "user_id", userID, "error", err)
			continue
		}
		result.Stored++
		if snap.Level == usage.LevelViolation {
			result.Violations++
		}
	}

	result.Duration = time.Since(start)
	s.metrics.RecordSweep(result.Users, result.Failures)
	s.logger.InfoContext(ctx, "compliance sweep completed",
		"users", result.Users,
		"stored", result.Stored,
		"failures", result.Failures,
		"violations", result.Violations,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

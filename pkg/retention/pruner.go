package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// DismissedDays is how long dismissed insights are kept.
	// 0 keeps dismissed insights forever.
	DismissedDays int
}

// Pruner enforces retention on stored insights.
type Pruner struct {
	repo    usage.InsightRepository
	config  Config
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(repo usage.InsightRepository, config Config, collector *metrics.Collector, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		repo:    repo,
		config:  config,
		metrics: collector,
		logger:  logger.With("component", "retention"),
		now:     time.Now,
	}
}

// Prune deletes expired insights and dismissed insights past the retention
// period. It returns the number of insights deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	now := p.now().UTC()
	prune := usage.InsightPrune{
		ExpiredBefore:    now,
		KeepAchievements: true,
	}
	if p.config.DismissedDays > 0 {
		prune.DismissedBefore = now.AddDate(0, 0, -p.config.DismissedDays)
	}

	deleted, err := p.repo.PruneInsights(ctx, prune)
	if err != nil {
		return 0, fmt.Errorf("prune insights: %w", err)
	}
	p.metrics.RecordInsightsPruned(deleted)

	if deleted == 0 {
		p.logger.DebugContext(ctx, "no insights pruned", "dismissed_days", p.config.DismissedDays)
	} else {
		p.logger.InfoContext(ctx, "insight pruning completed",
			"deleted_count", deleted,
			"dismissed_days", p.config.DismissedDays,
		)
	}
	return deleted, nil
}

// Run is Prune shaped as a scheduler job.
func (p *Pruner) Run(ctx context.Context) error {
	_, err := p.Prune(logging.WithJob(ctx, "insight_retention"))
	return err
}

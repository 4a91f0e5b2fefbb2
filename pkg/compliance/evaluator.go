package compliance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
)

// PolicyResolver finds the policy in force at an instant.
// *policy.Store implements it.
type PolicyResolver interface {
	ActivePolicy(ctx context.Context, at time.Time) (*usage.Policy, error)
}

// Options configures an Evaluator. Zero values are usable.
type Options struct {
	// Location defines calendar days for the today window. Default: UTC.
	Location *time.Location

	// HistoryLimit caps History when the caller passes 0. Default: 50.
	HistoryLimit int

	Metrics *metrics.Collector
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Evaluator computes compliance snapshots.
type Evaluator struct {
	events       usage.EventRepository
	snapshots    usage.SnapshotRepository
	policies     PolicyResolver
	loc          *time.Location
	historyLimit int
	metrics      *metrics.Collector
	logger       *slog.Logger
	now          func() time.Time
}

// NewEvaluator creates an evaluator.
func NewEvaluator(events usage.EventRepository, snapshots usage.SnapshotRepository, policies PolicyResolver, opts Options) *Evaluator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Evaluator{
		events:       events,
		snapshots:    snapshots,
		policies:     policies,
		loc:          opts.Location,
		historyLimit: opts.HistoryLimit,
		metrics:      opts.Metrics,
		logger:       opts.Logger.With("component", "compliance.evaluator"),
		now:          opts.Clock,
	}
}

// Location returns the time zone used for calendar days.
func (e *Evaluator) Location() *time.Location {
	return e.loc
}

// Evaluate scores the user's events in window against policy. A nil policy
// yields a compliant snapshot with score 100. The snapshot is not stored.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, policy *usage.Policy, window usage.Window) (*usage.Snapshot, error) {
	if err := window.Validate(); err != nil {
		return nil, &usage.ValidationError{Entity: "window", Reason: err.Error()}
	}

	start := time.Now()
	now := e.now().UTC()

	events, err := e.events.EventsForUser(ctx, userID, usage.EventFilter{Window: window})
	if err != nil {
		return nil, err
	}

	threshold := Threshold(policy, window, now)
	score := Score(len(events), threshold)

	snap := &usage.Snapshot{
		ID:               uuid.New().String(),
		UserID:           userID,
		WindowKind:       window.Kind,
		PeriodStart:      periodStart(window, events, now),
		PeriodEnd:        periodEnd(window, now),
		EventCount:       len(events),
		Threshold:        threshold,
		Score:            score,
		Level:            usage.LevelForScore(score),
		ViolationDetails: []string{},
		CreatedAt:        now,
	}
	if policy != nil {
		snap.PolicyID = usage.OptionalID(policy.ID)
		snap.ViolationDetails = CheckRules(policy.Rules, events, e.logger)
	}

	e.metrics.RecordEvaluation(string(window.Kind), string(snap.Level), time.Since(start))
	e.logger.DebugContext(ctx, "compliance evaluated",
		"user_id", userID,
		"window", window.Kind,
		"events", snap.EventCount,
		"threshold", threshold,
		"score", score,
		"level", snap.Level,
	)
	return snap, nil
}

// EvaluateAndStore evaluates and persists the snapshot.
func (e *Evaluator) EvaluateAndStore(ctx context.Context, userID string, policy *usage.Policy, window usage.Window) (*usage.Snapshot, error) {
	snap, err := e.Evaluate(ctx, userID, policy, window)
	if err != nil {
		return nil, err
	}
	if err := e.snapshots.InsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Current evaluates a standard window ending now against the policy active
// now. When store is true the snapshot is persisted.
func (e *Evaluator) Current(ctx context.Context, userID string, kind usage.WindowKind, store bool) (*usage.Snapshot, error) {
	if kind == usage.WindowRange {
		return nil, &usage.ValidationError{Entity: "window", Reason: "range windows need explicit bounds"}
	}
	now := e.now()
	policy, err := e.policies.ActivePolicy(ctx, now)
	if err != nil {
		return nil, err
	}
	window := usage.NewWindow(kind, now, e.loc)
	if store {
		return e.EvaluateAndStore(ctx, userID, policy, window)
	}
	return e.Evaluate(ctx, userID, policy, window)
}

// Latest returns the most recent stored snapshot, or nil when there is none.
func (e *Evaluator) Latest(ctx context.Context, userID string) (*usage.Snapshot, error) {
	return e.snapshots.LatestSnapshot(ctx, userID)
}

// History returns stored snapshots newest first. limit 0 uses the
// configured default.
func (e *Evaluator) History(ctx context.Context, userID string, limit int) ([]*usage.Snapshot, error) {
	if limit <= 0 {
		limit = e.historyLimit
	}
	return e.snapshots.Snapshots(ctx, userID, limit)
}

// periodStart is the window start, or for unbounded windows the oldest
// event (events are newest first), or now when there are none.
func periodStart(w usage.Window, events []*usage.Event, now time.Time) time.Time {
	if !w.Start.IsZero() {
		return w.Start.UTC()
	}
	if len(events) > 0 {
		return events[len(events)-1].Timestamp.UTC()
	}
	return now
}

func periodEnd(w usage.Window, now time.Time) time.Time {
	if !w.End.IsZero() {
		return w.End.UTC()
	}
	return now
}

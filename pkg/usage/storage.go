package usage

import (
	"context"
	"time"
)

// EventFilter narrows an event query. Zero fields do not filter.
type EventFilter struct {
	Window    Window
	Tool      Tool
	UsageType UsageType

	// Limit caps the number of events returned; 0 means no limit.
	Limit int
}

// InsightState selects insights by their read/dismissed flags.
type InsightState string

const (
	// InsightsActive selects insights that are neither read nor dismissed.
	InsightsActive InsightState = "active"
	// InsightsVisible selects insights that are not dismissed.
	InsightsVisible InsightState = "visible"
	// InsightsAll selects every insight.
	InsightsAll InsightState = "all"
)

// InsightFilter narrows an insight query.
type InsightFilter struct {
	State InsightState
	Kind  InsightKind
	Limit int
}

// InsightPrune selects insights for deletion by the retention job.
type InsightPrune struct {
	// DismissedBefore deletes dismissed insights dismissed before this time.
	DismissedBefore time.Time
	// ExpiredBefore deletes insights whose ExpiresAt is before this time.
	ExpiredBefore time.Time
	// KeepAchievements exempts achievements, whose templates record that
	// they were already awarded.
	KeepAchievements bool
}

// PolicyRepository persists policies and their revision history.
type PolicyRepository interface {
	// CreatePolicy stores a new policy. The ID must be set.
	CreatePolicy(ctx context.Context, policy *Policy) error

	// TransitionPolicy moves a policy from rev.FromStatus to rev.ToStatus and
	// appends the revision. Returns ErrConflict if the stored status is not
	// rev.FromStatus.
	TransitionPolicy(ctx context.Context, rev *PolicyRevision) error

	// GetPolicy returns a policy by id or a NotFoundError.
	GetPolicy(ctx context.Context, id string) (*Policy, error)

	// ListPolicies returns every policy ordered by effective_from descending.
	ListPolicies(ctx context.Context) ([]*Policy, error)

	// PolicyRevisions returns the revisions of a policy, oldest first.
	PolicyRevisions(ctx context.Context, policyID string) ([]*PolicyRevision, error)
}

// EventRepository persists usage events.
type EventRepository interface {
	// InsertEvent stores a new event. Events are never updated.
	InsertEvent(ctx context.Context, event *Event) error

	// EventsForUser returns matching events ordered by timestamp descending.
	EventsForUser(ctx context.Context, userID string, filter EventFilter) ([]*Event, error)

	// CountEvents counts a user's events inside the window.
	CountEvents(ctx context.Context, userID string, window Window) (int, error)

	// ActiveUsers returns users with at least one event at or after since.
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

// SnapshotRepository persists compliance snapshots. Snapshots are append-only.
type SnapshotRepository interface {
	InsertSnapshot(ctx context.Context, snapshot *Snapshot) error

	// LatestSnapshot returns the most recent snapshot, or nil when the user
	// has none.
	LatestSnapshot(ctx context.Context, userID string) (*Snapshot, error)

	// Snapshots returns snapshots newest first; limit 0 means all.
	Snapshots(ctx context.Context, userID string, limit int) ([]*Snapshot, error)
}

// InsightRepository persists insights.
type InsightRepository interface {
	// InsertInsight stores a new insight. Returns ErrConflict if an active
	// insight with the same user, kind and template exists.
	InsertInsight(ctx context.Context, insight *Insight) error

	// GetInsight returns an insight by id or a NotFoundError.
	GetInsight(ctx context.Context, id string) (*Insight, error)

	// InsightsForUser returns insights ordered by priority descending, then
	// created_at descending.
	InsightsForUser(ctx context.Context, userID string, filter InsightFilter) ([]*Insight, error)

	// UpdateInsightState persists the read and dismissed flags of an insight.
	UpdateInsightState(ctx context.Context, insight *Insight) error

	// PruneInsights deletes insights selected by prune and returns the count.
	PruneInsights(ctx context.Context, prune InsightPrune) (int64, error)
}

// FeedbackRepository persists user feedback.
type FeedbackRepository interface {
	InsertFeedback(ctx context.Context, fb *Feedback) error
	GetFeedback(ctx context.Context, id string) (*Feedback, error)
	UpdateFeedback(ctx context.Context, fb *Feedback) error

	// FeedbackForUser returns feedback newest first; limit 0 means all.
	FeedbackForUser(ctx context.Context, userID string, limit int) ([]*Feedback, error)
}

// Storage is implemented by every backend.
type Storage interface {
	PolicyRepository
	EventRepository
	SnapshotRepository
	InsightRepository
	FeedbackRepository

	// DeleteUserData removes every event, snapshot, insight and feedback
	// entry owned by the user.
	DeleteUserData(ctx context.Context, userID string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

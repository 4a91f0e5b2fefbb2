package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/usage"
)

// MemoryStorage implements usage.Storage with in-memory maps.
// It is intended for tests and single-process demos; nothing is persisted.
type MemoryStorage struct {
	mu        sync.RWMutex
	policies  map[string]*usage.Policy
	revisions map[string][]*usage.PolicyRevision
	events    map[string]*usage.Event
	snapshots []*usage.Snapshot
	insights  map[string]*usage.Insight
	feedback  map[string]*usage.Feedback
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		policies:  make(map[string]*usage.Policy),
		revisions: make(map[string][]*usage.PolicyRevision),
		events:    make(map[string]*usage.Event),
		insights:  make(map[string]*usage.Insight),
		feedback:  make(map[string]*usage.Feedback),
	}
}

// CreatePolicy stores a copy of the policy.
func (s *MemoryStorage) CreatePolicy(ctx context.Context, policy *usage.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.policies[policy.ID]; exists {
		return usage.NewStorageError("memory", "create_policy", usage.ErrConflict)
	}
	s.policies[policy.ID] = copyPolicy(policy)
	return nil
}

// TransitionPolicy changes the status of a policy and appends the revision.
func (s *MemoryStorage) TransitionPolicy(ctx context.Context, rev *usage.PolicyRevision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[rev.PolicyID]
	if !ok {
		return usage.NewNotFound("policy", rev.PolicyID)
	}
	if p.Status != rev.FromStatus {
		return usage.NewStorageError("memory", "transition_policy", usage.ErrConflict)
	}
	p.Status = rev.ToStatus
	p.UpdatedAt = rev.ChangedAt
	revCopy := *rev
	s.revisions[rev.PolicyID] = append(s.revisions[rev.PolicyID], &revCopy)
	return nil
}

// GetPolicy returns a copy of the policy.
func (s *MemoryStorage) GetPolicy(ctx context.Context, id string) (*usage.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, usage.NewNotFound("policy", id)
	}
	return copyPolicy(p), nil
}

// ListPolicies returns all policies, newest effective_from first.
func (s *MemoryStorage) ListPolicies(ctx context.Context) ([]*usage.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*usage.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, copyPolicy(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EffectiveFrom.Equal(out[j].EffectiveFrom) {
			return out[i].EffectiveFrom.After(out[j].EffectiveFrom)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PolicyRevisions returns the revisions of a policy, oldest first.
func (s *MemoryStorage) PolicyRevisions(ctx context.Context, policyID string) ([]*usage.PolicyRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	revs := s.revisions[policyID]
	out := make([]*usage.PolicyRevision, len(revs))
	for i, r := range revs {
		c := *r
		out[i] = &c
	}
	return out, nil
}

// InsertEvent stores a copy of the event.
func (s *MemoryStorage) InsertEvent(ctx context.Context, event *usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID]; exists {
		return usage.NewStorageError("memory", "insert_event", usage.ErrConflict)
	}
	c := *event
	s.events[event.ID] = &c
	return nil
}

// EventsForUser returns matching events, newest first.
func (s *MemoryStorage) EventsForUser(ctx context.Context, userID string, filter usage.EventFilter) ([]*usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*usage.Event
	for _, e := range s.events {
		if !matchesEvent(e, userID, filter) {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sortEventsDesc(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountEvents counts a user's events inside the window.
func (s *MemoryStorage) CountEvents(ctx context.Context, userID string, window usage.Window) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.events {
		if e.UserID == userID && window.Contains(e.Timestamp) {
			count++
		}
	}
	return count, nil
}

// ActiveUsers returns users with events at or after since, sorted.
func (s *MemoryStorage) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range s.events {
		if !e.Timestamp.Before(since) {
			seen[e.UserID] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

// InsertSnapshot appends a snapshot.
func (s *MemoryStorage) InsertSnapshot(ctx context.Context, snapshot *usage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, copySnapshot(snapshot))
	return nil
}

// LatestSnapshot returns the newest snapshot of the user, or nil.
func (s *MemoryStorage) LatestSnapshot(ctx context.Context, userID string) (*usage.Snapshot, error) {
	snaps, err := s.Snapshots(ctx, userID, 1)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return snaps[0], nil
}

// Snapshots returns snapshots newest first.
func (s *MemoryStorage) Snapshots(ctx context.Context, userID string, limit int) ([]*usage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*usage.Snapshot
	// Walk backwards so equal timestamps keep insertion order, newest first.
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].UserID == userID {
			out = append(out, copySnapshot(s.snapshots[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InsertInsight stores an insight unless an active duplicate exists.
func (s *MemoryStorage) InsertInsight(ctx context.Context, insight *usage.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.insights {
		if existing.UserID == insight.UserID &&
			existing.Kind == insight.Kind &&
			existing.Template == insight.Template &&
			existing.Active() {
			return usage.NewStorageError("memory", "insert_insight", usage.ErrConflict)
		}
	}
	s.insights[insight.ID] = copyInsight(insight)
	return nil
}

// GetInsight returns a copy of an insight.
func (s *MemoryStorage) GetInsight(ctx context.Context, id string) (*usage.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.insights[id]
	if !ok {
		return nil, usage.NewNotFound("insight", id)
	}
	return copyInsight(in), nil
}

// InsightsForUser returns a user's insights, highest priority first.
func (s *MemoryStorage) InsightsForUser(ctx context.Context, userID string, filter usage.InsightFilter) ([]*usage.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*usage.Insight
	for _, in := range s.insights {
		if in.UserID != userID || !matchesInsight(in, filter) {
			continue
		}
		out = append(out, copyInsight(in))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateInsightState persists the read and dismissed flags.
func (s *MemoryStorage) UpdateInsightState(ctx context.Context, insight *usage.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.insights[insight.ID]
	if !ok {
		return usage.NewNotFound("insight", insight.ID)
	}
	in.Read = insight.Read
	in.Dismissed = insight.Dismissed
	in.ReadAt = copyTime(insight.ReadAt)
	in.DismissedAt = copyTime(insight.DismissedAt)
	return nil
}

// PruneInsights deletes dismissed and expired insights.
func (s *MemoryStorage) PruneInsights(ctx context.Context, prune usage.InsightPrune) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, in := range s.insights {
		if shouldPrune(in, prune) {
			delete(s.insights, id)
			deleted++
		}
	}
	return deleted, nil
}

// InsertFeedback stores a copy of the feedback entry.
func (s *MemoryStorage) InsertFeedback(ctx context.Context, fb *usage.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *fb
	c.ResolvedAt = copyTime(fb.ResolvedAt)
	s.feedback[fb.ID] = &c
	return nil
}

// GetFeedback returns a copy of a feedback entry.
func (s *MemoryStorage) GetFeedback(ctx context.Context, id string) (*usage.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fb, ok := s.feedback[id]
	if !ok {
		return nil, usage.NewNotFound("feedback", id)
	}
	c := *fb
	c.ResolvedAt = copyTime(fb.ResolvedAt)
	return &c, nil
}

// UpdateFeedback replaces a stored feedback entry.
func (s *MemoryStorage) UpdateFeedback(ctx context.Context, fb *usage.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.feedback[fb.ID]; !ok {
		return usage.NewNotFound("feedback", fb.ID)
	}
	c := *fb
	c.ResolvedAt = copyTime(fb.ResolvedAt)
	s.feedback[fb.ID] = &c
	return nil
}

// FeedbackForUser returns a user's feedback newest first.
func (s *MemoryStorage) FeedbackForUser(ctx context.Context, userID string, limit int) ([]*usage.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*usage.Feedback
	for _, fb := range s.feedback {
		if fb.UserID == userID {
			c := *fb
			c.ResolvedAt = copyTime(fb.ResolvedAt)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteUserData removes everything owned by the user.
func (s *MemoryStorage) DeleteUserData(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.events {
		if e.UserID == userID {
			delete(s.events, id)
		}
	}
	kept := s.snapshots[:0]
	for _, snap := range s.snapshots {
		if snap.UserID != userID {
			kept = append(kept, snap)
		}
	}
	s.snapshots = kept
	for id, in := range s.insights {
		if in.UserID == userID {
			delete(s.insights, id)
		}
	}
	for id, fb := range s.feedback {
		if fb.UserID == userID {
			delete(s.feedback, id)
		}
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func matchesEvent(e *usage.Event, userID string, filter usage.EventFilter) bool {
	if e.UserID != userID {
		return false
	}
	if !filter.Window.Contains(e.Timestamp) {
		return false
	}
	if filter.Tool != "" && e.Tool != filter.Tool {
		return false
	}
	if filter.UsageType != "" && e.UsageType != filter.UsageType {
		return false
	}
	return true
}

func matchesInsight(in *usage.Insight, filter usage.InsightFilter) bool {
	switch filter.State {
	case usage.InsightsActive:
		if !in.Active() {
			return false
		}
	case usage.InsightsVisible, "":
		if in.Dismissed {
			return false
		}
	}
	if filter.Kind != "" && in.Kind != filter.Kind {
		return false
	}
	return true
}

func shouldPrune(in *usage.Insight, prune usage.InsightPrune) bool {
	if prune.KeepAchievements && in.Kind == usage.InsightAchievement {
		return false
	}
	if !prune.DismissedBefore.IsZero() && in.Dismissed && in.DismissedAt != nil &&
		in.DismissedAt.Before(prune.DismissedBefore) {
		return true
	}
	if !prune.ExpiredBefore.IsZero() && in.ExpiresAt != nil &&
		in.ExpiresAt.Before(prune.ExpiredBefore) {
		return true
	}
	return false
}

func sortEventsDesc(events []*usage.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.After(events[j].Timestamp)
		}
		return events[i].ID > events[j].ID
	})
}

func copyPolicy(p *usage.Policy) *usage.Policy {
	c := *p
	c.EffectiveTo = copyTime(p.EffectiveTo)
	if p.Rules != nil {
		c.Rules = append(usage.RuleSet(nil), p.Rules...)
	}
	return &c
}

func copySnapshot(s *usage.Snapshot) *usage.Snapshot {
	c := *s
	c.ViolationDetails = append([]string{}, s.ViolationDetails...)
	return &c
}

func copyInsight(in *usage.Insight) *usage.Insight {
	c := *in
	c.RelatedEvents = append([]string{}, in.RelatedEvents...)
	if in.Data != nil {
		c.Data = make(map[string]any, len(in.Data))
		for k, v := range in.Data {
			c.Data[k] = v
		}
	}
	c.ExpiresAt = copyTime(in.ExpiresAt)
	c.ReadAt = copyTime(in.ReadAt)
	c.DismissedAt = copyTime(in.DismissedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

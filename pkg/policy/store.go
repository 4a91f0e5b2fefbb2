package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
)

// Store manages policies on top of a usage.PolicyRepository.
type Store struct {
	repo    usage.PolicyRepository
	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewStore creates a policy store.
func NewStore(repo usage.PolicyRepository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:   repo,
		logger: logger.With("component", "policy.store"),
		now:    time.Now,
	}
}

// WithClock replaces the clock used for timestamps. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithMetrics records active-policy resolutions on collector.
func (s *Store) WithMetrics(collector *metrics.Collector) *Store {
	s.metrics = collector
	return s
}

// Create validates and stores a new policy. The policy is stored as draft
// and then transitioned to the requested status, so the revision history
// records how it became active. ID and timestamps are filled in when unset.
func (s *Store) Create(ctx context.Context, p *usage.Policy) (*usage.Policy, error) {
	target := p.Status
	if target == "" {
		target = usage.PolicyDraft
	}

	if err := Validate(p); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stored := *p
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.Status = usage.PolicyDraft
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := s.repo.CreatePolicy(ctx, &stored); err != nil {
		return nil, err
	}

	s.logger.Info("policy created",
		"policy_id", stored.ID,
		"title", stored.Title,
		"version", stored.Version,
	)

	if target == usage.PolicyDraft {
		return &stored, nil
	}
	return s.Transition(ctx, stored.ID, target, stored.CreatedBy)
}

// Transition moves a policy to a new status and records the revision.
func (s *Store) Transition(ctx context.Context, id string, to usage.PolicyStatus, actor string) (*usage.Policy, error) {
	p, err := s.repo.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, usage.NewInvalidPolicy("status", fmt.Sprintf("unknown status %q", to))
	}
	if !p.Status.CanTransition(to) {
		return nil, usage.NewInvalidPolicy("status",
			fmt.Sprintf("cannot transition from %s to %s", p.Status, to))
	}

	rev := &usage.PolicyRevision{
		PolicyID:   id,
		FromStatus: p.Status,
		ToStatus:   to,
		ChangedBy:  actor,
		ChangedAt:  s.now().UTC(),
	}
	if err := s.repo.TransitionPolicy(ctx, rev); err != nil {
		return nil, err
	}

	s.logger.Info("policy status changed",
		"policy_id", id,
		"from", rev.FromStatus,
		"to", rev.ToStatus,
		"actor", actor,
	)

	p.Status = to
	p.UpdatedAt = rev.ChangedAt

	if to == usage.PolicyActive {
		s.warnOverlaps(ctx, p)
	}
	return p, nil
}

// warnOverlaps logs when an activated policy shares time with another
// active policy. Activation is still allowed.
func (s *Store) warnOverlaps(ctx context.Context, activated *usage.Policy) {
	policies, err := s.repo.ListPolicies(ctx)
	if err != nil {
		s.logger.Warn("failed to check policy overlap", "error", err)
		return
	}
	for _, other := range policies {
		if other.ID == activated.ID || other.Status != usage.PolicyActive {
			continue
		}
		if activated.Overlaps(other) {
			s.logger.Warn("active policies overlap",
				"error", usage.ErrPolicyResolutionAmbiguous,
				"policy_id", activated.ID,
				"overlaps_with", other.ID,
			)
		}
	}
}

// ActivePolicy returns the policy in force at the given instant, or nil when
// no active policy covers it.
func (s *Store) ActivePolicy(ctx context.Context, at time.Time) (*usage.Policy, error) {
	policies, err := s.repo.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []*usage.Policy
	for _, p := range policies {
		if p.ActiveAt(at) {
			candidates = append(candidates, p)
		}
	}

	switch len(candidates) {
	case 0:
		s.metrics.RecordPolicyResolution("none")
		return nil, nil
	case 1:
		s.metrics.RecordPolicyResolution("found")
		return candidates[0], nil
	}
	s.metrics.RecordPolicyResolution("ambiguous")

	sort.Slice(candidates, func(i, j int) bool {
		return newerPolicy(candidates[i], candidates[j])
	})

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	s.logger.Warn("policy resolution ambiguous",
		"error", usage.ErrPolicyResolutionAmbiguous,
		"at", at,
		"candidates", ids,
		"selected", candidates[0].ID,
	)
	return candidates[0], nil
}

// newerPolicy reports whether a takes precedence over b.
func newerPolicy(a, b *usage.Policy) bool {
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return a.EffectiveFrom.After(b.EffectiveFrom)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Get returns a policy by id.
func (s *Store) Get(ctx context.Context, id string) (*usage.Policy, error) {
	return s.repo.GetPolicy(ctx, id)
}

// List returns every policy, newest effective_from first.
func (s *Store) List(ctx context.Context) ([]*usage.Policy, error) {
	return s.repo.ListPolicies(ctx)
}

// Revisions returns the status history of a policy.
func (s *Store) Revisions(ctx context.Context, id string) ([]*usage.PolicyRevision, error) {
	if _, err := s.repo.GetPolicy(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.PolicyRevisions(ctx, id)
}

// FindByVersion returns the policy with the given title and version, or nil.
func (s *Store) FindByVersion(ctx context.Context, title, version string) (*usage.Policy, error) {
	policies, err := s.repo.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		if p.Title == title && p.Version == version {
			return p, nil
		}
	}
	return nil, nil
}

// Validate checks a policy before it is stored.
func Validate(p *usage.Policy) error {
	if p == nil {
		return usage.NewInvalidPolicy("", "policy is nil")
	}
	if p.Title == "" {
		return usage.NewInvalidPolicy("title", "must not be empty")
	}
	if p.Version == "" {
		return usage.NewInvalidPolicy("version", "must not be empty")
	}
	if p.Status != "" && !p.Status.Valid() {
		return usage.NewInvalidPolicy("status", fmt.Sprintf("unknown status %q", p.Status))
	}
	if p.MaxDailyUsage < 0 {
		return usage.NewInvalidPolicy("max_daily_usage", "must be >= 0")
	}
	if p.MaxWeeklyUsage < 0 {
		return usage.NewInvalidPolicy("max_weekly_usage", "must be >= 0")
	}
	if p.EffectiveFrom.IsZero() {
		return usage.NewInvalidPolicy("effective_from", "is required")
	}
	if p.EffectiveTo != nil && !p.EffectiveTo.After(p.EffectiveFrom) {
		return usage.NewInvalidPolicy("effective_to", "must be after effective_from")
	}
	if err := p.Rules.Validate(); err != nil {
		return usage.NewInvalidPolicy("rules", err.Error())
	}
	return nil
}

// IsInvalid reports whether err is a policy validation error.
func IsInvalid(err error) bool {
	var ve *usage.ValidationError
	return errors.As(err, &ve) && ve.Entity == "policy"
}

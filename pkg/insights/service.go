package insights

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/callisto/pkg/usage"
)

// Service exposes a user's insights and their read and dismissed state.
type Service struct {
	repo   usage.InsightRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an insight service.
func NewService(repo usage.InsightRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger.With("component", "insights.service"),
		now:    time.Now,
	}
}

// List returns the user's insights, highest priority first. An empty
// state selects active insights.
func (s *Service) List(ctx context.Context, userID string, filter usage.InsightFilter) ([]*usage.Insight, error) {
	switch filter.State {
	case "":
		filter.State = usage.InsightsActive
	case usage.InsightsActive, usage.InsightsVisible, usage.InsightsAll:
	default:
		return nil, &usage.ValidationError{Entity: "insight_filter", Field: "state", Reason: "unknown state " + string(filter.State)}
	}
	return s.repo.InsightsForUser(ctx, userID, filter)
}

// MarkRead marks an insight read. Only the owner may do this; marking an
// already read insight is a no-op.
func (s *Service) MarkRead(ctx context.Context, id, userID string) (*usage.Insight, error) {
	return s.mutate(ctx, id, userID, "mark_read", func(in *usage.Insight, now time.Time) bool {
		if in.Read {
			return false
		}
		in.Read = true
		in.ReadAt = &now
		return true
	})
}

// Dismiss hides an insight. Only the owner may do this; dismissing twice is
// a no-op.
func (s *Service) Dismiss(ctx context.Context, id, userID string) (*usage.Insight, error) {
	return s.mutate(ctx, id, userID, "dismiss", func(in *usage.Insight, now time.Time) bool {
		if in.Dismissed {
			return false
		}
		in.Dismissed = true
		in.DismissedAt = &now
		return true
	})
}

// MarkAllRead marks every active insight of the user read and returns how
// many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	active, err := s.repo.InsightsForUser(ctx, userID, usage.InsightFilter{State: usage.InsightsActive})
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	for i, in := range active {
		in.Read = true
		in.ReadAt = &now
		if err := s.repo.UpdateInsightState(ctx, in); err != nil {
			return i, err
		}
	}
	return len(active), nil
}

func (s *Service) mutate(ctx context.Context, id, userID, action string, apply func(*usage.Insight, time.Time) bool) (*usage.Insight, error) {
	in, err := s.repo.GetInsight(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.UserID != userID {
		s.logger.WarnContext(ctx, "insight mutation by non-owner rejected",
			"insight_id", id,
			"user_id", userID,
			"action", action,
		)
		return nil, &usage.AuthorizationError{
			UserID:     userID,
			Resource:   "insight",
			ResourceID: id,
			Action:     action,
		}
	}

	if !apply(in, s.now().UTC()) {
		return in, nil
	}
	if err := s.repo.UpdateInsightState(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

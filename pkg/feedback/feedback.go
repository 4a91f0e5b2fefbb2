// Package feedback records user reports about the service and their
// review by administrators.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/usage"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000

	// DefaultListLimit is used when ListForUser is called with limit 0.
	DefaultListLimit = 10
)

// Request is a feedback submission.
type Request struct {
	Kind        usage.FeedbackKind `json:"kind"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	URL         string             `json:"url"`
}

// Service manages feedback entries.
type Service struct {
	repo   usage.FeedbackRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a feedback service.
func NewService(repo usage.FeedbackRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger.With("component", "feedback"),
		now:    time.Now,
	}
}

// Submit validates and stores a new feedback entry with status new.
func (s *Service) Submit(ctx context.Context, userID string, req Request) (*usage.Feedback, error) {
	if err := validate(userID, &req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	fb := &usage.Feedback{
		ID:          uuid.New().String(),
		UserID:      userID,
		Kind:        req.Kind,
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		Status:      usage.FeedbackNew,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertFeedback(ctx, fb); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "feedback submitted",
		"feedback_id", fb.ID,
		"user_id", userID,
		"kind", fb.Kind,
	)
	return fb, nil
}

// ListForUser returns the user's feedback, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]*usage.Feedback, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.FeedbackForUser(ctx, userID, limit)
}

// Respond records an administrator's review. Moving to resolved or closed
// sets ResolvedAt; reopening clears it.
func (s *Service) Respond(ctx context.Context, id string, status usage.FeedbackStatus, response string) (*usage.Feedback, error) {
	if !status.Valid() {
		return nil, usage.NewInvalidFeedback("status", fmt.Sprintf("unknown status %q", status))
	}
	response = strings.TrimSpace(response)
	if utf8.RuneCountInString(response) > maxDescriptionLength {
		return nil, usage.NewInvalidFeedback("admin_response",
			fmt.Sprintf("longer than %d characters", maxDescriptionLength))
	}

	fb, err := s.repo.GetFeedback(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	previous := fb.Status
	fb.Status = status
	if response != "" {
		fb.AdminResponse = response
	}
	fb.UpdatedAt = now
	switch {
	case status.Terminal() && fb.ResolvedAt == nil:
		fb.ResolvedAt = &now
	case !status.Terminal():
		fb.ResolvedAt = nil
	}

	if err := s.repo.UpdateFeedback(ctx, fb); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "feedback updated",
		"feedback_id", id,
		"from", previous,
		"to", status,
	)
	return fb, nil
}

func validate(userID string, req *Request) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.URL = strings.TrimSpace(req.URL)

	switch {
	case strings.TrimSpace(userID) == "":
		return usage.NewInvalidFeedback("user_id", "is required")
	case !req.Kind.Valid():
		return usage.NewInvalidFeedback("kind", fmt.Sprintf("unknown kind %q", req.Kind))
	case req.Title == "":
		return usage.NewInvalidFeedback("title", "is required")
	case utf8.RuneCountInString(req.Title) > maxTitleLength:
		return usage.NewInvalidFeedback("title", fmt.Sprintf("longer than %d characters", maxTitleLength))
	case req.Description == "":
		return usage.NewInvalidFeedback("description", "is required")
	case utf8.RuneCountInString(req.Description) > maxDescriptionLength:
		return usage.NewInvalidFeedback("description", fmt.Sprintf("longer than %d characters", maxDescriptionLength))
	}

	if req.URL != "" {
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return usage.NewInvalidFeedback("url", "must be an absolute http or https URL")
		}
	}
	return nil
}

package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/usage"
)

// Document is a user's full data export.
type Document struct {
	UserID              string            `json:"user_id"`
	ExportedAt          time.Time         `json:"exported_at"`
	UsageEvents         []*usage.Event    `json:"usage_events"`
	ComplianceSnapshots []*usage.Snapshot `json:"compliance_snapshots"`
	Insights            []*usage.Insight  `json:"insights"`
	Feedback            []*usage.Feedback `json:"feedback"`
}

// ExportError reports a failed export write.
type ExportError struct {
	Format      string
	RecordCount int
	Cause       error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [format=%s, record_count=%d]: %v", e.Format, e.RecordCount, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new ExportError.
func NewExportError(format string, recordCount int, cause error) *ExportError {
	return &ExportError{Format: format, RecordCount: recordCount, Cause: cause}
}

// Service builds exports from a storage backend.
type Service struct {
	store  usage.Storage
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an export service.
func NewService(store usage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "export"),
		now:    time.Now,
	}
}

// Export collects every event, snapshot, insight and feedback entry the
// user owns. Empty collections are exported as empty lists.
func (s *Service) Export(ctx context.Context, userID string) (*Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &usage.ValidationError{Entity: "export", Field: "user_id", Reason: "is required"}
	}

	doc := &Document{
		UserID:     userID,
		ExportedAt: s.now().UTC(),
	}

	var err error
	if doc.UsageEvents, err = s.store.EventsForUser(ctx, userID, usage.EventFilter{}); err != nil {
		return nil, err
	}
	if doc.ComplianceSnapshots, err = s.store.Snapshots(ctx, userID, 0); err != nil {
		return nil, err
	}
	if doc.Insights, err = s.store.InsightsForUser(ctx, userID, usage.InsightFilter{State: usage.InsightsAll}); err != nil {
		return nil, err
	}
	if doc.Feedback, err = s.store.FeedbackForUser(ctx, userID, 0); err != nil {
		return nil, err
	}

	if doc.UsageEvents == nil {
		doc.UsageEvents = []*usage.Event{}
	}
	if doc.ComplianceSnapshots == nil {
		doc.ComplianceSnapshots = []*usage.Snapshot{}
	}
	if doc.Insights == nil {
		doc.Insights = []*usage.Insight{}
	}
	if doc.Feedback == nil {
		doc.Feedback = []*usage.Feedback{}
	}

	s.logger.InfoContext(ctx, "user data exported",
		"user_id", userID,
		"events", len(doc.UsageEvents),
		"snapshots", len(doc.ComplianceSnapshots),
		"insights", len(doc.Insights),
		"feedback", len(doc.Feedback),
	)
	return doc, nil
}

// DeleteUser removes everything the user owns. Policies are not user data
// and are kept.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &usage.ValidationError{Entity: "export", Field: "user_id", Reason: "is required"}
	}
	if err := s.store.DeleteUserData(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user data deleted", "user_id", userID)
	return nil
}

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/compliance"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
)

// RecordRequest carries the fields a user submits for one usage event.
type RecordRequest struct {
	UserID          string          `json:"-"`
	Tool            usage.Tool      `json:"tool"`
	UsageType       usage.UsageType `json:"usage_type"`
	Description     string          `json:"description"`
	CourseCode      string          `json:"course_code"`
	AssignmentID    string          `json:"assignment_id"`
	Citation        string          `json:"citation"`
	DurationMinutes int             `json:"duration_minutes"`
	TokensUsed      int             `json:"tokens_used"`

	// Timestamp defaults to the current time when zero.
	Timestamp time.Time `json:"timestamp"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Options configures a Ledger.
type Options struct {
	Location             *time.Location // default UTC
	MaxClockSkew         time.Duration  // default 5m
	MaxDescriptionLength int            // default 2000
	DefaultHistoryLimit  int            // default 500

	Metrics *metrics.Collector
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Ledger records usage events and reads them back.
type Ledger struct {
	events     usage.EventRepository
	policies   compliance.PolicyResolver
	dispatcher *Dispatcher
	opts       Options
	logger     *slog.Logger
}

// New creates a ledger. dispatcher may be nil, in which case no insight
// regeneration is triggered.
func New(events usage.EventRepository, policies compliance.PolicyResolver, dispatcher *Dispatcher, opts Options) *Ledger {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxClockSkew <= 0 {
		opts.MaxClockSkew = 5 * time.Minute
	}
	if opts.MaxDescriptionLength <= 0 {
		opts.MaxDescriptionLength = 2000
	}
	if opts.DefaultHistoryLimit <= 0 {
		opts.DefaultHistoryLimit = 500
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Ledger{
		events:     events,
		policies:   policies,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     opts.Logger.With("component", "ledger"),
	}
}

// Location returns the time zone used for calendar days.
func (l *Ledger) Location() *time.Location {
	return l.opts.Location
}

// Record validates and stores a usage event, then triggers insight
// regeneration for the user. Invalid requests fail with a
// *usage.ValidationError and nothing is stored.
func (l *Ledger) Record(ctx context.Context, req RecordRequest) (*usage.Event, error) {
	now := l.opts.Clock().UTC()

	if err := l.validate(&req, now); err != nil {
		l.opts.Metrics.RecordRejectedEvent(err.Field)
		return nil, err
	}

	ts := req.Timestamp.UTC()
	if req.Timestamp.IsZero() {
		ts = now
	}

	event := &usage.Event{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Tool:            req.Tool,
		UsageType:       req.UsageType,
		Description:     strings.TrimSpace(req.Description),
		CourseCode:      strings.TrimSpace(req.CourseCode),
		AssignmentID:    strings.TrimSpace(req.AssignmentID),
		Citation:        strings.TrimSpace(req.Citation),
		DurationMinutes: req.DurationMinutes,
		TokensUsed:      req.TokensUsed,
		Timestamp:       ts,
		Compliant:       true,
		IPAddress:       req.IPAddress,
		UserAgent:       req.UserAgent,
		CreatedAt:       now,
	}

	policy, err := l.policies.ActivePolicy(ctx, ts)
	if err != nil {
		return nil, err
	}
	if policy != nil {
		event.PolicyID = usage.OptionalID(policy.ID)
		if err := l.flagCompliance(ctx, event, policy); err != nil {
			return nil, err
		}
	}

	if err := l.events.InsertEvent(ctx, event); err != nil {
		return nil, err
	}

	l.opts.Metrics.RecordEvent(string(event.Tool), string(event.UsageType), event.Compliant)
	l.logger.InfoContext(ctx, "usage recorded",
		"event_id", event.ID,
		"user_id", event.UserID,
		"tool", event.Tool,
		"usage_type", event.UsageType,
		"policy_id", usage.StringValue(event.PolicyID),
		"compliant", event.Compliant,
	)

	if l.dispatcher != nil {
		l.dispatcher.Dispatch(ctx, event.UserID)
	}
	return event, nil
}

func (l *Ledger) validate(req *RecordRequest, now time.Time) *usage.ValidationError {
	req.UserID = strings.TrimSpace(req.UserID)
	switch {
	case req.UserID == "":
		return usage.NewInvalidUsageEvent("user_id", "is required")
	case !req.Tool.Valid():
		return usage.NewInvalidUsageEvent("tool", fmt.Sprintf("unknown tool %q", req.Tool))
	case !req.UsageType.Valid():
		return usage.NewInvalidUsageEvent("usage_type", fmt.Sprintf("unknown usage type %q", req.UsageType))
	case req.DurationMinutes < 0:
		return usage.NewInvalidUsageEvent("duration_minutes", "must not be negative")
	case req.TokensUsed < 0:
		return usage.NewInvalidUsageEvent("tokens_used", "must not be negative")
	case utf8.RuneCountInString(req.Description) > l.opts.MaxDescriptionLength:
		return usage.NewInvalidUsageEvent("description",
			fmt.Sprintf("longer than %d characters", l.opts.MaxDescriptionLength))
	case !req.Timestamp.IsZero() && req.Timestamp.After(now.Add(l.opts.MaxClockSkew)):
		return usage.NewInvalidUsageEvent("timestamp", "is in the future")
	}
	return nil
}

// flagCompliance marks the event non-compliant when the user had already
// reached the policy's daily or weekly limit before it.
func (l *Ledger) flagCompliance(ctx context.Context, event *usage.Event, policy *usage.Policy) error {
	var notes []string

	if policy.MaxDailyUsage > 0 {
		day := usage.NewWindow(usage.WindowToday, event.Timestamp, l.opts.Location)
		day.End = event.Timestamp.Add(time.Nanosecond)
		count, err := l.events.CountEvents(ctx, event.UserID, day)
		if err != nil {
			return err
		}
		if count >= policy.MaxDailyUsage {
			notes = append(notes, fmt.Sprintf("daily limit of %d reached", policy.MaxDailyUsage))
		}
	}

	if policy.MaxWeeklyUsage > 0 {
		week := usage.RangeWindow(event.Timestamp.Add(-7*24*time.Hour), event.Timestamp.Add(time.Nanosecond))
		count, err := l.events.CountEvents(ctx, event.UserID, week)
		if err != nil {
			return err
		}
		if count >= policy.MaxWeeklyUsage {
			notes = append(notes, fmt.Sprintf("weekly limit of %d reached", policy.MaxWeeklyUsage))
		}
	}

	if len(notes) > 0 {
		event.Compliant = false
		event.ComplianceNote = strings.Join(notes, "; ")
	}
	return nil
}

// EventsFor returns the user's events matching filter, newest first. A
// zero limit uses the configured default; a negative limit returns all.
func (l *Ledger) EventsFor(ctx context.Context, userID string, filter usage.EventFilter) ([]*usage.Event, error) {
	if err := filter.Window.Validate(); err != nil {
		return nil, &usage.ValidationError{Entity: "window", Reason: err.Error()}
	}
	if filter.Tool != "" && !filter.Tool.Valid() {
		return nil, &usage.ValidationError{Entity: "event_filter", Field: "tool", Reason: fmt.Sprintf("unknown tool %q", filter.Tool)}
	}
	if filter.UsageType != "" && !filter.UsageType.Valid() {
		return nil, &usage.ValidationError{Entity: "event_filter", Field: "usage_type", Reason: fmt.Sprintf("unknown usage type %q", filter.UsageType)}
	}

	switch {
	case filter.Limit == 0:
		filter.Limit = l.opts.DefaultHistoryLimit
	case filter.Limit < 0:
		filter.Limit = 0
	}
	return l.events.EventsForUser(ctx, userID, filter)
}

// Window builds a standard window relative to now in the ledger's zone.
func (l *Ledger) Window(kind usage.WindowKind) usage.Window {
	return usage.NewWindow(kind, l.opts.Clock(), l.opts.Location)
}

package usage

import (
	"time"
)

// Tool identifies the AI tool a usage event refers to.
type Tool string

const (
	ToolChatGPT Tool = "chatgpt"
	ToolCopilot Tool = "copilot"
	ToolClaude  Tool = "claude"
	ToolGemini  Tool = "gemini"
	ToolOther   Tool = "other"
)

// Tools lists every supported tool in display order.
var Tools = []Tool{ToolChatGPT, ToolCopilot, ToolClaude, ToolGemini, ToolOther}

var toolNames = map[Tool]string{
	ToolChatGPT: "ChatGPT",
	ToolCopilot: "GitHub Copilot",
	ToolClaude:  "Claude",
	ToolGemini:  "Google Gemini",
	ToolOther:   "Other AI Tool",
}

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool {
	_, ok := toolNames[t]
	return ok
}

// DisplayName returns the human-readable tool name.
func (t Tool) DisplayName() string {
	if name, ok := toolNames[t]; ok {
		return name
	}
	return string(t)
}

// UsageType classifies what the tool was used for.
type UsageType string

const (
	UsageCodeGeneration  UsageType = "code_generation"
	UsageCodeExplanation UsageType = "code_explanation"
	UsageDebugging       UsageType = "debugging"
	UsageDocumentation   UsageType = "documentation"
	UsageLearning        UsageType = "learning"
	UsageResearch        UsageType = "research"
	UsageOther           UsageType = "other"
)

// UsageTypes lists every supported usage type in display order.
var UsageTypes = []UsageType{
	UsageCodeGeneration,
	UsageCodeExplanation,
	UsageDebugging,
	UsageDocumentation,
	UsageLearning,
	UsageResearch,
	UsageOther,
}

// Valid reports whether u is a known usage type.
func (u UsageType) Valid() bool {
	for _, known := range UsageTypes {
		if u == known {
			return true
		}
	}
	return false
}

// PolicyStatus is the lifecycle state of a policy.
type PolicyStatus string

const (
	PolicyDraft   PolicyStatus = "draft"
	PolicyActive  PolicyStatus = "active"
	PolicyRetired PolicyStatus = "retired"
)

// Valid reports whether s is a known policy status.
func (s PolicyStatus) Valid() bool {
	switch s {
	case PolicyDraft, PolicyActive, PolicyRetired:
		return true
	}
	return false
}

// CanTransition reports whether a policy may move from s to next.
// Retired is terminal.
func (s PolicyStatus) CanTransition(next PolicyStatus) bool {
	switch s {
	case PolicyDraft:
		return next == PolicyActive || next == PolicyRetired
	case PolicyActive:
		return next == PolicyRetired
	}
	return false
}

// Policy is a versioned set of usage thresholds and rules.
type Policy struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Version        string       `json:"version"`
	Status         PolicyStatus `json:"status"`
	EffectiveFrom  time.Time    `json:"effective_from"`
	EffectiveTo    *time.Time   `json:"effective_to,omitempty"`
	MaxDailyUsage  int          `json:"max_daily_usage"`
	MaxWeeklyUsage int          `json:"max_weekly_usage"`
	Rules          RuleSet      `json:"rules"`
	CreatedBy      string       `json:"created_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ActiveAt reports whether the policy is active and its effective range
// [EffectiveFrom, EffectiveTo) contains at.
func (p *Policy) ActiveAt(at time.Time) bool {
	if p == nil || p.Status != PolicyActive {
		return false
	}
	if at.Before(p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo != nil && !at.Before(*p.EffectiveTo) {
		return false
	}
	return true
}

// Overlaps reports whether the effective ranges of p and other intersect.
func (p *Policy) Overlaps(other *Policy) bool {
	if p.EffectiveTo != nil && !other.EffectiveFrom.Before(*p.EffectiveTo) {
		return false
	}
	if other.EffectiveTo != nil && !p.EffectiveFrom.Before(*other.EffectiveTo) {
		return false
	}
	return true
}

// PolicyRevision records one status transition of a policy.
type PolicyRevision struct {
	PolicyID   string       `json:"policy_id"`
	FromStatus PolicyStatus `json:"from_status"`
	ToStatus   PolicyStatus `json:"to_status"`
	ChangedBy  string       `json:"changed_by,omitempty"`
	ChangedAt  time.Time    `json:"changed_at"`
}

// Event is one recorded interaction of a user with an AI tool.
// Events are immutable once stored.
type Event struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Tool            Tool      `json:"tool"`
	UsageType       UsageType `json:"usage_type"`
	Description     string    `json:"description"`
	CourseCode      string    `json:"course_code"`
	AssignmentID    string    `json:"assignment_id"`
	Citation        string    `json:"citation"`
	DurationMinutes int       `json:"duration_minutes"`
	TokensUsed      int       `json:"tokens_used"`
	Timestamp       time.Time `json:"timestamp"`

	// PolicyID is the policy active at Timestamp, nil when none was.
	PolicyID       *string `json:"policy_id"`
	Compliant      bool    `json:"compliant"`
	ComplianceNote string  `json:"compliance_note"`

	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Level is the compliance level derived from a score.
type Level string

const (
	LevelCompliant Level = "compliant"
	LevelWarning   Level = "warning"
	LevelViolation Level = "violation"
)

// LevelForScore maps a score in [0,100] to a level:
// >= 80 compliant, 50..79 warning, < 50 violation.
func LevelForScore(score int) Level {
	switch {
	case score >= 80:
		return LevelCompliant
	case score >= 50:
		return LevelWarning
	default:
		return LevelViolation
	}
}

// Snapshot is a point-in-time compliance evaluation for one user.
type Snapshot struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	PolicyID         *string    `json:"policy_id"`
	WindowKind       WindowKind `json:"window"`
	PeriodStart      time.Time  `json:"period_start"`
	PeriodEnd        time.Time  `json:"period_end"`
	EventCount       int        `json:"event_count"`
	Threshold        int        `json:"threshold"`
	Score            int        `json:"score"`
	Level            Level      `json:"level"`
	ViolationDetails []string   `json:"violation_details"`
	CreatedAt        time.Time  `json:"created_at"`
}

// InsightKind is the category of a generated insight.
type InsightKind string

const (
	InsightPattern     InsightKind = "pattern"
	InsightCompliance  InsightKind = "compliance"
	InsightAchievement InsightKind = "achievement"
	InsightWarning     InsightKind = "warning"
)

// Rank orders kinds for display: pattern, compliance, achievement, warning.
func (k InsightKind) Rank() int {
	switch k {
	case InsightPattern:
		return 0
	case InsightCompliance:
		return 1
	case InsightAchievement:
		return 2
	case InsightWarning:
		return 3
	}
	return 4
}

// Priority is the urgency of an insight.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns a value that sorts high above medium above low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Insight is a generated recommendation or warning for one user.
type Insight struct {
	ID       string      `json:"id"`
	UserID   string      `json:"user_id"`
	Kind     InsightKind `json:"kind"`
	Priority Priority    `json:"priority"`
	Title    string      `json:"title"`
	Message  string      `json:"message"`

	// Template is the deduplication key of the rule that produced the
	// insight. Two insights with the same user, kind and template are the
	// same finding even when their messages differ.
	Template string `json:"template"`

	// RelatedEvents holds event ids. The insight does not own the events.
	RelatedEvents []string       `json:"related_events"`
	Data          map[string]any `json:"data,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Read        bool       `json:"read"`
	Dismissed   bool       `json:"dismissed"`
	ReadAt      *time.Time `json:"read_at"`
	DismissedAt *time.Time `json:"dismissed_at"`
}

// Active reports whether the insight is neither read nor dismissed.
func (i *Insight) Active() bool {
	return !i.Read && !i.Dismissed
}

// FeedbackKind classifies user feedback.
type FeedbackKind string

const (
	FeedbackBug         FeedbackKind = "bug"
	FeedbackFeature     FeedbackKind = "feature"
	FeedbackImprovement FeedbackKind = "improvement"
	FeedbackGeneral     FeedbackKind = "general"
)

// Valid reports whether k is a known feedback kind.
func (k FeedbackKind) Valid() bool {
	switch k {
	case FeedbackBug, FeedbackFeature, FeedbackImprovement, FeedbackGeneral:
		return true
	}
	return false
}

// FeedbackStatus tracks the review state of a feedback entry.
type FeedbackStatus string

const (
	FeedbackNew       FeedbackStatus = "new"
	FeedbackReviewing FeedbackStatus = "reviewing"
	FeedbackPlanned   FeedbackStatus = "planned"
	FeedbackResolved  FeedbackStatus = "resolved"
	FeedbackClosed    FeedbackStatus = "closed"
)

// Valid reports whether s is a known feedback status.
func (s FeedbackStatus) Valid() bool {
	switch s {
	case FeedbackNew, FeedbackReviewing, FeedbackPlanned, FeedbackResolved, FeedbackClosed:
		return true
	}
	return false
}

// Terminal reports whether s ends the review.
func (s FeedbackStatus) Terminal() bool {
	return s == FeedbackResolved || s == FeedbackClosed
}

// Feedback is a user-submitted report about the system.
type Feedback struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Kind          FeedbackKind   `json:"kind"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	URL           string         `json:"url"`
	Status        FeedbackStatus `json:"status"`
	AdminResponse string         `json:"admin_response"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ResolvedAt    *time.Time     `json:"resolved_at"`
}

// OptionalID returns a pointer to id, nil when id is empty.
func OptionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// StringValue returns the string p points to, "" when p is nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

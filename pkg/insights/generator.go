package insights

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/compliance"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
)

// Options tunes the insight rules. Zero values take the defaults noted.
type Options struct {
	PatternThreshold    float64 // 0.7
	PatternMinEvents    int     // 5
	StreakDays          int     // 7
	WarningDays         int     // 3
	WarningLookbackDays int     // 7
	Milestones          []int   // 10, 50, 100, 250, 500, 1000

	// TTL sets ExpiresAt on non-achievement insights. Zero means they
	// never expire.
	TTL time.Duration

	Metrics *metrics.Collector
	Logger  *slog.Logger
	Clock   func() time.Time
}

func (o *Options) applyDefaults() {
	if o.PatternThreshold <= 0 {
		o.PatternThreshold = 0.7
	}
	if o.PatternMinEvents <= 0 {
		o.PatternMinEvents = 5
	}
	if o.StreakDays <= 0 {
		o.StreakDays = 7
	}
	if o.WarningDays <= 0 {
		o.WarningDays = 3
	}
	if o.WarningLookbackDays <= 0 {
		o.WarningLookbackDays = 7
	}
	if o.Milestones == nil {
		o.Milestones = []int{10, 50, 100, 250, 500, 1000}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Generator creates insights for one user at a time.
type Generator struct {
	events    usage.EventRepository
	insights  usage.InsightRepository
	policies  compliance.PolicyResolver
	evaluator *compliance.Evaluator
	opts      Options
	logger    *slog.Logger
}

// NewGenerator creates a generator.
func NewGenerator(events usage.EventRepository, insights usage.InsightRepository, policies compliance.PolicyResolver, evaluator *compliance.Evaluator, opts Options) *Generator {
	opts.applyDefaults()
	return &Generator{
		events:    events,
		insights:  insights,
		policies:  policies,
		evaluator: evaluator,
		opts:      opts,
		logger:    opts.Logger.With("component", "insights.generator"),
	}
}

// Generate evaluates the rules for userID and persists the new insights.
// It returns only insights created by this call, highest priority first.
// Running it again without new events creates nothing.
func (g *Generator) Generate(ctx context.Context, userID string) ([]*usage.Insight, error) {
	start := time.Now()
	created, err := g.generate(ctx, userID)
	g.opts.Metrics.RecordRegeneration(time.Since(start), err)
	return created, err
}

func (g *Generator) generate(ctx context.Context, userID string) ([]*usage.Insight, error) {
	now := g.opts.Clock().UTC()

	events, err := g.events.EventsForUser(ctx, userID, usage.EventFilter{Window: usage.NewWindow(usage.WindowAll, now, nil)})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	policy, err := g.policies.ActivePolicy(ctx, now)
	if err != nil {
		return nil, err
	}
	snap, err := g.evaluator.EvaluateAndStore(ctx, userID, policy,
		usage.NewWindow(usage.WindowToday, now, g.evaluator.Location()))
	if err != nil {
		return nil, err
	}

	h := &history{
		userID:   userID,
		now:      now,
		loc:      g.evaluator.Location(),
		events:   events,
		snapshot: snap,
		policy:   policy,
	}
	candidates := g.candidates(h)
	if len(candidates) == 0 {
		return nil, nil
	}

	existing, err := g.insights.InsightsForUser(ctx, userID, usage.InsightFilter{State: usage.InsightsAll})
	if err != nil {
		return nil, err
	}

	var created []*usage.Insight
	for _, in := range candidates {
		if duplicate(in, existing) {
			continue
		}

		in.ID = uuid.New().String()
		in.UserID = userID
		in.CreatedAt = now
		if g.opts.TTL > 0 && in.Kind != usage.InsightAchievement {
			expires := now.Add(g.opts.TTL)
			in.ExpiresAt = &expires
		}
		if in.RelatedEvents == nil {
			in.RelatedEvents = []string{}
		}

		if err := g.insights.InsertInsight(ctx, in); err != nil {
			if errors.Is(err, usage.ErrConflict) {
				// A concurrent run for the same user got there first.
				continue
			}
			return created, err
		}

		g.opts.Metrics.RecordInsight(string(in.Kind), string(in.Priority))
		g.logger.InfoContext(ctx, "insight created",
			"user_id", userID,
			"insight_id", in.ID,
			"kind", in.Kind,
			"priority", in.Priority,
			"template", in.Template,
		)
		created = append(created, in)
	}
	return created, nil
}

// candidates runs every rule and sorts the findings by priority
// descending, then kind.
func (g *Generator) candidates(h *history) []*usage.Insight {
	rules := []func(*history) *usage.Insight{
		g.patternRule,
		g.complianceRule,
		g.streakRule,
		g.milestoneRule,
		g.warningRule,
	}

	var out []*usage.Insight
	for _, rule := range rules {
		if in := rule(h); in != nil {
			out = append(out, in)
		}
	}
	SortInsights(out)
	return out
}

// SortInsights orders insights by priority descending, then kind.
func SortInsights(insights []*usage.Insight) {
	sort.SliceStable(insights, func(i, j int) bool {
		a, b := insights[i], insights[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.Kind.Rank() < b.Kind.Rank()
	})
}

// duplicate reports whether candidate repeats an existing finding.
// Achievements match in any state, other kinds only while active.
func duplicate(candidate *usage.Insight, existing []*usage.Insight) bool {
	for _, e := range existing {
		if e.Kind != candidate.Kind || e.Template != candidate.Template {
			continue
		}
		if candidate.Kind == usage.InsightAchievement || e.Active() {
			return true
		}
	}
	return false
}

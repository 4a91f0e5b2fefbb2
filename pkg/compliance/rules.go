package compliance

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"mercator-hq/callisto/pkg/usage"
)

// Rule names understood by the evaluator.
const (
	RuleCitationRequired     = "citation_required"
	RuleDescriptionRequired  = "description_required"
	RuleCourseCodeRequired   = "course_code_required"
	RuleMaxSessionMinutes    = "max_session_minutes"
	RuleMaxTokensPerEvent    = "max_tokens_per_event"
	RuleAllowedTools         = "allowed_tools"
	RuleProhibitedUsageTypes = "prohibited_usage_types"
)

// ruleCheck returns a violation detail, or "" when the rule holds. ok is
// false when the rule value has the wrong type.
type ruleCheck func(rule usage.Rule, events []*usage.Event) (detail string, ok bool)

var ruleChecks = map[string]ruleCheck{
	RuleCitationRequired: requiredField("a citation", func(e *usage.Event) string {
		return e.Citation
	}),
	RuleDescriptionRequired: requiredField("a description", func(e *usage.Event) string {
		return e.Description
	}),
	RuleCourseCodeRequired: requiredField("a course code", func(e *usage.Event) string {
		return e.CourseCode
	}),
	RuleMaxSessionMinutes: maxPerEvent("minutes", func(e *usage.Event) int {
		return e.DurationMinutes
	}),
	RuleMaxTokensPerEvent: maxPerEvent("tokens", func(e *usage.Event) int {
		return e.TokensUsed
	}),
	RuleAllowedTools:         checkAllowedTools,
	RuleProhibitedUsageTypes: checkProhibitedTypes,
}

// KnownRule reports whether the evaluator checks the named rule.
func KnownRule(name string) bool {
	_, ok := ruleChecks[name]
	return ok
}

// CheckRules returns one detail line per failing rule, in rule-set order.
func CheckRules(rules usage.RuleSet, events []*usage.Event, logger *slog.Logger) []string {
	details := []string{}
	for _, rule := range rules {
		check, known := ruleChecks[rule.Name]
		if !known {
			logger.Debug("skipping unknown policy rule", "rule", rule.Name)
			continue
		}
		detail, ok := check(rule, events)
		if !ok {
			logger.Warn("policy rule has a value of the wrong type",
				"rule", rule.Name,
				"value", fmt.Sprintf("%v", rule.Value),
			)
			continue
		}
		if detail != "" {
			details = append(details, detail)
		}
	}
	return details
}

func requiredField(what string, field func(*usage.Event) string) ruleCheck {
	return func(rule usage.Rule, events []*usage.Event) (string, bool) {
		required, ok := rule.Bool()
		if !ok {
			return "", false
		}
		if !required {
			return "", true
		}
		missing := 0
		for _, e := range events {
			if strings.TrimSpace(field(e)) == "" {
				missing++
			}
		}
		if missing == 0 {
			return "", true
		}
		return fmt.Sprintf("%d of %d events are missing %s", missing, len(events), what), true
	}
}

func maxPerEvent(unit string, value func(*usage.Event) int) ruleCheck {
	return func(rule usage.Rule, events []*usage.Event) (string, bool) {
		limit, ok := rule.Int()
		if !ok || limit < 0 {
			return "", false
		}
		over := 0
		for _, e := range events {
			if value(e) > limit {
				over++
			}
		}
		if over == 0 {
			return "", true
		}
		return fmt.Sprintf("%d %s over the limit of %d %s per event",
			over, plural(over, "event is", "events are"), limit, unit), true
	}
}

func checkAllowedTools(rule usage.Rule, events []*usage.Event) (string, bool) {
	allowed, ok := rule.Strings()
	if !ok {
		return "", false
	}
	var used []string
	for _, e := range events {
		if !slices.Contains(allowed, string(e.Tool)) && !slices.Contains(used, string(e.Tool)) {
			used = append(used, string(e.Tool))
		}
	}
	if len(used) == 0 {
		return "", true
	}
	slices.Sort(used)
	return "used tools outside the allowed list: " + strings.Join(used, ", "), true
}

func checkProhibitedTypes(rule usage.Rule, events []*usage.Event) (string, bool) {
	prohibited, ok := rule.Strings()
	if !ok {
		return "", false
	}
	count := 0
	var types []string
	for _, e := range events {
		if !slices.Contains(prohibited, string(e.UsageType)) {
			continue
		}
		count++
		if !slices.Contains(types, string(e.UsageType)) {
			types = append(types, string(e.UsageType))
		}
	}
	if count == 0 {
		return "", true
	}
	slices.Sort(types)
	return fmt.Sprintf("%d %s a prohibited usage type: %s",
		count, plural(count, "event has", "events have"), strings.Join(types, ", ")), true
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

package usage

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Rule is one named entry of a policy rule set. Value is a bool, a number or
// a list of strings depending on the rule.
type Rule struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Bool returns the rule value as a boolean.
func (r Rule) Bool() (bool, bool) {
	b, ok := r.Value.(bool)
	return b, ok
}

// Int returns the rule value as an integer. YAML yields int, JSON yields
// float64; both are accepted as long as the value is integral.
func (r Rule) Int() (int, bool) {
	switch v := r.Value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

// Strings returns the rule value as a list of strings.
func (r Rule) Strings() ([]string, bool) {
	switch v := r.Value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return []string{v}, true
	}
	return nil, false
}

// RuleSet is the ordered rule mapping of a policy. Order is significant:
// violation details are reported in rule-set order.
type RuleSet []Rule

// Get returns the rule with the given name.
func (rs RuleSet) Get(name string) (Rule, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

// Names returns the rule names in order.
func (rs RuleSet) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// Validate checks that every rule has a unique, non-empty name.
func (rs RuleSet) Validate() error {
	seen := make(map[string]struct{}, len(rs))
	for i, r := range rs {
		if r.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// UnmarshalYAML accepts either a mapping (rule name to value, in document
// order) or a sequence of {name, value} entries.
func (rs *RuleSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		out := make(RuleSet, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var value any
			if err := node.Content[i+1].Decode(&value); err != nil {
				return fmt.Errorf("rule %q: %w", node.Content[i].Value, err)
			}
			out = append(out, Rule{Name: node.Content[i].Value, Value: value})
		}
		*rs = out
		return nil
	case yaml.SequenceNode:
		var rules []Rule
		if err := node.Decode(&rules); err != nil {
			return err
		}
		*rs = rules
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*rs = nil
			return nil
		}
	}
	return fmt.Errorf("line %d: rules must be a mapping or a list", node.Line)
}

package usage

import (
	"errors"
	"testing"
	"time"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{100, LevelCompliant},
		{80, LevelCompliant},
		{79, LevelWarning},
		{50, LevelWarning},
		{49, LevelViolation},
		{0, LevelViolation},
	}
	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestPolicy_ActiveAt(t *testing.T) {
	from := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Policy{Status: PolicyActive, EffectiveFrom: from, EffectiveTo: &to}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before", from.Add(-time.Second), false},
		{"at start", from, true},
		{"inside", from.Add(30 * 24 * time.Hour), true},
		{"at end", to, false},
	}
	for _, tt := range tests {
		if got := p.ActiveAt(tt.at); got != tt.want {
			t.Errorf("%s: ActiveAt() = %v, want %v", tt.name, got, tt.want)
		}
	}

	draft := *p
	draft.Status = PolicyDraft
	if draft.ActiveAt(from) {
		t.Error("draft policy must never be active")
	}
	var nilPolicy *Policy
	if nilPolicy.ActiveAt(from) {
		t.Error("nil policy must never be active")
	}
}

func TestPolicyStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to PolicyStatus
		want     bool
	}{
		{PolicyDraft, PolicyActive, true},
		{PolicyDraft, PolicyRetired, true},
		{PolicyActive, PolicyRetired, true},
		{PolicyActive, PolicyDraft, false},
		{PolicyRetired, PolicyActive, false},
		{PolicyDraft, PolicyDraft, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	if !errors.Is(NewInvalidUsageEvent("tool", "unknown"), ErrInvalid) {
		t.Error("ValidationError should match ErrInvalid")
	}
	if !errors.Is(NewNotFound("insight", "x"), ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if !errors.Is(&AuthorizationError{UserID: "u"}, ErrUnauthorized) {
		t.Error("AuthorizationError should match ErrUnauthorized")
	}
	if !errors.Is(NewStorageError("sqlite", "op", ErrConflict), ErrConflict) {
		t.Error("StorageError should unwrap to its cause")
	}
}

package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/callisto/pkg/usage"
)

const policiesYAML = `
policies:
  - title: CS101 AI policy
    version: "2025.1"
    status: active
    effective_from: 2025-09-01
    max_daily_usage: 5
    max_weekly_usage: 20
    rules:
      max_session_minutes: 90
      citation_required: true
      allowed_tools: [chatgpt, copilot]
  - title: CS101 AI policy
    version: "2026.1"
    effective_from: 2026-01-15
    max_daily_usage: 3
    max_weekly_usage: 12
`

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "policies.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write policies file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), policiesYAML)

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if len(f.Policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(f.Policies))
	}

	first := f.Policies[0].Policy()
	want := []string{"max_session_minutes", "citation_required", "allowed_tools"}
	got := first.Rules.Names()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rule[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if first.EffectiveFrom.Year() != 2025 || first.EffectiveFrom.Month() != 9 {
		t.Errorf("effective_from = %v", first.EffectiveFrom)
	}
	if f.Policies[1].Policy().Status != usage.PolicyDraft {
		t.Error("status should default to draft")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("missing file error = %v, want SourceError", err)
	}

	path := writeFile(t, dir, "policies: [:\n")
	if _, err := LoadFile(path); !errors.As(err, &se) {
		t.Errorf("bad YAML error = %v, want SourceError", err)
	}
}

func TestLint(t *testing.T) {
	f := &File{Policies: []FileEntry{
		{Title: "A", Version: "1"},
		{Title: "B", Version: "1", EffectiveFrom: t0},
		{Title: "B", Version: "1", EffectiveFrom: t0},
	}}
	problems := Lint(f)
	if len(problems) != 2 {
		t.Errorf("Lint() found %d problems, want 2 (missing start, duplicate): %v", len(problems), problems)
	}
}

func TestSource_Sync(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, policiesYAML)
	store := newTestStore(t)
	source := NewSource(path, store, "registrar", nil)
	ctx := context.Background()

	result, err := source.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("Created = %d, want 2", result.Created)
	}

	result, err = source.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if result.Created != 0 || result.Unchanged != 2 {
		t.Errorf("second Sync() = %+v, want everything unchanged", result)
	}

	// Retire the first version and activate the second.
	updated := `
policies:
  - title: CS101 AI policy
    version: "2025.1"
    status: retired
    effective_from: 2025-09-01
    max_daily_usage: 5
    max_weekly_usage: 20
  - title: CS101 AI policy
    version: "2026.1"
    status: active
    effective_from: 2026-01-15
    max_daily_usage: 3
    max_weekly_usage: 12
`
	writeFile(t, dir, updated)
	result, err = source.Sync(ctx)
	if err != nil {
		t.Fatalf("third Sync() failed: %v", err)
	}
	if result.Transitioned != 2 {
		t.Errorf("Transitioned = %d, want 2", result.Transitioned)
	}

	p, _ := store.FindByVersion(ctx, "CS101 AI policy", "2026.1")
	if p == nil || p.Status != usage.PolicyActive {
		t.Fatalf("2026.1 not active: %+v", p)
	}
	if p.CreatedBy != "registrar" {
		t.Errorf("CreatedBy = %q, want registrar", p.CreatedBy)
	}

	// Retired is terminal and active cannot return to draft: both
	// requests are skipped, not errors.
	writeFile(t, dir, policiesYAML)
	result, err = source.Sync(ctx)
	if err != nil {
		t.Fatalf("fourth Sync() failed: %v", err)
	}
	if result.Skipped != 2 || result.Transitioned != 0 {
		t.Errorf("fourth Sync() = %+v, want 2 skipped and none transitioned", result)
	}
	for version, want := range map[string]usage.PolicyStatus{
		"2025.1": usage.PolicyRetired,
		"2026.1": usage.PolicyActive,
	} {
		p, err := store.FindByVersion(ctx, "CS101 AI policy", version)
		if err != nil || p == nil {
			t.Fatalf("FindByVersion(%s) = %v, %v", version, p, err)
		}
		if p.Status != want {
			t.Errorf("%s status = %s, want %s", version, p.Status, want)
		}
	}
}

func TestSource_SyncRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policies:\n  - title: x\n")
	source := NewSource(path, newTestStore(t), "", nil)
	if _, err := source.Sync(context.Background()); err == nil {
		t.Fatal("Sync() should reject an invalid file")
	}
}

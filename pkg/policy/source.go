package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/usage"
)

// maxFileSize bounds the policies file read into memory.
const maxFileSize = 1 << 20

// File is the on-disk policies document.
type File struct {
	Policies []FileEntry `yaml:"policies"`
}

// FileEntry declares one policy version.
type FileEntry struct {
	Title          string             `yaml:"title"`
	Description    string             `yaml:"description"`
	Version        string             `yaml:"version"`
	Status         usage.PolicyStatus `yaml:"status"`
	EffectiveFrom  time.Time          `yaml:"effective_from"`
	EffectiveTo    *time.Time         `yaml:"effective_to"`
	MaxDailyUsage  int                `yaml:"max_daily_usage"`
	MaxWeeklyUsage int                `yaml:"max_weekly_usage"`
	Rules          usage.RuleSet      `yaml:"rules"`
	CreatedBy      string             `yaml:"created_by"`
}

// Policy converts the entry to a policy ready for Store.Create.
func (e FileEntry) Policy() *usage.Policy {
	status := e.Status
	if status == "" {
		status = usage.PolicyDraft
	}
	return &usage.Policy{
		Title:          e.Title,
		Description:    e.Description,
		Version:        e.Version,
		Status:         status,
		EffectiveFrom:  e.EffectiveFrom.UTC(),
		EffectiveTo:    utcPtr(e.EffectiveTo),
		MaxDailyUsage:  e.MaxDailyUsage,
		MaxWeeklyUsage: e.MaxWeeklyUsage,
		Rules:          e.Rules,
		CreatedBy:      e.CreatedBy,
	}
}

// SourceError reports a policies file that could not be read or parsed.
type SourceError struct {
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("policy file %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("policy file %q: %s", e.Path, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *SourceError) Unwrap() error {
	return e.Cause
}

// LoadFile reads and parses a policies file.
func LoadFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &SourceError{Path: path, Message: "cannot stat file", Cause: err}
	}
	if info.Size() > maxFileSize {
		return nil, &SourceError{Path: path, Message: fmt.Sprintf("file exceeds %d bytes", maxFileSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceError{Path: path, Message: "cannot read file", Cause: err}
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &SourceError{Path: path, Message: "invalid YAML", Cause: err}
	}
	return &f, nil
}

// Lint validates every entry of a policies file and returns one error per
// problem found. Duplicate (title, version) pairs are reported too.
func Lint(f *File) []error {
	var problems []error
	seen := make(map[string]int)
	for i, entry := range f.Policies {
		if err := Validate(entry.Policy()); err != nil {
			problems = append(problems, fmt.Errorf("policies[%d] (%s %s): %w", i, entry.Title, entry.Version, err))
		}
		key := entry.Title + "\x00" + entry.Version
		if first, dup := seen[key]; dup {
			problems = append(problems, fmt.Errorf("policies[%d]: duplicates policies[%d] (%s %s)", i, first, entry.Title, entry.Version))
			continue
		}
		seen[key] = i
	}
	return problems
}

// SyncResult summarizes a Sync run.
type SyncResult struct {
	Created      int
	Transitioned int
	Unchanged    int
	Skipped      int
}

// Source synchronizes a policies file into a Store.
type Source struct {
	path   string
	store  *Store
	actor  string
	logger *slog.Logger
}

// NewSource creates a file source. actor is recorded on created policies
// and revisions.
func NewSource(path string, store *Store, actor string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	if actor == "" {
		actor = "policy-file"
	}
	return &Source{
		path:   path,
		store:  store,
		actor:  actor,
		logger: logger.With("component", "policy.source", "path", path),
	}
}

// Path returns the policies file path.
func (s *Source) Path() string {
	return s.path
}

// Sync loads the file and applies it to the store. Entries already present
// with the same status are left untouched; status changes the lifecycle
// forbids are skipped and logged.
func (s *Source) Sync(ctx context.Context) (*SyncResult, error) {
	result, err := s.sync(ctx)
	if result != nil {
		s.store.metrics.RecordPolicySync(result.Created, result.Transitioned, err)
	} else {
		s.store.metrics.RecordPolicySync(0, 0, err)
	}
	return result, err
}

func (s *Source) sync(ctx context.Context) (*SyncResult, error) {
	start := time.Now()

	f, err := LoadFile(s.path)
	if err != nil {
		return nil, err
	}
	if problems := Lint(f); len(problems) > 0 {
		return nil, &SourceError{Path: s.path, Message: "validation failed", Cause: errors.Join(problems...)}
	}

	result := &SyncResult{}
	for _, entry := range f.Policies {
		p := entry.Policy()
		if p.CreatedBy == "" {
			p.CreatedBy = s.actor
		}

		existing, err := s.store.FindByVersion(ctx, p.Title, p.Version)
		if err != nil {
			return result, err
		}

		if existing == nil {
			if _, err := s.store.Create(ctx, p); err != nil {
				return result, err
			}
			result.Created++
			continue
		}

		if existing.Status == p.Status {
			result.Unchanged++
			continue
		}
		if !existing.Status.CanTransition(p.Status) {
			s.logger.Warn("ignoring status change not allowed by lifecycle",
				"policy_id", existing.ID,
				"from", existing.Status,
				"to", p.Status,
			)
			result.Skipped++
			continue
		}
		if _, err := s.store.Transition(ctx, existing.ID, p.Status, s.actor); err != nil {
			return result, err
		}
		result.Transitioned++
	}

	s.logger.Info("policy file synchronized",
		"created", result.Created,
		"transitioned", result.Transitioned,
		"unchanged", result.Unchanged,
		"skipped", result.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

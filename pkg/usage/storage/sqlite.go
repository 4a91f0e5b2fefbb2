package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver ("sqlite3")
	_ "modernc.org/sqlite"          // pure Go SQLite driver ("sqlite")

	"mercator-hq/callisto/pkg/usage"
)

const (
	// DriverModernc selects the pure Go modernc.org/sqlite driver.
	DriverModernc = "modernc"
	// DriverCGO selects the cgo github.com/mattn/go-sqlite3 driver.
	DriverCGO = "cgo"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the SQL driver: "modernc" (default) or "cgo".
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 4
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 2
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/callisto.db",
		Driver:       DriverModernc,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements usage.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, creates the schema and verifies the
// schema version.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, usage.NewStorageError("sqlite", "open", errors.New("database path is empty"))
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "usage.storage.sqlite")

	driverName, dsn, err := buildDSN(config)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "open", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"driver", driverName,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// buildDSN returns the registered driver name and a DSN that applies the
// connection pragmas on every pooled connection.
func buildDSN(config *SQLiteConfig) (string, string, error) {
	busyMs := config.BusyTimeout.Milliseconds()
	switch config.Driver {
	case DriverModernc, "":
		params := []string{
			fmt.Sprintf("_pragma=busy_timeout(%d)", busyMs),
			"_pragma=foreign_keys(1)",
		}
		if config.WALMode {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
		return "sqlite", config.Path + "?" + strings.Join(params, "&"), nil
	case DriverCGO:
		params := []string{
			fmt.Sprintf("_busy_timeout=%d", busyMs),
			"_foreign_keys=1",
		}
		if config.WALMode {
			params = append(params, "_journal_mode=WAL")
		}
		return "sqlite3", config.Path + "?" + strings.Join(params, "&"), nil
	}
	return "", "", fmt.Errorf("unknown sqlite driver %q (want %q or %q)", config.Driver, DriverModernc, DriverCGO)
}

// initialize creates the schema and verifies the schema version.
func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return usage.NewStorageError("sqlite", "create_schema", err)
	}
	s.logger.Debug("database schema created")

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return usage.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return usage.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return usage.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// ---------------------------------------------------------------------------
// Policies
// ---------------------------------------------------------------------------

const policyColumns = `id, title, description, version, status, effective_from, effective_to,
	max_daily_usage, max_weekly_usage, rules, created_by, created_at, updated_at`

// CreatePolicy stores a new policy.
func (s *SQLiteStorage) CreatePolicy(ctx context.Context, p *usage.Policy) error {
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return usage.NewStorageError("sqlite", "create_policy", err)
	}
	if p.Rules == nil {
		rules = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO policies (`+policyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, p.Version, string(p.Status),
		toMicros(p.EffectiveFrom), nullMicros(p.EffectiveTo),
		p.MaxDailyUsage, p.MaxWeeklyUsage, string(rules), p.CreatedBy,
		toMicros(p.CreatedAt), toMicros(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return usage.NewStorageError("sqlite", "create_policy", usage.ErrConflict)
		}
		return usage.NewStorageError("sqlite", "create_policy", err)
	}
	return nil
}

// TransitionPolicy updates the status and appends a revision in one transaction.
func (s *SQLiteStorage) TransitionPolicy(ctx context.Context, rev *usage.PolicyRevision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return usage.NewStorageError("sqlite", "transition_policy", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE policies SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(rev.ToStatus), toMicros(rev.ChangedAt), rev.PolicyID, string(rev.FromStatus))
	if err != nil {
		return usage.NewStorageError("sqlite", "transition_policy", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return usage.NewStorageError("sqlite", "transition_policy", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM policies WHERE id = ?`, rev.PolicyID).Scan(&exists)
		if err == sql.ErrNoRows {
			return usage.NewNotFound("policy", rev.PolicyID)
		}
		if err != nil {
			return usage.NewStorageError("sqlite", "transition_policy", err)
		}
		return usage.NewStorageError("sqlite", "transition_policy", usage.ErrConflict)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO policy_revisions
		(policy_id, from_status, to_status, changed_by, changed_at) VALUES (?, ?, ?, ?, ?)`,
		rev.PolicyID, string(rev.FromStatus), string(rev.ToStatus), rev.ChangedBy, toMicros(rev.ChangedAt))
	if err != nil {
		return usage.NewStorageError("sqlite", "transition_policy", err)
	}

	if err := tx.Commit(); err != nil {
		return usage.NewStorageError("sqlite", "transition_policy", err)
	}
	return nil
}

// GetPolicy returns a policy by id.
func (s *SQLiteStorage) GetPolicy(ctx context.Context, id string) (*usage.Policy, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+policyColumns+` FROM policies WHERE id = ?`, id)
	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, usage.NewNotFound("policy", id)
	}
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "get_policy", err)
	}
	return p, nil
}

// ListPolicies returns every policy, newest effective_from first.
func (s *SQLiteStorage) ListPolicies(ctx context.Context) ([]*usage.Policy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+policyColumns+` FROM policies
		ORDER BY effective_from DESC, created_at DESC, id DESC`)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "list_policies", err)
	}
	defer rows.Close()

	policies := []*usage.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, usage.NewStorageError("sqlite", "scan_policy", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "list_policies", err)
	}
	return policies, nil
}

// PolicyRevisions returns the revisions of a policy, oldest first.
func (s *SQLiteStorage) PolicyRevisions(ctx context.Context, policyID string) ([]*usage.PolicyRevision, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT policy_id, from_status, to_status, changed_by, changed_at
		FROM policy_revisions WHERE policy_id = ? ORDER BY seq ASC`, policyID)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "policy_revisions", err)
	}
	defer rows.Close()

	revs := []*usage.PolicyRevision{}
	for rows.Next() {
		var (
			rev       usage.PolicyRevision
			from, to  string
			changedAt int64
		)
		if err := rows.Scan(&rev.PolicyID, &from, &to, &rev.ChangedBy, &changedAt); err != nil {
			return nil, usage.NewStorageError("sqlite", "scan_revision", err)
		}
		rev.FromStatus = usage.PolicyStatus(from)
		rev.ToStatus = usage.PolicyStatus(to)
		rev.ChangedAt = fromMicros(changedAt)
		revs = append(revs, &rev)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "policy_revisions", err)
	}
	return revs, nil
}

func scanPolicy(sc scanner) (*usage.Policy, error) {
	var (
		p                                   usage.Policy
		status, rules                       string
		effectiveFrom, createdAt, updatedAt int64
		effectiveTo                         sql.NullInt64
	)
	err := sc.Scan(&p.ID, &p.Title, &p.Description, &p.Version, &status,
		&effectiveFrom, &effectiveTo, &p.MaxDailyUsage, &p.MaxWeeklyUsage,
		&rules, &p.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = usage.PolicyStatus(status)
	p.EffectiveFrom = fromMicros(effectiveFrom)
	p.EffectiveTo = fromNullMicros(effectiveTo)
	p.CreatedAt = fromMicros(createdAt)
	p.UpdatedAt = fromMicros(updatedAt)
	if err := json.Unmarshal([]byte(rules), &p.Rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return &p, nil
}

// ---------------------------------------------------------------------------
// Usage events
// ---------------------------------------------------------------------------

const eventColumns = `id, user_id, tool, usage_type, description, course_code, assignment_id, citation,
	duration_minutes, tokens_used, timestamp, policy_id, compliant, compliance_note,
	ip_address, user_agent, created_at`

// InsertEvent stores a new event.
func (s *SQLiteStorage) InsertEvent(ctx context.Context, e *usage.Event) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO usage_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Tool), string(e.UsageType),
		e.Description, e.CourseCode, e.AssignmentID, e.Citation,
		e.DurationMinutes, e.TokensUsed, toMicros(e.Timestamp), nullStringPtr(e.PolicyID),
		e.Compliant, e.ComplianceNote, e.IPAddress, e.UserAgent, toMicros(e.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return usage.NewStorageError("sqlite", "insert_event", usage.ErrConflict)
		}
		return usage.NewStorageError("sqlite", "insert_event", err)
	}
	return nil
}

// EventsForUser returns matching events, newest first.
func (s *SQLiteStorage) EventsForUser(ctx context.Context, userID string, filter usage.EventFilter) ([]*usage.Event, error) {
	conditions := []string{"user_id = ?"}
	args := []any{userID}
	conditions, args = appendWindow(conditions, args, "timestamp", filter.Window)
	if filter.Tool != "" {
		conditions = append(conditions, "tool = ?")
		args = append(args, string(filter.Tool))
	}
	if filter.UsageType != "" {
		conditions = append(conditions, "usage_type = ?")
		args = append(args, string(filter.UsageType))
	}

	query := `SELECT ` + eventColumns + ` FROM usage_events WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY timestamp DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "events_for_user", err)
	}
	defer rows.Close()

	events := []*usage.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, usage.NewStorageError("sqlite", "scan_event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "events_for_user", err)
	}
	return events, nil
}

// CountEvents counts a user's events inside the window.
func (s *SQLiteStorage) CountEvents(ctx context.Context, userID string, window usage.Window) (int, error) {
	conditions, args := appendWindow([]string{"user_id = ?"}, []any{userID}, "timestamp", window)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_events WHERE `+strings.Join(conditions, " AND "), args...).Scan(&count)
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "count_events", err)
	}
	return count, nil
}

// ActiveUsers returns users with events at or after since.
func (s *SQLiteStorage) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM usage_events WHERE timestamp >= ? ORDER BY user_id`, toMicros(since))
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "active_users", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, usage.NewStorageError("sqlite", "active_users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "active_users", err)
	}
	return users, nil
}

func scanEvent(sc scanner) (*usage.Event, error) {
	var (
		e                    usage.Event
		tool, usageType      string
		timestamp, createdAt int64
		policyID             sql.NullString
	)
	err := sc.Scan(&e.ID, &e.UserID, &tool, &usageType,
		&e.Description, &e.CourseCode, &e.AssignmentID, &e.Citation,
		&e.DurationMinutes, &e.TokensUsed, &timestamp, &policyID,
		&e.Compliant, &e.ComplianceNote, &e.IPAddress, &e.UserAgent, &createdAt)
	if err != nil {
		return nil, err
	}
	e.Tool = usage.Tool(tool)
	e.UsageType = usage.UsageType(usageType)
	e.Timestamp = fromMicros(timestamp)
	e.CreatedAt = fromMicros(createdAt)
	e.PolicyID = fromNullString(policyID)
	return &e, nil
}

// ---------------------------------------------------------------------------
// Compliance snapshots
// ---------------------------------------------------------------------------

const snapshotColumns = `id, user_id, policy_id, window_kind, period_start, period_end,
	event_count, threshold, score, level, violation_details, created_at`

// InsertSnapshot appends a snapshot.
func (s *SQLiteStorage) InsertSnapshot(ctx context.Context, snap *usage.Snapshot) error {
	details := snap.ViolationDetails
	if details == nil {
		details = []string{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return usage.NewStorageError("sqlite", "insert_snapshot", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO compliance_snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.UserID, nullStringPtr(snap.PolicyID), string(snap.WindowKind),
		toMicros(snap.PeriodStart), toMicros(snap.PeriodEnd),
		snap.EventCount, snap.Threshold, snap.Score, string(snap.Level),
		string(detailsJSON), toMicros(snap.CreatedAt),
	)
	if err != nil {
		return usage.NewStorageError("sqlite", "insert_snapshot", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of the user, or nil.
func (s *SQLiteStorage) LatestSnapshot(ctx context.Context, userID string) (*usage.Snapshot, error) {
	snaps, err := s.Snapshots(ctx, userID, 1)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return snaps[0], nil
}

// Snapshots returns snapshots newest first.
func (s *SQLiteStorage) Snapshots(ctx context.Context, userID string, limit int) ([]*usage.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM compliance_snapshots
		WHERE user_id = ? ORDER BY created_at DESC, seq DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "snapshots", err)
	}
	defer rows.Close()

	snaps := []*usage.Snapshot{}
	for rows.Next() {
		var (
			snap                              usage.Snapshot
			policyID                          sql.NullString
			windowKind, level, details        string
			periodStart, periodEnd, createdAt int64
		)
		err := rows.Scan(&snap.ID, &snap.UserID, &policyID, &windowKind,
			&periodStart, &periodEnd, &snap.EventCount, &snap.Threshold,
			&snap.Score, &level, &details, &createdAt)
		if err != nil {
			return nil, usage.NewStorageError("sqlite", "scan_snapshot", err)
		}
		snap.PolicyID = fromNullString(policyID)
		snap.WindowKind = usage.WindowKind(windowKind)
		snap.Level = usage.Level(level)
		snap.PeriodStart = fromMicros(periodStart)
		snap.PeriodEnd = fromMicros(periodEnd)
		snap.CreatedAt = fromMicros(createdAt)
		if err := json.Unmarshal([]byte(details), &snap.ViolationDetails); err != nil {
			return nil, usage.NewStorageError("sqlite", "scan_snapshot", err)
		}
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "snapshots", err)
	}
	return snaps, nil
}

// ---------------------------------------------------------------------------
// Insights
// ---------------------------------------------------------------------------

const insightColumns = `id, user_id, kind, priority, title, message, template, data,
	created_at, expires_at, is_read, is_dismissed, read_at, dismissed_at`

// InsertInsight stores an insight and its event references.
func (s *SQLiteStorage) InsertInsight(ctx context.Context, in *usage.Insight) error {
	data := in.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return usage.NewStorageError("sqlite", "insert_insight", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return usage.NewStorageError("sqlite", "insert_insight", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO insights (`+insightColumns+`, priority_rank)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.UserID, string(in.Kind), string(in.Priority), in.Title, in.Message,
		in.Template, string(dataJSON), toMicros(in.CreatedAt), nullMicros(in.ExpiresAt),
		in.Read, in.Dismissed, nullMicros(in.ReadAt), nullMicros(in.DismissedAt),
		in.Priority.Rank(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return usage.NewStorageError("sqlite", "insert_insight", usage.ErrConflict)
		}
		return usage.NewStorageError("sqlite", "insert_insight", err)
	}

	for _, eventID := range in.RelatedEvents {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO insight_events (insight_id, event_id) VALUES (?, ?)`, in.ID, eventID)
		if err != nil {
			return usage.NewStorageError("sqlite", "insert_insight_events", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return usage.NewStorageError("sqlite", "insert_insight", err)
	}
	return nil
}

// GetInsight returns an insight by id.
func (s *SQLiteStorage) GetInsight(ctx context.Context, id string) (*usage.Insight, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+insightColumns+` FROM insights WHERE id = ?`, id)
	in, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return nil, usage.NewNotFound("insight", id)
	}
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "get_insight", err)
	}
	if err := s.loadRelatedEvents(ctx, []*usage.Insight{in}); err != nil {
		return nil, err
	}
	return in, nil
}

// InsightsForUser returns a user's insights, highest priority first.
func (s *SQLiteStorage) InsightsForUser(ctx context.Context, userID string, filter usage.InsightFilter) ([]*usage.Insight, error) {
	conditions := []string{"user_id = ?"}
	args := []any{userID}
	switch filter.State {
	case usage.InsightsActive:
		conditions = append(conditions, "is_read = 0", "is_dismissed = 0")
	case usage.InsightsVisible, "":
		conditions = append(conditions, "is_dismissed = 0")
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	query := `SELECT ` + insightColumns + ` FROM insights WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY priority_rank DESC, created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "insights_for_user", err)
	}
	defer rows.Close()

	insights := []*usage.Insight{}
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, usage.NewStorageError("sqlite", "scan_insight", err)
		}
		insights = append(insights, in)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "insights_for_user", err)
	}
	rows.Close()

	if err := s.loadRelatedEvents(ctx, insights); err != nil {
		return nil, err
	}
	return insights, nil
}

// UpdateInsightState persists the read and dismissed flags.
func (s *SQLiteStorage) UpdateInsightState(ctx context.Context, in *usage.Insight) error {
	res, err := s.db.ExecContext(ctx, `UPDATE insights
		SET is_read = ?, is_dismissed = ?, read_at = ?, dismissed_at = ? WHERE id = ?`,
		in.Read, in.Dismissed, nullMicros(in.ReadAt), nullMicros(in.DismissedAt), in.ID)
	if err != nil {
		return usage.NewStorageError("sqlite", "update_insight", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return usage.NewStorageError("sqlite", "update_insight", err)
	}
	if n == 0 {
		return usage.NewNotFound("insight", in.ID)
	}
	return nil
}

// PruneInsights deletes dismissed and expired insights with their references.
func (s *SQLiteStorage) PruneInsights(ctx context.Context, prune usage.InsightPrune) (int64, error) {
	var conditions []string
	var args []any
	if !prune.DismissedBefore.IsZero() {
		conditions = append(conditions, "(is_dismissed = 1 AND dismissed_at IS NOT NULL AND dismissed_at < ?)")
		args = append(args, toMicros(prune.DismissedBefore))
	}
	if !prune.ExpiredBefore.IsZero() {
		conditions = append(conditions, "(expires_at IS NOT NULL AND expires_at < ?)")
		args = append(args, toMicros(prune.ExpiredBefore))
	}
	if len(conditions) == 0 {
		return 0, nil
	}
	where := strings.Join(conditions, " OR ")
	if prune.KeepAchievements {
		where = "(" + where + ") AND kind != ?"
		args = append(args, string(usage.InsightAchievement))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "prune_insights", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM insight_events WHERE insight_id IN (SELECT id FROM insights WHERE `+where+`)`, args...)
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "prune_insights", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE `+where, args...)
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "prune_insights", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, usage.NewStorageError("sqlite", "prune_insights", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, usage.NewStorageError("sqlite", "prune_insights", err)
	}
	return deleted, nil
}

// loadRelatedEvents fills RelatedEvents for the given insights.
func (s *SQLiteStorage) loadRelatedEvents(ctx context.Context, insights []*usage.Insight) error {
	if len(insights) == 0 {
		return nil
	}
	byID := make(map[string]*usage.Insight, len(insights))
	placeholders := make([]string, 0, len(insights))
	args := make([]any, 0, len(insights))
	for _, in := range insights {
		in.RelatedEvents = []string{}
		byID[in.ID] = in
		placeholders = append(placeholders, "?")
		args = append(args, in.ID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT insight_id, event_id FROM insight_events
		WHERE insight_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY insight_id, event_id`, args...)
	if err != nil {
		return usage.NewStorageError("sqlite", "load_insight_events", err)
	}
	defer rows.Close()

	for rows.Next() {
		var insightID, eventID string
		if err := rows.Scan(&insightID, &eventID); err != nil {
			return usage.NewStorageError("sqlite", "load_insight_events", err)
		}
		if in, ok := byID[insightID]; ok {
			in.RelatedEvents = append(in.RelatedEvents, eventID)
		}
	}
	if err := rows.Err(); err != nil {
		return usage.NewStorageError("sqlite", "load_insight_events", err)
	}
	return nil
}

func scanInsight(sc scanner) (*usage.Insight, error) {
	var (
		in                             usage.Insight
		kind, priority, data           string
		createdAt                      int64
		expiresAt, readAt, dismissedAt sql.NullInt64
	)
	err := sc.Scan(&in.ID, &in.UserID, &kind, &priority, &in.Title, &in.Message,
		&in.Template, &data, &createdAt, &expiresAt, &in.Read, &in.Dismissed,
		&readAt, &dismissedAt)
	if err != nil {
		return nil, err
	}
	in.Kind = usage.InsightKind(kind)
	in.Priority = usage.Priority(priority)
	in.CreatedAt = fromMicros(createdAt)
	in.ExpiresAt = fromNullMicros(expiresAt)
	in.ReadAt = fromNullMicros(readAt)
	in.DismissedAt = fromNullMicros(dismissedAt)
	if err := json.Unmarshal([]byte(data), &in.Data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	if len(in.Data) == 0 {
		in.Data = nil
	}
	return &in, nil
}

// ---------------------------------------------------------------------------
// Feedback
// ---------------------------------------------------------------------------

const feedbackColumns = `id, user_id, kind, title, description, url, status, admin_response,
	submitted_at, updated_at, resolved_at`

// InsertFeedback stores a feedback entry.
func (s *SQLiteStorage) InsertFeedback(ctx context.Context, fb *usage.Feedback) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO feedback (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.UserID, string(fb.Kind), fb.Title, fb.Description, fb.URL,
		string(fb.Status), fb.AdminResponse, toMicros(fb.SubmittedAt), toMicros(fb.UpdatedAt),
		nullMicros(fb.ResolvedAt),
	)
	if err != nil {
		return usage.NewStorageError("sqlite", "insert_feedback", err)
	}
	return nil
}

// GetFeedback returns a feedback entry by id.
func (s *SQLiteStorage) GetFeedback(ctx context.Context, id string) (*usage.Feedback, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = ?`, id)
	fb, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return nil, usage.NewNotFound("feedback", id)
	}
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "get_feedback", err)
	}
	return fb, nil
}

// UpdateFeedback persists the review fields of a feedback entry.
func (s *SQLiteStorage) UpdateFeedback(ctx context.Context, fb *usage.Feedback) error {
	res, err := s.db.ExecContext(ctx, `UPDATE feedback
		SET status = ?, admin_response = ?, updated_at = ?, resolved_at = ? WHERE id = ?`,
		string(fb.Status), fb.AdminResponse, toMicros(fb.UpdatedAt), nullMicros(fb.ResolvedAt), fb.ID)
	if err != nil {
		return usage.NewStorageError("sqlite", "update_feedback", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return usage.NewStorageError("sqlite", "update_feedback", err)
	}
	if n == 0 {
		return usage.NewNotFound("feedback", fb.ID)
	}
	return nil
}

// FeedbackForUser returns a user's feedback newest first.
func (s *SQLiteStorage) FeedbackForUser(ctx context.Context, userID string, limit int) ([]*usage.Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE user_id = ? ORDER BY submitted_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, usage.NewStorageError("sqlite", "feedback_for_user", err)
	}
	defer rows.Close()

	out := []*usage.Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, usage.NewStorageError("sqlite", "scan_feedback", err)
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, usage.NewStorageError("sqlite", "feedback_for_user", err)
	}
	return out, nil
}

func scanFeedback(sc scanner) (*usage.Feedback, error) {
	var (
		fb                     usage.Feedback
		kind, status           string
		submittedAt, updatedAt int64
		resolvedAt             sql.NullInt64
	)
	err := sc.Scan(&fb.ID, &fb.UserID, &kind, &fb.Title, &fb.Description, &fb.URL,
		&status, &fb.AdminResponse, &submittedAt, &updatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	fb.Kind = usage.FeedbackKind(kind)
	fb.Status = usage.FeedbackStatus(status)
	fb.SubmittedAt = fromMicros(submittedAt)
	fb.UpdatedAt = fromMicros(updatedAt)
	fb.ResolvedAt = fromNullMicros(resolvedAt)
	return &fb, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// DeleteUserData removes every row owned by the user in one transaction.
func (s *SQLiteStorage) DeleteUserData(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return usage.NewStorageError("sqlite", "delete_user", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM insight_events WHERE insight_id IN (SELECT id FROM insights WHERE user_id = ?)`,
		`DELETE FROM insight_events WHERE event_id IN (SELECT id FROM usage_events WHERE user_id = ?)`,
		`DELETE FROM insights WHERE user_id = ?`,
		`DELETE FROM compliance_snapshots WHERE user_id = ?`,
		`DELETE FROM usage_events WHERE user_id = ?`,
		`DELETE FROM feedback WHERE user_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return usage.NewStorageError("sqlite", "delete_user", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return usage.NewStorageError("sqlite", "delete_user", err)
	}
	s.logger.Info("user data deleted", "user_id", userID)
	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return usage.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return usage.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func appendWindow(conditions []string, args []any, column string, w usage.Window) ([]string, []any) {
	if !w.Start.IsZero() {
		conditions = append(conditions, column+" >= ?")
		args = append(args, toMicros(w.Start))
	}
	if !w.End.IsZero() {
		conditions = append(conditions, column+" < ?")
		args = append(args, toMicros(w.End))
	}
	return conditions, args
}

// Unix microseconds keep sub-millisecond ordering and cover far-future
// sentinels such as 9999-12-31, which overflow int64 nanoseconds.
func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(n int64) time.Time {
	return time.UnixMicro(n).UTC()
}

func nullMicros(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMicros(*t)
}

func fromNullMicros(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMicros(n.Int64)
	return &t
}

func nullStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

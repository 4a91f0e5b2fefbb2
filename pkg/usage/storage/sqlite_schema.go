package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the usage database schema.
// Timestamps are stored as INTEGER unix microseconds (UTC) so both SQLite
// drivers scan them identically.
const Schema = `
-- Policies are never deleted; status changes are appended to policy_revisions.
CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    version TEXT NOT NULL,
    status TEXT NOT NULL,
    effective_from INTEGER NOT NULL,
    effective_to INTEGER,
    max_daily_usage INTEGER NOT NULL,
    max_weekly_usage INTEGER NOT NULL,
    rules TEXT NOT NULL DEFAULT '[]',
    created_by TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (title, version)
);

CREATE TABLE IF NOT EXISTS policy_revisions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    policy_id TEXT NOT NULL REFERENCES policies(id),
    from_status TEXT NOT NULL,
    to_status TEXT NOT NULL,
    changed_by TEXT NOT NULL DEFAULT '',
    changed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_events (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    tool TEXT NOT NULL,
    usage_type TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    course_code TEXT NOT NULL DEFAULT '',
    assignment_id TEXT NOT NULL DEFAULT '',
    citation TEXT NOT NULL DEFAULT '',
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    tokens_used INTEGER NOT NULL DEFAULT 0,
    timestamp INTEGER NOT NULL,
    policy_id TEXT,
    compliant BOOLEAN NOT NULL DEFAULT 1,
    compliance_note TEXT NOT NULL DEFAULT '',
    ip_address TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS compliance_snapshots (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    policy_id TEXT,
    window_kind TEXT NOT NULL,
    period_start INTEGER NOT NULL,
    period_end INTEGER NOT NULL,
    event_count INTEGER NOT NULL,
    threshold INTEGER NOT NULL,
    score INTEGER NOT NULL,
    level TEXT NOT NULL,
    violation_details TEXT NOT NULL DEFAULT '[]',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS insights (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    priority TEXT NOT NULL,
    priority_rank INTEGER NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    template TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL,
    expires_at INTEGER,
    is_read BOOLEAN NOT NULL DEFAULT 0,
    is_dismissed BOOLEAN NOT NULL DEFAULT 0,
    read_at INTEGER,
    dismissed_at INTEGER
);

-- Weak references: events may be deleted independently of insights.
CREATE TABLE IF NOT EXISTS insight_events (
    insight_id TEXT NOT NULL,
    event_id TEXT NOT NULL,
    PRIMARY KEY (insight_id, event_id)
);

CREATE TABLE IF NOT EXISTS feedback (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    url TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    admin_response TEXT NOT NULL DEFAULT '',
    submitted_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    resolved_at INTEGER
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_status ON policies(status, effective_from);
CREATE INDEX IF NOT EXISTS idx_policy_revisions_policy ON policy_revisions(policy_id);
CREATE INDEX IF NOT EXISTS idx_usage_events_user_time ON usage_events(user_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_usage_events_time ON usage_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_events_tool ON usage_events(tool);
CREATE INDEX IF NOT EXISTS idx_snapshots_user ON compliance_snapshots(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_insights_user ON insights(user_id, priority_rank DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_feedback_user ON feedback(user_id, submitted_at DESC);

-- At most one active (unread, undismissed) insight per user, kind and template.
CREATE UNIQUE INDEX IF NOT EXISTS idx_insights_active_template
    ON insights(user_id, kind, template)
    WHERE is_read = 0 AND is_dismissed = 0;
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

package main

import (
	"strconv"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/insights"
	"mercator-hq/callisto/pkg/policy"
	"mercator-hq/callisto/pkg/usage"
)

// Tables adapt domain values to cli.Table for text and CSV output. JSON
// output marshals the underlying values.

const tableTime = "2006-01-02 15:04"

type policyTable []*usage.Policy

func (t policyTable) Header() []string {
	return []string{"id", "title", "version", "status", "effective_from", "effective_to", "daily", "weekly"}
}

func (t policyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		to := "-"
		if p.EffectiveTo != nil {
			to = p.EffectiveTo.Format(tableTime)
		}
		rows = append(rows, []string{
			p.ID,
			p.Title,
			p.Version,
			string(p.Status),
			p.EffectiveFrom.Format(tableTime),
			to,
			strconv.Itoa(p.MaxDailyUsage),
			strconv.Itoa(p.MaxWeeklyUsage),
		})
	}
	return rows
}

type policyDetail struct {
	Policy    *usage.Policy           `json:"policy"`
	Revisions []*usage.PolicyRevision `json:"revisions"`
}

func (d *policyDetail) Header() []string {
	return []string{"policy_id", "from", "to", "changed_by", "changed_at"}
}

func (d *policyDetail) Rows() [][]string {
	rows := make([][]string, 0, len(d.Revisions))
	for _, r := range d.Revisions {
		rows = append(rows, []string{r.PolicyID, string(r.FromStatus), string(r.ToStatus), r.ChangedBy, r.ChangedAt.Format(time.RFC3339)})
	}
	return rows
}

type syncTable struct {
	*policy.SyncResult
}

func (t syncTable) Header() []string {
	return []string{"created", "transitioned", "unchanged", "skipped"}
}

func (t syncTable) Rows() [][]string {
	return [][]string{{
		strconv.Itoa(t.Created),
		strconv.Itoa(t.Transitioned),
		strconv.Itoa(t.Unchanged),
		strconv.Itoa(t.Skipped),
	}}
}

type snapshotTable []*usage.Snapshot

func (t snapshotTable) Header() []string {
	return []string{"user_id", "window", "period_start", "events", "threshold", "score", "level", "details"}
}

func (t snapshotTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{
			s.UserID,
			string(s.WindowKind),
			s.PeriodStart.Format(tableTime),
			strconv.Itoa(s.EventCount),
			strconv.Itoa(s.Threshold),
			strconv.Itoa(s.Score),
			string(s.Level),
			strings.Join(s.ViolationDetails, "; "),
		})
	}
	return rows
}

type insightTable []*usage.Insight

func (t insightTable) Header() []string {
	return []string{"id", "kind", "priority", "title", "read", "dismissed", "created_at"}
}

func (t insightTable) Rows() [][]string {
	insights.SortInsights(t)
	rows := make([][]string, 0, len(t))
	for _, in := range t {
		rows = append(rows, []string{
			in.ID,
			string(in.Kind),
			string(in.Priority),
			in.Title,
			strconv.FormatBool(in.Read),
			strconv.FormatBool(in.Dismissed),
			in.CreatedAt.Format(tableTime),
		})
	}
	return rows
}

type sweepTable struct {
	Users      int    `json:"users"`
	Stored     int    `json:"stored"`
	Failures   int    `json:"failures"`
	Violations int    `json:"violations"`
	Duration   string `json:"duration"`
}

func (t *sweepTable) Header() []string {
	return []string{"users", "stored", "failures", "violations", "duration"}
}

func (t *sweepTable) Rows() [][]string {
	return [][]string{{
		strconv.Itoa(t.Users),
		strconv.Itoa(t.Stored),
		strconv.Itoa(t.Failures),
		strconv.Itoa(t.Violations),
		t.Duration,
	}}
}

type feedbackTable []*usage.Feedback

func (t feedbackTable) Header() []string {
	return []string{"id", "kind", "status", "title", "submitted_at", "resolved_at"}
}

func (t feedbackTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, fb := range t {
		resolved := "-"
		if fb.ResolvedAt != nil {
			resolved = fb.ResolvedAt.Format(tableTime)
		}
		rows = append(rows, []string{
			fb.ID,
			string(fb.Kind),
			string(fb.Status),
			fb.Title,
			fb.SubmittedAt.Format(tableTime),
			resolved,
		})
	}
	return rows
}

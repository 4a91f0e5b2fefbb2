package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/callisto/pkg/usage"
)

// CSVExporter writes usage events as CSV rows.
type CSVExporter struct {
	// IncludeHeader writes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"id", "user_id", "timestamp", "tool", "usage_type",
	"description", "course_code", "assignment_id", "citation",
	"duration_minutes", "tokens_used",
	"policy_id", "compliant", "compliance_note",
	"created_at",
}

// Export writes events to w, flushing every 100 rows.
func (e *CSVExporter) Export(ctx context.Context, events []*usage.Event, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return NewExportError("csv", 0, err)
		}
	}

	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(eventToRow(event)); err != nil {
			return NewExportError("csv", i, err)
		}
		if (i+1)%100 == 0 {
			writer.Flush()
			if err := writer.Error(); err != nil {
				return NewExportError("csv", i+1, err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return NewExportError("csv", len(events), err)
	}
	return nil
}

func eventToRow(e *usage.Event) []string {
	formatTime := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	}

	return []string{
		e.ID,
		e.UserID,
		formatTime(e.Timestamp),
		string(e.Tool),
		string(e.UsageType),
		e.Description,
		e.CourseCode,
		e.AssignmentID,
		e.Citation,
		strconv.Itoa(e.DurationMinutes),
		strconv.Itoa(e.TokensUsed),
		usage.StringValue(e.PolicyID),
		strconv.FormatBool(e.Compliant),
		e.ComplianceNote,
		formatTime(e.CreatedAt),
	}
}

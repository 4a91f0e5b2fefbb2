package export

import (
	"context"
	"encoding/json"
	"io"
)

// JSONExporter writes a Document as JSON.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes doc to w.
func (e *JSONExporter) Export(ctx context.Context, doc *Document, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	count := documentSize(doc)
	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return NewExportError("json", count, err)
	}
	return nil
}

func documentSize(doc *Document) int {
	if doc == nil {
		return 0
	}
	return len(doc.UsageEvents) + len(doc.ComplianceSnapshots) + len(doc.Insights) + len(doc.Feedback)
}

// Package export produces a user's complete data export and deletes a
// user's data on request.
//
// # Document
//
// Export gathers every entity owned by a user into one Document keyed by
// entity type:
//
//	svc := export.NewService(store, logger)
//	doc, err := svc.Export(ctx, "student-1")
//
// # Formats
//
//   - JSON: the whole Document, with optional pretty-printing
//   - CSV: usage events only, one flattened row per event
//
//	err := export.NewJSONExporter(true).Export(ctx, doc, os.Stdout)
//	err := export.NewCSVExporter(true).Export(ctx, doc.UsageEvents, f)
//
// Exporters wrap write and encoding failures in an ExportError.
package export

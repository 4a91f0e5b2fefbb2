// Package usage defines the core data model for AI tool usage tracking.
//
// The package contains the entity types shared by every component of
// Callisto (policies, usage events, compliance snapshots, insights and
// feedback), the time windows used to query the ledger, the ordered rule
// set attached to a policy, and the storage interfaces implemented by the
// backends in the storage subpackage.
//
// # Entities
//
//   - Policy: a versioned set of usage thresholds and rules with an
//     effective date range. Policies are never deleted; status changes are
//     recorded as PolicyRevision entries.
//   - Event: one recorded interaction of a user with an AI tool, stamped with
//     the policy active when it was recorded.
//   - Snapshot: an append-only compliance evaluation for a user and window.
//   - Insight: a generated recommendation or warning. Only the read and
//     dismissed flags change after creation.
//   - Feedback: a user report (bug, feature request, general feedback).
//
// # Windows
//
// Windows select a half-open time range [Start, End). WindowToday is the
// calendar day in the configured location, WindowWeek and WindowMonth are
// rolling 7 and 30 day ranges ending now, WindowAll is unbounded.
//
//	w := usage.NewWindow(usage.WindowToday, time.Now(), time.UTC)
//	events, err := store.EventsForUser(ctx, "student-42", usage.EventFilter{Window: w})
package usage

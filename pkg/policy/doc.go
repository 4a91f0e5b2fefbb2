// Package policy implements the policy store: versioned usage policies with
// effective date ranges, an append-only revision history, and the
// ActivePolicy query used to stamp usage events and evaluate compliance.
//
// # Lifecycle
//
// Policies move draft -> active -> retired, or draft -> retired. Retired is
// terminal and policies are never deleted. Every transition appends a
// usage.PolicyRevision.
//
// # Resolution
//
// ActivePolicy(at) returns the active policy whose [EffectiveFrom,
// EffectiveTo) range contains at. When several qualify the store logs
// usage.ErrPolicyResolutionAmbiguous and picks the one with the latest
// EffectiveFrom, then the latest CreatedAt, then the highest ID.
//
// # File Source
//
// Policies can be declared in a YAML file and synchronized into the store:
//
//	policies:
//	  - title: CS101 AI policy
//	    version: "2025.1"
//	    status: active
//	    effective_from: 2025-09-01
//	    max_daily_usage: 5
//	    max_weekly_usage: 20
//	    rules:
//	      citation_required: true
//	      max_session_minutes: 90
//
// Entries are matched by (title, version). Missing entries are created and
// status changes are applied as transitions. A Watcher re-synchronizes the
// file when it changes on disk.
package policy

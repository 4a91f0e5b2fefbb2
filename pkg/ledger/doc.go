// Package ledger records AI usage events and answers history queries.
//
// Record validates a request, stamps the event with the policy in force at
// its timestamp, flags it non-compliant when the user had already reached
// the daily or weekly limit, stores it, and then hands the user to the
// Dispatcher for insight regeneration. Events are immutable once stored.
//
// The Dispatcher runs regeneration inline by default. In async mode each
// user is hashed onto one worker queue, so regenerations for a user run in
// the order their events were recorded. A full queue falls back to an
// inline run and failed runs are retried, which makes delivery
// at-least-once; regeneration itself is idempotent. A regeneration failure
// is logged and never undoes the recorded event.
package ledger

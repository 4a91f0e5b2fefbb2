// Package compliance evaluates a user's AI usage against the policy in
// force and produces compliance snapshots.
//
// # Scoring
//
// The evaluator counts events (not minutes) in a window and compares the
// count with the policy threshold for that window:
//
//	today           max_daily_usage
//	week            max_weekly_usage
//	month           ceil(max_weekly_usage * 30 / 7)
//	range <= 1 day  max_daily_usage
//	range > 1 day   ceil(max_weekly_usage * days / 7)
//	all             no threshold
//
// With threshold T > 0 and count N the score is
//
//	100 - ceil(100 * max(0, N-T) / T), clamped to [0, 100]
//
// and 100 when T is 0 or no policy applies. The penalty is rounded up so
// rounding never lifts a score into a better level. Levels are compliant
// (>= 80), warning (>= 50) and violation (< 50); six events against a
// threshold of five score exactly 80 and are compliant.
//
// # Rules
//
// Each rule of the policy rule set is checked against the window's events
// in rule-set order, and every failing rule contributes one line to the
// snapshot's violation details. Rule failures are reported but do not
// change the score.
//
// # Sweep
//
// Sweeper evaluates the week window for every user active in the last
// seven days and stores the snapshots. The run command schedules it with
// compliance.sweep_schedule.
package compliance

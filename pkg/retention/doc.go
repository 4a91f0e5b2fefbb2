// Package retention deletes insights that are no longer useful.
//
// Two kinds of insight are pruned:
//
//   - dismissed insights, DismissedDays after they were dismissed
//   - insights whose expires_at has passed
//
// Achievements are never pruned. Their templates are the record that an
// achievement was awarded, and deleting them would let the generator award
// it again.
//
// Prune is usually run by a scheduler.Scheduler:
//
//	pruner := retention.NewPruner(store, retention.Config{DismissedDays: 30}, collector, logger)
//	sched.Add("insight_retention", "0 3 * * *", pruner.Run)
package retention

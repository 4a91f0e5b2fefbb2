// Package insights derives typed recommendations and warnings from a
// user's usage history and manages their read and dismissed state.
//
// Generate runs after every recorded event. It evaluates and stores a
// fresh today snapshot, then applies each rule independently:
//
//   - pattern (low): one tool accounts for more than 70% of at least five
//     events in the last 30 days
//   - compliance (high or medium): the fresh snapshot is a violation or a
//     warning
//   - achievement, streak (low): events on each of the last N calendar
//     days including today
//   - achievement, milestone (medium): the total event count reaches a
//     configured milestone
//   - warning (high): the daily limit was exceeded on 3 or more of the last
//     7 days, whatever the current snapshot says
//
// Every insight carries a template, the deduplication key of the finding.
// A candidate is dropped when an active insight with the same kind and
// template exists. Achievements are awarded once: the streak template
// includes the first day of the streak, and an achievement is never
// recreated for a template that exists in any state.
package insights

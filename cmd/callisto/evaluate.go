package main

import (
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/compliance"
	"mercator-hq/callisto/pkg/usage"
)

var evaluateFlags struct {
	window  string
	start   string
	end     string
	store   bool
	all     bool
	history int
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [user-id]",
	Short: "Evaluate compliance for a user or every active user",
	Long: `Evaluate a user's usage against the policy active now.

With --all, every user with events in the last seven days gets a stored
week-window snapshot, the same work the scheduled compliance sweep does.

Examples:
  # Score this week's usage without storing it
  callisto evaluate s1234567

  # Score a custom range and store the snapshot
  callisto evaluate s1234567 --start 2025-11-01 --end 2025-11-08 --store

  # Show the last 10 stored snapshots
  callisto evaluate s1234567 --history 10

  # Run the sweep now
  callisto evaluate --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.window, "window", "w", "week", "window: today, week, month, all")
	evaluateCmd.Flags().StringVar(&evaluateFlags.start, "start", "", "range start (RFC 3339 or YYYY-MM-DD)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.end, "end", "", "range end, exclusive (RFC 3339 or YYYY-MM-DD)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.store, "store", false, "store the snapshot")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.all, "all", false, "evaluate every recently active user (always stores)")
	evaluateCmd.Flags().IntVar(&evaluateFlags.history, "history", 0, "show this many stored snapshots instead of evaluating")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if evaluateFlags.all == (len(args) == 1) {
		return cli.NewConfigError("user-id", "pass exactly one of a user id or --all")
	}

	return withApp(cmd, func(a *app) error {
		ctx := cmd.Context()

		if evaluateFlags.all {
			sweeper := compliance.NewSweeper(a.evaluator, a.store, a.metrics, a.logger)
			result, err := sweeper.Run(ctx)
			if err != nil {
				return cli.NewCommandError("evaluate", err)
			}
			return output(cmd, &sweepTable{
				Users:      result.Users,
				Stored:     result.Stored,
				Failures:   result.Failures,
				Violations: result.Violations,
				Duration:   result.Duration.Round(time.Millisecond).String(),
			})
		}

		userID := args[0]
		if evaluateFlags.history > 0 {
			snaps, err := a.evaluator.History(ctx, userID, evaluateFlags.history)
			if err != nil {
				return err
			}
			return output(cmd, snapshotTable(snaps))
		}

		window, err := evaluationWindow(a)
		if err != nil {
			return err
		}
		policy, err := a.policies.ActivePolicy(ctx, time.Now())
		if err != nil {
			return err
		}

		var snap *usage.Snapshot
		if evaluateFlags.store {
			snap, err = a.evaluator.EvaluateAndStore(ctx, userID, policy, window)
		} else {
			snap, err = a.evaluator.Evaluate(ctx, userID, policy, window)
		}
		if err != nil {
			return err
		}
		return output(cmd, snapshotTable{snap})
	})
}

// evaluationWindow builds the window from --window or --start/--end.
func evaluationWindow(a *app) (usage.Window, error) {
	loc := a.cfg.Ledger.Location()
	if evaluateFlags.start == "" && evaluateFlags.end == "" {
		kind, err := usage.ParseWindowKind(evaluateFlags.window)
		if err != nil {
			return usage.Window{}, cli.NewConfigError("window", err.Error())
		}
		if kind == usage.WindowRange {
			return usage.Window{}, cli.NewConfigError("window", "range windows need --start and --end")
		}
		return usage.NewWindow(kind, time.Now(), loc), nil
	}

	start, err := parseFlagTime("start", evaluateFlags.start, loc)
	if err != nil {
		return usage.Window{}, err
	}
	end, err := parseFlagTime("end", evaluateFlags.end, loc)
	if err != nil {
		return usage.Window{}, err
	}
	window := usage.RangeWindow(start, end)
	if err := window.Validate(); err != nil {
		return usage.Window{}, cli.NewConfigError("end", err.Error())
	}
	return window, nil
}

// parseFlagTime accepts RFC 3339 or a calendar date in loc.
func parseFlagTime(name, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, cli.NewConfigError(name, "--start and --end must be set together")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, cli.NewConfigError(name, "expected RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}

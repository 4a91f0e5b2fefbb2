package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/retention"
	"mercator-hq/callisto/pkg/usage"
)

var insightsFlags struct {
	all    bool
	state  string
	kind   string
	limit  int
	days   int
	silent bool
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate, list and prune insights",
}

var insightsGenerateCmd = &cobra.Command{
	Use:   "generate [user-id]",
	Short: "Run the insight rules for a user or every recently active user",
	Long: `Run the insight rules now.

Generation is idempotent: running it again without new events creates no
new insights. With --all, every user with events in the last 30 days is
processed and progress is reported on stderr.

Examples:
  callisto insights generate s1234567
  callisto insights generate --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInsightsGenerate,
}

var insightsListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's insights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			list, err := a.insights.List(cmd.Context(), args[0], usage.InsightFilter{
				State: usage.InsightState(insightsFlags.state),
				Kind:  usage.InsightKind(insightsFlags.kind),
				Limit: insightsFlags.limit,
			})
			if err != nil {
				return err
			}
			return output(cmd, insightTable(list))
		})
	},
}

var insightsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired and long-dismissed insights",
	Long: `Delete expired insights and insights dismissed more than --days ago.
Achievements are kept. This is the job the server runs on the retention
schedule.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			days := a.cfg.Retention.DismissedDays
			if cmd.Flags().Changed("days") {
				days = insightsFlags.days
			}
			pruner := retention.NewPruner(a.store, retention.Config{DismissedDays: days}, a.metrics, a.logger)
			deleted, err := pruner.Prune(cmd.Context())
			if err != nil {
				return cli.NewCommandError("insights prune", err)
			}
			return output(cmd, fmt.Sprintf("%d insights deleted", deleted))
		})
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.AddCommand(insightsGenerateCmd, insightsListCmd, insightsPruneCmd)

	insightsGenerateCmd.Flags().BoolVar(&insightsFlags.all, "all", false, "process every user active in the last 30 days")
	insightsGenerateCmd.Flags().BoolVarP(&insightsFlags.silent, "quiet", "q", false, "do not report progress")
	insightsListCmd.Flags().StringVar(&insightsFlags.state, "state", "active", "state: active, visible, all")
	insightsListCmd.Flags().StringVar(&insightsFlags.kind, "kind", "", "kind: pattern, compliance, achievement, warning")
	insightsListCmd.Flags().IntVar(&insightsFlags.limit, "limit", 0, "maximum insights to show (0 = all)")
	insightsPruneCmd.Flags().IntVar(&insightsFlags.days, "days", 0, "dismissed retention in days (default from config)")
}

func runInsightsGenerate(cmd *cobra.Command, args []string) error {
	if insightsFlags.all == (len(args) == 1) {
		return cli.NewConfigError("user-id", "pass exactly one of a user id or --all")
	}

	return withApp(cmd, func(a *app) error {
		ctx := cmd.Context()

		if !insightsFlags.all {
			created, err := a.generator.Generate(ctx, args[0])
			if err != nil {
				return err
			}
			return output(cmd, insightTable(created))
		}

		users, err := a.store.ActiveUsers(ctx, time.Now().AddDate(0, 0, -30))
		if err != nil {
			return err
		}

		var progress cli.ProgressReporter = noProgress{}
		if !insightsFlags.silent {
			progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "users")
		}
		progress.Start(int64(len(users)))

		var created []*usage.Insight
		failures := 0
		for i, userID := range users {
			if err := ctx.Err(); err != nil {
				progress.Error(err)
				return err
			}
			list, err := a.generator.Generate(ctx, userID)
			if err != nil {
				failures++
				a.logger.Error("insight generation failed", "user_id", userID, "error", err)
			}
			created = append(created, list...)
			progress.Update(int64(i + 1))
		}
		progress.Finish()

		if failures > 0 {
			a.logger.Warn("insight generation finished with failures", "failures", failures, "users", len(users))
		}
		return output(cmd, insightTable(created))
	})
}

type noProgress struct{}

func (noProgress) Start(int64)  {}
func (noProgress) Update(int64) {}
func (noProgress) Finish()      {}
func (noProgress) Error(error)  {}

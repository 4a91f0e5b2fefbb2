package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/usage"
)

var feedbackFlags struct {
	status   string
	response string
	limit    int
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Review user feedback",
}

var feedbackListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's feedback, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			list, err := a.feedback.ListForUser(cmd.Context(), args[0], feedbackFlags.limit)
			if err != nil {
				return err
			}
			return output(cmd, feedbackTable(list))
		})
	},
}

var feedbackRespondCmd = &cobra.Command{
	Use:   "respond <feedback-id>",
	Short: "Set the review status of a feedback entry",
	Long: `Set the review status of a feedback entry and optionally record a response.

Resolved and closed entries get a resolved timestamp; moving an entry back
to an open status clears it.

Examples:
  callisto feedback respond 1b2c... --status planned
  callisto feedback respond 1b2c... --status resolved --response "Fixed in 0.2"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			fb, err := a.feedback.Respond(cmd.Context(), args[0], usage.FeedbackStatus(feedbackFlags.status), feedbackFlags.response)
			if err != nil {
				return err
			}
			return output(cmd, feedbackTable{fb})
		})
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.AddCommand(feedbackListCmd, feedbackRespondCmd)

	feedbackListCmd.Flags().IntVar(&feedbackFlags.limit, "limit", 0, "maximum entries to show (default 10)")
	feedbackRespondCmd.Flags().StringVar(&feedbackFlags.status, "status", "", "new, reviewing, planned, resolved, closed")
	feedbackRespondCmd.Flags().StringVar(&feedbackFlags.response, "response", "", "response shown to the user")
	_ = feedbackRespondCmd.MarkFlagRequired("status")
}

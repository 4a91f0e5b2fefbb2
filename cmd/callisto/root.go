package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	format  string
)

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Callisto - AI tool usage compliance and insights",
	Long: `Callisto records how students use AI tools in their coursework, evaluates
that usage against the institution's active policy and generates insights.

It provides:
  - A usage ledger with per-event compliance flags
  - Compliance scoring over today, week, month or custom windows
  - Pattern, compliance, achievement and warning insights
  - Versioned policies synchronized from a YAML file
  - Data export and deletion per user`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "output format: text, json, csv")
}

// output prints data in the format selected by --format.
func output(cmd *cobra.Command, data any) error {
	f, err := cli.ParseFormat(format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(f).FormatTo(cmd.OutOrStdout(), data)
}

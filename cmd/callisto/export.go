package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/export"
)

var exportFlags struct {
	output  string
	compact bool
	confirm bool
}

var exportCmd = &cobra.Command{
	Use:   "export <user-id>",
	Short: "Export everything stored about a user",
	Long: `Export a user's usage events, compliance snapshots, insights and feedback.

The default output is a single JSON document. With --format csv only the
usage events are written, one row per event.

Examples:
  callisto export s1234567 --output s1234567.json
  callisto export s1234567 --format csv > usage.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var purgeCmd = &cobra.Command{
	Use:   "purge <user-id>",
	Short: "Delete everything stored about a user",
	Long: `Delete every usage event, compliance snapshot, insight and feedback entry
owned by the user. Policies are not affected. Requires --yes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !exportFlags.confirm {
			return cli.NewConfigError("yes", "purge deletes data permanently; pass --yes to confirm")
		}
		return withApp(cmd, func(a *app) error {
			if err := a.export.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			return output(cmd, fmt.Sprintf("✓ Data for %s deleted", args[0]))
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, purgeCmd)

	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportFlags.compact, "compact", false, "compact JSON output")
	purgeCmd.Flags().BoolVar(&exportFlags.confirm, "yes", false, "confirm deletion")
}

func runExport(cmd *cobra.Command, args []string) error {
	f, err := cli.ParseFormat(format)
	if err != nil {
		return err
	}

	return withApp(cmd, func(a *app) error {
		doc, err := a.export.Export(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportFlags.output != "" {
			file, err := os.Create(exportFlags.output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer file.Close()
			w = file
		}

		if f == cli.FormatCSV {
			err = export.NewCSVExporter(true).Export(cmd.Context(), doc.UsageEvents, w)
		} else {
			err = export.NewJSONExporter(!exportFlags.compact).Export(cmd.Context(), doc, w)
		}
		if err != nil {
			return err
		}

		if exportFlags.output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d events, %d snapshots, %d insights, %d feedback entries to %s\n",
				len(doc.UsageEvents), len(doc.ComplianceSnapshots), len(doc.Insights), len(doc.Feedback), exportFlags.output)
		}
		return nil
	})
}

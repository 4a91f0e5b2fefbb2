/*
Package cli provides helpers shared by the callisto commands.

Output formatting:

Command results are printed as text, JSON or CSV. Values implementing
Table render as aligned columns in text mode and as rows in CSV mode:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, snapshot); err != nil {
		return err
	}

Progress:

Batch commands that walk every active user report progress:

	progress := cli.NewProgressReporter(os.Stderr, "users")
	progress.Start(int64(len(users)))
	for i, u := range users {
		// evaluate u
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signals:

	ctx, stop := cli.SignalContext()
	defer stop()

Exit codes:

ExitCode maps an error returned by a command to the process exit status.
*/
package cli

/*
Package cli provides command-line utilities for the callisto command.

Output Formatting:

Command results are written as text tables, JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, proxies); err != nil {
		return err
	}

Values implementing Tabular render as aligned columns in text mode and as
rows in CSV mode.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli

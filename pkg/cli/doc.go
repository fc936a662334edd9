/*
Package cli provides command-line interface helpers for the nghttpx command.

Output Formatting:

Commands that print structured results (validate, certs info) support text,
JSON and YAML output:

	formatter, err := cli.NewFormatter(cli.FormatYAML)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, summary); err != nil {
		return err
	}

Signal Handling:

The server runs until SIGINT or SIGTERM. SIGPIPE is ignored so that writes
to a peer that went away surface as EPIPE errors instead of terminating the
process:

	cli.IgnoreSIGPIPE()
	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Errors:

ArgError and CommandError carry the failing command; ExitCode maps any
error returned by a command to the process exit status.
*/
package cli

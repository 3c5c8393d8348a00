// Package cli holds output helpers for the compliance command.
//
// Results are printed either as text tables (types implementing
// TextRenderer) or as JSON, pretty-printed with github.com/tidwall/pretty:
//
//	formatter := cli.NewFormatter(cli.FormatJSON)
//	if err := formatter.FormatTo(os.Stdout, cli.NewEvaluationReport(ev)); err != nil {
//		return err
//	}
//
// ExitCode maps command errors to process exit codes so CI pipelines can
// tell a failed evaluation (1) from a command that could not run (2).
package cli

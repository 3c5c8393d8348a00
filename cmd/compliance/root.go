package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skuldbot/compliance/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Tenant policy pack compliance engine",
	Long: `compliance evaluates automation bots against tenant policy packs.

Packs declare how data classifications may leave a bot, how long they may be
kept, which controls must wrap sensitive nodes and which operations need a
human approval. Packs compose strictest-wins, so binding a tenant to HIPAA and
SOC 2 enforces both.

Exit codes:
  0  evaluation passed (or command succeeded)
  1  evaluation blocked, or a linted pack is invalid
  2  the command could not run`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the mapped exit code.
func Execute() {
	ctx, cancel := cli.SignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil && !errors.Is(err, cli.ErrEvaluationFailed) && !errors.Is(err, cli.ErrLintFailed) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(cli.ExitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", "text", "output format: text, json")
}

// formatter returns the formatter selected by --format.
func formatter() (cli.Formatter, error) {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return cli.NewFormatter(format), nil
}

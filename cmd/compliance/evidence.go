package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"skuldbot/compliance/pkg/cli"
	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/evidence/export"
	"skuldbot/compliance/pkg/evidence/query"
	"skuldbot/compliance/pkg/evidence/recorder"
	"skuldbot/compliance/pkg/evidence/retention"
)

var evidenceFlags struct {
	tenant     string
	bot        string
	evaluation string
	packID     string
	phase      string
	failed     bool
	passed     bool
	since      string
	until      string
	limit      int
	offset     int
	order      string

	exportFormat string
	pretty       bool
	output       string

	dryRun bool
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Query, export and prune evidence records",
	Long: `Work with the evidence store configured under evidence.backend.

Every recorded evaluation is sealed with a SHA-256 hash over its compliance
section; "evidence get --verify" recomputes it.`,
}

var evidenceQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query evidence records",
	Long: `Query evidence records, newest first.

Examples:
  # Failed evaluations of one tenant
  compliance evidence query --tenant acme --failed

  # Everything that used any version of the HIPAA pack in January
  compliance evidence query --pack hipaa --since 2026-01-01T00:00:00Z --until 2026-02-01T00:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runEvidenceQuery,
}

var evidenceGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one evidence record",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvidenceGet,
}

var evidenceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export evidence records as JSON or CSV",
	Long: `Export the records matching the query flags.

Examples:
  compliance evidence export --tenant acme --export-format csv --output acme.csv
  compliance evidence export --failed --pretty`,
	Args: cobra.NoArgs,
	RunE: runEvidenceExport,
}

var evidencePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runEvidencePrune,
}

var verifyRecord bool

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceQueryCmd, evidenceGetCmd, evidenceExportCmd, evidencePruneCmd)

	for _, c := range []*cobra.Command{evidenceQueryCmd, evidenceExportCmd} {
		f := c.Flags()
		f.StringVarP(&evidenceFlags.tenant, "tenant", "t", "", "filter by tenant id")
		f.StringVar(&evidenceFlags.bot, "bot", "", "filter by bot id")
		f.StringVar(&evidenceFlags.evaluation, "evaluation", "", "filter by evaluation id")
		f.StringVar(&evidenceFlags.packID, "pack", "", "filter by pack id (any version)")
		f.StringVar(&evidenceFlags.phase, "phase", "", "filter by phase: compile, runtime")
		f.BoolVar(&evidenceFlags.failed, "failed", false, "only failed evaluations")
		f.BoolVar(&evidenceFlags.passed, "passed", false, "only passed evaluations")
		f.StringVar(&evidenceFlags.since, "since", "", "records at or after (RFC3339)")
		f.StringVar(&evidenceFlags.until, "until", "", "records at or before (RFC3339)")
		f.IntVar(&evidenceFlags.limit, "limit", 0, "max records (default from evidence.query.default_limit)")
		f.IntVar(&evidenceFlags.offset, "offset", 0, "pagination offset")
		f.StringVar(&evidenceFlags.order, "order", "", "sort order: asc, desc")
		c.MarkFlagsMutuallyExclusive("failed", "passed")
	}

	evidenceExportCmd.Flags().StringVar(&evidenceFlags.exportFormat, "export-format", export.FormatJSON, "export format: json, csv")
	evidenceExportCmd.Flags().BoolVar(&evidenceFlags.pretty, "pretty", false, "indent JSON exports")
	evidenceExportCmd.Flags().StringVar(&evidenceFlags.output, "output", "", "output file (default: stdout)")

	evidenceGetCmd.Flags().BoolVar(&verifyRecord, "verify", false, "recompute the record hash")
	evidencePruneCmd.Flags().BoolVar(&evidenceFlags.dryRun, "dry-run", false, "count records without deleting")
}

// buildQuery turns the query flags into a validated query.
func buildQuery(limits query.Limits) (*evidence.Query, error) {
	q := &evidence.Query{
		TenantID:     evidenceFlags.tenant,
		BotID:        evidenceFlags.bot,
		EvaluationID: evidenceFlags.evaluation,
		PackID:       evidenceFlags.packID,
		Phase:        evidenceFlags.phase,
		Limit:        evidenceFlags.limit,
		Offset:       evidenceFlags.offset,
		SortOrder:    evidenceFlags.order,
	}
	switch {
	case evidenceFlags.failed:
		q.Passed = new(bool)
	case evidenceFlags.passed:
		passed := true
		q.Passed = &passed
	}

	var err error
	if q.StartTime, err = parseFlagTime("since", evidenceFlags.since); err != nil {
		return nil, err
	}
	if q.EndTime, err = parseFlagTime("until", evidenceFlags.until); err != nil {
		return nil, err
	}

	limits.ApplyDefaults(q)
	if err := limits.Validate(q); err != nil {
		return nil, cli.NewConfigError("query", err.Error())
	}
	return q, nil
}

func parseFlagTime(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, cli.NewConfigError(flag, err.Error())
	}
	return &t, nil
}

func setupStore() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.openStore(); err != nil {
		a.Close()
		return nil, cli.NewCommandError("evidence", err)
	}
	return a, nil
}

func runEvidenceQuery(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	a, err := setupStore()
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := buildQuery(query.LimitsFromConfig(&a.cfg.Evidence.Query))
	if err != nil {
		return err
	}
	records, err := a.store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("evidence query", err)
	}
	return f.FormatTo(cmd.OutOrStdout(), cli.RecordList(records))
}

func runEvidenceGet(cmd *cobra.Command, args []string) error {
	a, err := setupStore()
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.store.Get(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("evidence get", err)
	}
	if verifyRecord {
		if err := recorder.Verify(record); err != nil {
			return cli.NewCommandError("evidence get", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "hash verified: %s\n", record.Hash)
	}
	return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), record)
}

func runEvidenceExport(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(evidenceFlags.exportFormat, evidenceFlags.pretty)
	if err != nil {
		return cli.NewConfigError("export-format", err.Error())
	}
	a, err := setupStore()
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := buildQuery(query.LimitsFromConfig(&a.cfg.Evidence.Query))
	if err != nil {
		return err
	}
	records, err := a.store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("evidence export", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if evidenceFlags.output != "" {
		file, err := os.Create(evidenceFlags.output)
		if err != nil {
			return cli.NewCommandError("evidence export", err)
		}
		defer file.Close()
		w = file
	}
	if err := exporter.Export(cmd.Context(), records, w); err != nil {
		return cli.NewCommandError("evidence export", err)
	}
	if evidenceFlags.output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records to %s\n", len(records), evidenceFlags.output)
	}
	return nil
}

func runEvidencePrune(cmd *cobra.Command, args []string) error {
	a, err := setupStore()
	if err != nil {
		return err
	}
	defer a.Close()

	pruner := retention.NewPruner(a.store, retention.FromConfig(&a.cfg.Evidence.Retention), a.log.Component("evidence-retention"), a.collector)
	cutoff, ok := pruner.Cutoff()
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "retention is disabled (evidence.retention.days is 0); nothing to prune")
		return nil
	}

	if evidenceFlags.dryRun {
		n, err := a.store.Count(cmd.Context(), &evidence.Query{EndTime: &cutoff})
		if err != nil {
			return cli.NewCommandError("evidence prune", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d records recorded before %s would be deleted\n", n, cutoff.Format(time.RFC3339))
		return nil
	}

	n, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("evidence prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records recorded before %s\n", n, cutoff.Format(time.RFC3339))
	return nil
}

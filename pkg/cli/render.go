package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/engine"
	"skuldbot/compliance/pkg/policy/manager"
	"skuldbot/compliance/pkg/policy/service"
)

// EvaluationReport is the output of the evaluate command.
type EvaluationReport struct {
	ID         string                      `json:"id"`
	EvidenceID string                      `json:"evidenceId,omitempty"`
	Phase      engine.Phase                `json:"phase"`
	Result     *engine.Result              `json:"result"`
	Compliance *evidence.ComplianceSection `json:"compliance"`

	// MissingControls lists injected controls a running bot did not report.
	MissingControls []engine.Violation `json:"missingControls,omitempty"`

	// Drift lists nodes that need more than a baseline evaluation required.
	Drift []engine.DriftEntry `json:"drift,omitempty"`
}

// Passed reports whether the evaluation passed with no missing controls
// and no drift.
func (r *EvaluationReport) Passed() bool {
	return r.Result.Passed && len(r.MissingControls) == 0 && len(r.Drift) == 0
}

// NewEvaluationReport wraps an evaluation for output.
func NewEvaluationReport(ev *service.Evaluation) *EvaluationReport {
	return &EvaluationReport{
		ID:         ev.ID,
		EvidenceID: ev.EvidenceID(),
		Phase:      ev.Phase,
		Result:     ev.Result,
		Compliance: ev.Section,
	}
}

// RenderText writes a human-readable summary.
func (r *EvaluationReport) RenderText(w io.Writer) error {
	res := r.Result
	status := evidence.ResultFail
	if r.Passed() {
		status = evidence.ResultPass
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Evaluation %s (%s): %s\n", r.ID, r.Phase, status)
	fmt.Fprintf(tw, "Packs: %s\n", joinRefs(res.Packs))
	if r.EvidenceID != "" {
		fmt.Fprintf(tw, "Evidence: %s\n", r.EvidenceID)
	}

	writeViolations(tw, "BLOCKS", res.Blocks)
	writeViolations(tw, "WARNINGS", res.Warnings)
	writeViolations(tw, "MISSING CONTROLS", r.MissingControls)

	if len(res.InjectedControls) > 0 {
		fmt.Fprintf(tw, "\nINJECTED CONTROLS\n")
		nodes := make([]string, 0, len(res.InjectedControls))
		for id := range res.InjectedControls {
			nodes = append(nodes, id)
		}
		slices.Sort(nodes)
		for _, id := range nodes {
			fmt.Fprintf(tw, "  %s\t%s\n", id, joinControls(res.InjectedControls[id]))
		}
	}

	if len(r.Drift) > 0 {
		fmt.Fprintf(tw, "\nDRIFT (%d)\n", len(r.Drift))
		for _, d := range r.Drift {
			fmt.Fprintf(tw, "  %s\t+controls %s\t+blocks %d\n", d.NodeID, dash(joinControls(d.AddedControls)), len(d.NewBlocks))
		}
	}

	if len(res.RequiredApprovals) > 0 {
		fmt.Fprintf(tw, "\nAPPROVALS (%d)\n", len(res.RequiredApprovals))
		for _, a := range res.RequiredApprovals {
			fmt.Fprintf(tw, "  %s\t%s\t%s\tescalates %s\n",
				a.NodeID, a.OperationID, strings.Join(a.ApproverRoles, ","), a.EscalationDeadline.Format(time.RFC3339))
		}
	}
	return tw.Flush()
}

func writeViolations(tw *tabwriter.Writer, title string, vs []engine.Violation) {
	if len(vs) == 0 {
		return
	}
	fmt.Fprintf(tw, "\n%s (%d)\n", title, len(vs))
	for _, v := range vs {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", v.Severity, v.Kind, v.NodeID, v.RuleID, v.Message)
	}
}

// PackList is the output of the packs list command.
type PackList []manager.PackSummary

// RenderText writes one row per pack.
func (l PackList) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tTENANT\tSTANDARD\tRULES\tSOURCE")
	for _, p := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Version, dash(p.Tenant), dash(p.BaseStandard), p.Rules, dash(p.Source))
	}
	return tw.Flush()
}

// RecordList is the output of the evidence query command.
type RecordList []*evidence.Record

// RenderText writes one row per record.
func (l RecordList) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEVALUATION\tTENANT\tBOT\tPHASE\tRESULT\tBLOCKS\tWARNINGS\tRECORDED")
	for _, r := range l {
		result := evidence.ResultFail
		if r.Passed {
			result = evidence.ResultPass
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.EvaluationID, dash(r.TenantID), dash(r.BotID), r.Phase, result,
			r.Blocks, r.Warnings, r.RecordedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

// LintResult is the outcome of linting one pack file.
type LintResult struct {
	Path  string `json:"path"`
	Pack  string `json:"pack,omitempty"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// LintReport is the output of the lint command.
type LintReport struct {
	Files []LintResult `json:"files"`
}

// Failed reports whether any file failed.
func (r *LintReport) Failed() bool {
	for _, f := range r.Files {
		if !f.Valid {
			return true
		}
	}
	return false
}

// RenderText writes one line per file.
func (r *LintReport) RenderText(w io.Writer) error {
	valid := 0
	for _, f := range r.Files {
		if f.Valid {
			valid++
			fmt.Fprintf(w, "ok    %s (%s)\n", f.Path, f.Pack)
			continue
		}
		fmt.Fprintf(w, "FAIL  %s\n", f.Path)
		for _, line := range strings.Split(f.Error, "\n") {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d of %d pack files valid\n", valid, len(r.Files))
	return err
}

func joinRefs(refs []pack.Ref) string {
	s := make([]string, len(refs))
	for i, r := range refs {
		s[i] = r.String()
	}
	return strings.Join(s, ", ")
}

func joinControls(cs []pack.ControlType) string {
	s := make([]string, len(cs))
	for i, c := range cs {
		s[i] = string(c)
	}
	return strings.Join(s, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

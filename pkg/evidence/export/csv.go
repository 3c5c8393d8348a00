package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"skuldbot/compliance/pkg/evidence"
)

var csvHeader = []string{
	"id", "evaluation_id", "tenant_id", "bot_id", "phase", "packs",
	"result", "blocks", "warnings", "violated_rules", "injected_controls",
	"required_approvals", "classifications", "hash", "evaluated_at", "recorded_at",
}

// CSVExporter writes one row per record. List columns are joined with ";",
// injected controls are a JSON object.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes records in CSV format.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := recordToRow(record)
		if err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
		if err := writer.Write(row); err != nil {
			return evidence.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return evidence.NewExportError("csv", len(records), err)
	}
	return nil
}

// ExportStream writes records from ch until ch is closed, flushing every
// 100 rows.
func (e *CSVExporter) ExportStream(ctx context.Context, ch <-chan *evidence.Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return evidence.NewExportError("csv", 0, err)
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-ch:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return evidence.NewExportError("csv", count, err)
				}
				return nil
			}

			row, err := recordToRow(record)
			if err != nil {
				return evidence.NewExportError("csv", count, err)
			}
			if err := writer.Write(row); err != nil {
				return evidence.NewExportError("csv", count, err)
			}

			count++
			if count%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return evidence.NewExportError("csv", count, err)
				}
			}
		}
	}
}

func recordToRow(r *evidence.Record) ([]string, error) {
	result := evidence.ResultFail
	if r.Passed {
		result = evidence.ResultPass
	}

	var (
		rules           []string
		controls        = "{}"
		approvals       int
		classifications []string
	)
	if s := r.Section; s != nil {
		for _, v := range s.Violations {
			rules = append(rules, v.RuleID)
		}
		if len(s.InjectedControls) > 0 {
			data, err := json.Marshal(s.InjectedControls)
			if err != nil {
				return nil, err
			}
			controls = string(data)
		}
		approvals = len(s.RequiredApprovals)
		for _, c := range s.ClassificationsDetected {
			classifications = append(classifications, string(c))
		}
	}

	return []string{
		r.ID,
		r.EvaluationID,
		r.TenantID,
		r.BotID,
		r.Phase,
		strings.Join(r.Packs, ";"),
		result,
		strconv.Itoa(r.Blocks),
		strconv.Itoa(r.Warnings),
		strings.Join(rules, ";"),
		controls,
		strconv.Itoa(approvals),
		strings.Join(classifications, ";"),
		r.Hash,
		formatTime(r.EvaluatedAt),
		formatTime(r.RecordedAt),
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

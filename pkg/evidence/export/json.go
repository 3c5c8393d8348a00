package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/tidwall/pretty"

	"skuldbot/compliance/pkg/evidence"
)

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	// Pretty indents the output.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records as a JSON array. An empty slice writes "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	if records == nil {
		records = []*evidence.Record{}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(records)
	if err != nil {
		return evidence.NewExportError("json", len(records), err)
	}
	if e.Pretty {
		data = pretty.Pretty(data)
	}
	if _, err := w.Write(data); err != nil {
		return evidence.NewExportError("json", len(records), err)
	}
	return nil
}

// ExportStream writes records from ch as a JSON array until ch is closed.
func (e *JSONExporter) ExportStream(ctx context.Context, ch <-chan *evidence.Record, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return evidence.NewExportError("json", 0, err)
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-ch:
			if !ok {
				closing := "]"
				if e.Pretty {
					closing = "\n]\n"
				}
				if _, err := io.WriteString(w, closing); err != nil {
					return evidence.NewExportError("json", count, err)
				}
				return nil
			}

			data, err := json.Marshal(record)
			if err != nil {
				return evidence.NewExportError("json", count, err)
			}

			sep := ","
			if count == 0 {
				sep = ""
			}
			if e.Pretty {
				data = bytes.TrimSuffix(pretty.Pretty(data), []byte("\n"))
				sep += "\n"
			}
			if _, err := io.WriteString(w, sep); err != nil {
				return evidence.NewExportError("json", count, err)
			}
			if _, err := w.Write(data); err != nil {
				return evidence.NewExportError("json", count, err)
			}
			count++
		}
	}
}

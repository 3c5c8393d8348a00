// Package export writes evidence records for auditors.
//
// JSON output is an array of records, optionally pretty-printed with
// github.com/tidwall/pretty. CSV output flattens each record to one row:
// packs, violated rule ids and classifications are joined with ";" and the
// injected controls are embedded as a JSON object.
//
//	exporter, err := export.New("csv", false)
//	if err != nil {
//		return err
//	}
//	return exporter.Export(ctx, records, os.Stdout)
//
// ExportStream variants consume a channel so large result sets need not be
// held in memory.
package export

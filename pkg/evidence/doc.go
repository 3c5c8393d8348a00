// Package evidence records compliance evaluations for audit.
//
// Every evaluation the service runs produces a ComplianceSection, the
// "compliance" part of a bot's evidence pack manifest. The section is
// wrapped in a Record together with the tenant, bot and phase, sealed with
// a SHA-256 hash over its canonical JSON, and persisted asynchronously.
//
// # Layers
//
//  1. recorder: builds, redacts and seals records, then writes them through
//     a buffered channel so evaluations never wait on storage
//  2. storage: memory, SQLite (modernc or mattn driver) and PostgreSQL
//     backends behind the Storage interface
//  3. query: validation and defaults for Query
//  4. export: JSON and CSV exporters
//  5. retention: age-based pruning on a cron schedule
//
// # Usage
//
//	store, err := storage.New(&cfg.Evidence, logger)
//	if err != nil {
//		return err
//	}
//	rec := recorder.NewRecorder(store, recorder.FromConfig(&cfg.Evidence), logger, collector)
//	defer rec.Close()
//
//	record, err := rec.Record(ctx, recorder.Entry{
//		EvaluationID: id,
//		TenantID:     "acme",
//		Phase:        "compile",
//		Result:       result,
//		Nodes:        nodes,
//	})
package evidence

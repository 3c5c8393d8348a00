// Package retention prunes evidence records past their retention period.
//
// Evidence is kept for seven years by default (2555 days). A retention of
// 0 days keeps records forever. Records are deleted by RecordedAt, so the
// cutoff is relative to when the evidence was written, not when the bot
// was evaluated.
//
//	pruner := retention.NewPruner(store, retention.FromConfig(&cfg.Evidence.Retention), logger, collector)
//	if err := pruner.Start(ctx); err != nil {
//		return err
//	}
//	defer pruner.Stop()
//
// Prune can also be called directly, e.g. from the CLI.
package retention

// Package query validates evidence queries before they reach storage.
//
// Validation rejects negative pagination, pages above the configured
// maximum, unknown sort orders and phases, and inverted time ranges.
// ApplyDefaults sets the page size and orders newest first.
//
//	limits := query.LimitsFromConfig(&cfg.Evidence.Query)
//	limits.ApplyDefaults(q)
//	if err := limits.Validate(q); err != nil {
//		return err
//	}
//	records, err := store.Query(ctx, q)
package query

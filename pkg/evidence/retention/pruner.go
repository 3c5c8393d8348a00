package retention

import (
	"context"
	"log/slog"
	"time"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/telemetry/metrics"
)

// DefaultRetentionDays keeps evidence for seven years.
const DefaultRetentionDays = 2555

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain evidence.
	// 0 means keep evidence forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: DefaultRetentionDays,
		PruneSchedule: "0 3 * * *",
	}
}

// FromConfig converts the evidence retention section.
func FromConfig(cfg *config.RetentionConfig) *Config {
	return &Config{
		RetentionDays: cfg.Days,
		PruneSchedule: cfg.PruneSchedule,
	}
}

// Pruner deletes evidence records older than the retention period.
type Pruner struct {
	storage   evidence.Storage
	config    *Config
	logger    *slog.Logger
	metrics   *metrics.Collector
	now       func() time.Time
	scheduler *Scheduler
}

// NewPruner creates a pruner. logger and collector may be nil.
func NewPruner(storage evidence.Storage, cfg *Config, logger *slog.Logger, collector *metrics.Collector) *Pruner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		storage: storage,
		config:  cfg,
		logger:  logger.With("component", "evidence.retention"),
		metrics: collector,
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Cutoff returns the newest RecordedAt that Prune would delete, or false
// when retention is unlimited.
func (p *Pruner) Cutoff() (time.Time, bool) {
	if p.config.RetentionDays <= 0 {
		return time.Time{}, false
	}
	return p.now().UTC().AddDate(0, 0, -p.config.RetentionDays), true
}

// Prune deletes records recorded before the retention cutoff and returns
// how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff, ok := p.Cutoff()
	if !ok {
		p.logger.Debug("retention unlimited, nothing to prune")
		return 0, nil
	}

	p.logger.Debug("pruning evidence",
		"cutoff_time", cutoff,
		"retention_days", p.config.RetentionDays,
	)

	deleted, err := p.storage.Delete(ctx, &evidence.Query{EndTime: &cutoff})
	if err != nil {
		return 0, evidence.NewRetentionError(p.config.RetentionDays, err)
	}
	p.metrics.RecordEvidencePruned(deleted)

	if deleted == 0 {
		p.logger.Debug("no records pruned", "retention_days", p.config.RetentionDays)
	} else {
		p.logger.Info("evidence pruning completed",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}
	return deleted, nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

// LastPruning returns the result of the latest scheduled pruning, or nil.
func (p *Pruner) LastPruning() *RunResult {
	return p.scheduler.LastRun()
}

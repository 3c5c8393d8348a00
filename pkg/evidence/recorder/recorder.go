package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/policy/engine"
	"skuldbot/compliance/pkg/telemetry/logging"
	"skuldbot/compliance/pkg/telemetry/metrics"
)

var errNilResult = errors.New("nil evaluation result")

// Config contains configuration for the evidence recorder.
type Config struct {
	// Enabled enables evidence persistence. A disabled recorder still
	// builds and seals records but never writes them.
	Enabled bool

	// Backend labels metrics and logs, e.g. "sqlite".
	Backend string

	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds a single storage write and how long Record waits
	// for room in a full queue.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// MaxMessageLength truncates violation messages. 0 disables truncation.
	// Default: 500
	MaxMessageLength int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		Backend:          "memory",
		AsyncBuffer:      1000,
		WriteTimeout:     5 * time.Second,
		MaxMessageLength: 500,
	}
}

// FromConfig converts the evidence section of the service configuration.
func FromConfig(cfg *config.EvidenceConfig) *Config {
	c := DefaultConfig()
	c.Enabled = cfg.Enabled
	c.Backend = cfg.Backend
	if cfg.Recorder.AsyncBuffer > 0 {
		c.AsyncBuffer = cfg.Recorder.AsyncBuffer
	}
	if cfg.Recorder.WriteTimeout > 0 {
		c.WriteTimeout = cfg.Recorder.WriteTimeout
	}
	return c
}

// Entry is an evaluation to record.
type Entry struct {
	EvaluationID string
	TenantID     string
	BotID        string
	Phase        engine.Phase
	Result       *engine.Result
	Nodes        []engine.NodeContext
}

// Recorder seals evaluation results into evidence records and writes them
// to storage from a background goroutine.
type Recorder struct {
	storage  evidence.Storage
	config   *Config
	logger   *slog.Logger
	metrics  *metrics.Collector
	redactor *logging.Redactor
	now      func() time.Time

	recordChan chan *evidence.Record
	mu         sync.RWMutex
	closed     bool
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewRecorder creates a recorder and starts its writer goroutine. logger
// and collector may be nil.
func NewRecorder(storage evidence.Storage, cfg *Config, logger *slog.Logger, collector *metrics.Collector) *Recorder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = DefaultConfig().AsyncBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     cfg,
		logger:     logger.With("component", "evidence.recorder"),
		metrics:    collector,
		redactor:   logging.NewRedactor(),
		now:        time.Now,
		recordChan: make(chan *evidence.Record, cfg.AsyncBuffer),
		done:       make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("evidence recorder initialized",
		"enabled", cfg.Enabled,
		"backend", cfg.Backend,
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)
	return r
}

// Record builds a sealed record for entry and enqueues it for writing. It
// returns the record immediately; the write happens in the background.
//
// When the queue stays full for WriteTimeout the record is dropped and a
// *evidence.RecorderError wrapping context.DeadlineExceeded is returned
// along with the record.
func (r *Recorder) Record(ctx context.Context, entry Entry) (*evidence.Record, error) {
	record, err := r.Build(entry)
	if err != nil {
		return nil, err
	}
	if !r.config.Enabled {
		return record, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return record, evidence.NewRecorderError(record.ID, evidence.ErrRecorderClosed)
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r.recordChan <- record:
		r.logger.Debug("evidence record enqueued",
			"record_id", record.ID,
			"evaluation_id", record.EvaluationID,
		)
		return record, nil
	case <-timer.C:
		r.metrics.RecordEvidenceDropped()
		r.logger.Error("evidence queue full, dropping record",
			"record_id", record.ID,
			"evaluation_id", record.EvaluationID,
			"queue_capacity", r.config.AsyncBuffer,
		)
		return record, evidence.NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-ctx.Done():
		r.metrics.RecordEvidenceDropped()
		return record, evidence.NewRecorderError(record.ID, ctx.Err())
	}
}

// Build creates a sealed record for entry without storing it.
func (r *Recorder) Build(entry Entry) (*evidence.Record, error) {
	if entry.Result == nil {
		return nil, evidence.NewRecorderError("", errNilResult)
	}

	section := redactSection(
		evidence.NewComplianceSection(entry.Result, entry.Nodes),
		r.redactor,
		r.config.MaxMessageLength,
	)
	hash, err := HashSection(section)
	if err != nil {
		return nil, evidence.NewRecorderError("", err)
	}

	phase := entry.Phase
	if phase == "" {
		phase = engine.PhaseCompile
	}

	return &evidence.Record{
		ID:           uuid.NewString(),
		EvaluationID: entry.EvaluationID,
		TenantID:     entry.TenantID,
		BotID:        entry.BotID,
		Phase:        string(phase),
		Packs:        section.Packs,
		Passed:       entry.Result.Passed,
		Blocks:       len(entry.Result.Blocks),
		Warnings:     len(entry.Result.Warnings),
		Section:      section,
		Hash:         hash,
		EvaluatedAt:  entry.Result.EvaluatedAt,
		RecordedAt:   r.now().UTC(),
	}, nil
}

// Close stops accepting records, drains the queue and waits for pending
// writes. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("evidence recorder shut down")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)
		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *evidence.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.storage.Store(ctx, record)
	duration := time.Since(start)
	r.metrics.RecordEvidenceWrite(r.config.Backend, duration, err)

	if err != nil {
		r.logger.Error("failed to store evidence record",
			"record_id", record.ID,
			"evaluation_id", record.EvaluationID,
			"error", err,
		)
		return
	}

	r.logger.Info("evidence recorded",
		"record_id", record.ID,
		"evaluation_id", record.EvaluationID,
		"tenant_id", record.TenantID,
		"passed", record.Passed,
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow evidence write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

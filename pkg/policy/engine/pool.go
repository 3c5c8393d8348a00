package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"skuldbot/compliance/pkg/pack"
)

// Pool runs evaluations on a fixed set of worker goroutines. Evaluation is
// CPU bound, so the pool is normally sized to the number of CPUs.
type Pool struct {
	evaluator *Evaluator
	logger    *slog.Logger
	jobs      chan *job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	ctx       context.Context
	composite *pack.Composite
	nodes     []NodeContext
	now       time.Time
	done      chan jobResult
}

type jobResult struct {
	result *Result
	err    error
}

// NewPool starts cfg.Workers goroutines that evaluate with ev.
func NewPool(ev *Evaluator, cfg *EngineConfig, logger *slog.Logger) *Pool {
	if cfg == nil {
		cfg = ev.config
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		evaluator: ev,
		logger:    logger.With("component", "evaluation-pool"),
		jobs:      make(chan *job, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Info("evaluation pool started", "workers", cfg.Workers, "queue_size", cfg.QueueSize)
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		if err := j.ctx.Err(); err != nil {
			j.done <- jobResult{err: err}
			continue
		}
		res, err := p.evaluator.Evaluate(j.ctx, j.composite, j.nodes, j.now)
		j.done <- jobResult{result: res, err: err}
	}
}

// Evaluate queues an evaluation and waits for its result. It returns
// ctx.Err() if ctx ends before a worker picks the job up or finishes it,
// and ErrPoolClosed after Close.
func (p *Pool) Evaluate(ctx context.Context, c *pack.Composite, nodes []NodeContext, now time.Time) (*Result, error) {
	j := &job{
		ctx:       ctx,
		composite: c,
		nodes:     nodes,
		now:       now,
		done:      make(chan jobResult, 1),
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	select {
	case p.jobs <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case r := <-j.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting work, lets queued jobs finish and waits for the
// workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("evaluation pool stopped")
}

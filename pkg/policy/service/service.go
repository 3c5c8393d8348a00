package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/evidence/recorder"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/engine"
	"skuldbot/compliance/pkg/telemetry/logging"
	"skuldbot/compliance/pkg/telemetry/metrics"
	"skuldbot/compliance/pkg/telemetry/tracing"
)

const tracerName = "skuldbot/compliance/pkg/policy/service"

// ErrInvalidRequest is returned for requests rejected before evaluation.
var ErrInvalidRequest = errors.New("invalid evaluation request")

// Resolver turns pack references into a composite. *manager.Registry
// implements it.
type Resolver interface {
	ResolveComposite(tenantID string, refs []pack.Ref) (*pack.Composite, error)
	ResolveTenant(tenantID string) (*pack.Composite, error)
}

// Evaluator runs one evaluation. Both *engine.Evaluator and *engine.Pool
// implement it.
type Evaluator interface {
	Evaluate(ctx context.Context, c *pack.Composite, nodes []engine.NodeContext, now time.Time) (*engine.Result, error)
}

// Request is one evaluation request.
type Request struct {
	TenantID string `json:"tenantId"`
	BotID    string `json:"botId"`

	// Packs pins the packs to evaluate. When empty the tenant's bound
	// packs are used.
	Packs []pack.Ref `json:"packs"`

	Nodes []engine.NodeContext `json:"nodes"`

	// Now is the evaluation time. Zero means the service clock.
	Now time.Time `json:"now"`

	// Phase defaults to compile.
	Phase engine.Phase `json:"phase"`
}

// Evaluation is the outcome of Service.Evaluate.
type Evaluation struct {
	ID      string                      `json:"id"`
	Phase   engine.Phase                `json:"phase"`
	Result  *engine.Result              `json:"result"`
	Section *evidence.ComplianceSection `json:"compliance"`

	// Record is the sealed evidence record, nil without a recorder.
	Record *evidence.Record `json:"-"`
}

// EvidenceID returns the id of the evidence record, if any.
func (e *Evaluation) EvidenceID() string {
	if e.Record == nil {
		return ""
	}
	return e.Record.ID
}

// Service resolves packs, evaluates bots and records evidence.
type Service struct {
	resolver  Resolver
	evaluator Evaluator
	recorder  *recorder.Recorder
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder seals every evaluation into an evidence record.
func WithRecorder(r *recorder.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithMetrics records evaluation metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithTracer sets the tracer for evaluation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithClock sets the clock used when a request carries no time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service.
func New(resolver Resolver, evaluator Evaluator, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		resolver:  resolver,
		evaluator: evaluator,
		tracer:    otel.Tracer(tracerName),
		logger:    logger.With("component", "evaluation-service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate resolves the request's composite, evaluates its nodes and
// records the result. A failing evaluation (Passed false) is not an error.
// Evidence write failures are logged and do not fail the evaluation.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Evaluation, error) {
	ev := &Evaluation{ID: uuid.NewString(), Phase: req.Phase}
	if ev.Phase == "" {
		ev.Phase = engine.PhaseCompile
	}

	ctx = logging.WithEvaluationID(ctx, ev.ID)
	if req.TenantID != "" {
		ctx = logging.WithTenantID(ctx, req.TenantID)
	}
	if req.BotID != "" {
		ctx = logging.WithBotID(ctx, req.BotID)
	}

	ctx, span := s.tracer.Start(ctx, "compliance.evaluate")
	defer span.End()
	tracing.SetRequestAttributes(span, req.TenantID, req.BotID, ev.ID, string(ev.Phase))
	logger := logging.Contextual(ctx, s.logger)

	if !ev.Phase.Valid() {
		err := fmt.Errorf("%w: unknown phase %q", ErrInvalidRequest, req.Phase)
		s.fail(span, "unknown", "invalid_request", err)
		return nil, err
	}

	composite, err := s.resolve(req)
	if err != nil {
		s.fail(span, ev.Phase, "resolve", err)
		return nil, err
	}
	tracing.NewAttributeBuilder().
		WithStrings(tracing.AttrPacks, refStrings(composite.Refs)).
		WithInt(tracing.AttrNodeCount, len(req.Nodes)).
		Apply(span)

	now := req.Now
	if now.IsZero() {
		now = s.now()
	}

	start := time.Now()
	result, err := s.evaluator.Evaluate(ctx, composite, req.Nodes, now)
	duration := time.Since(start)
	if err != nil {
		s.fail(span, ev.Phase, errorReason(err), err)
		return nil, err
	}
	ev.Result = result

	s.observe(ev.Phase, result, duration)
	tracing.SetResultAttributes(span, result.Passed, len(result.Blocks), len(result.Warnings), len(result.RequiredApprovals))

	if s.recorder != nil {
		record, err := s.recorder.Record(ctx, recorder.Entry{
			EvaluationID: ev.ID,
			TenantID:     req.TenantID,
			BotID:        req.BotID,
			Phase:        ev.Phase,
			Result:       result,
			Nodes:        req.Nodes,
		})
		if err != nil {
			logger.Warn("evidence not recorded", "error", err)
		}
		if record != nil {
			ev.Record = record
			ev.Section = record.Section
			span.SetAttributes(attribute.String(tracing.AttrEvidenceID, record.ID))
		}
	}
	if ev.Section == nil {
		ev.Section = evidence.NewComplianceSection(result, req.Nodes)
	}

	logger.Info("evaluation completed",
		"phase", ev.Phase,
		"packs", len(composite.Refs),
		"nodes", len(req.Nodes),
		"passed", result.Passed,
		"blocks", len(result.Blocks),
		"warnings", len(result.Warnings),
		"approvals", len(result.RequiredApprovals),
		"duration_ms", duration.Milliseconds(),
	)
	return ev, nil
}

func (s *Service) resolve(req Request) (*pack.Composite, error) {
	if len(req.Packs) == 0 {
		if req.TenantID == "" {
			return nil, fmt.Errorf("%w: packs or tenantId required", ErrInvalidRequest)
		}
		return s.resolver.ResolveTenant(req.TenantID)
	}
	return s.resolver.ResolveComposite(req.TenantID, req.Packs)
}

func (s *Service) observe(phase engine.Phase, result *engine.Result, duration time.Duration) {
	s.metrics.RecordEvaluation(string(phase), result.Passed, duration)
	for _, v := range result.Blocks {
		s.metrics.RecordViolation(string(v.Kind), string(v.Severity), v.RuleID)
	}
	for _, v := range result.Warnings {
		s.metrics.RecordViolation(string(v.Kind), string(v.Severity), v.RuleID)
	}
	for _, controls := range result.InjectedControls {
		for _, c := range controls {
			s.metrics.RecordInjectedControl(string(c))
		}
	}
	s.metrics.RecordApprovals(len(result.RequiredApprovals))
}

func (s *Service) fail(span trace.Span, phase engine.Phase, reason string, err error) {
	s.metrics.RecordEvaluationError(string(phase), reason)
	tracing.SetError(span, err)
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidContext):
		return "invalid_context"
	case errors.Is(err, engine.ErrPoolClosed):
		return "pool_closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

func refStrings(refs []pack.Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

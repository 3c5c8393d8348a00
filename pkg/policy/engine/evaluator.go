package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

const tracerName = "skuldbot/compliance/pkg/policy/engine"

// Evaluator runs the compliance pipeline over a composite pack and a set
// of node contexts. It holds no mutable state; a single Evaluator may be
// used from any number of goroutines.
type Evaluator struct {
	config   *EngineConfig
	matcher  *Matcher
	enforcer *Enforcer
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTracer sets the tracer used for evaluation spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Evaluator) {
		e.tracer = t
	}
}

// NewEvaluator creates an evaluator. A nil config uses
// DefaultEngineConfig and a nil logger uses slog.Default.
func NewEvaluator(config *EngineConfig, logger *slog.Logger, opts ...Option) (*Evaluator, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Evaluator{
		config:   config,
		matcher:  NewMatcher(config.Lattice),
		enforcer: NewEnforcer(),
		logger:   logger.With("component", "evaluator"),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate runs INIT, MATCH, RESOLVE_CONTROLS, RESOLVE_APPROVALS,
// CHECK_EGRESS_RETENTION and FINALIZE in a single pass. Only INIT can
// fail; every later finding is part of the returned result. now is used
// for approval deadlines and is never read from the clock.
func (e *Evaluator) Evaluate(ctx context.Context, c *pack.Composite, nodes []NodeContext, now time.Time) (*Result, error) {
	_, span := e.tracer.Start(ctx, "engine.Evaluate", trace.WithAttributes(
		attribute.Int("compliance.nodes", len(nodes)),
		attribute.StringSlice("compliance.packs", refStrings(c)),
	))
	defer span.End()

	// INIT
	span.AddEvent(string(StateInit))
	if c == nil {
		span.SetStatus(codes.Error, ErrNilComposite.Error())
		return nil, ErrNilComposite
	}
	nodes, err := e.prepare(nodes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid context")
		return nil, err
	}

	// MATCH
	span.AddEvent(string(StateMatch))
	matches := e.matcher.MatchAll(c, nodes)

	var blocks, warnings []Violation
	for _, m := range matches {
		switch m.Rule.Then.Action {
		case pack.ActionBlock:
			blocks = append(blocks, ruleViolation(m))
		case pack.ActionWarn:
			warnings = append(warnings, ruleViolation(m))
		}
	}

	// RESOLVE_CONTROLS
	span.AddEvent(string(StateResolveControls))
	controls := ResolveControls(matches)
	for i := range nodes {
		for _, class := range nodes[i].DataClassifications {
			mergeControls(controls, nodes[i].NodeID, e.enforcer.BaselineControls(class, c))
		}
	}

	// RESOLVE_APPROVALS
	span.AddEvent(string(StateResolveApprovals))
	approvals := ResolveApprovals(c, nodes, controls, now, e.config.DefaultEscalation)

	// CHECK_EGRESS_RETENTION
	span.AddEvent(string(StateCheckEgressRetention))
	for i := range nodes {
		b, w := e.enforce(c, &nodes[i])
		blocks = append(blocks, b...)
		warnings = append(warnings, w...)
	}

	// FINALIZE
	span.AddEvent(string(StateFinalize))
	slices.SortFunc(blocks, compareViolations)
	slices.SortFunc(warnings, compareViolations)

	result := &Result{
		Passed:            len(blocks) == 0,
		Blocks:            nonNil(blocks),
		Warnings:          nonNil(warnings),
		InjectedControls:  sortedControls(controls),
		RequiredApprovals: nonNil(approvals),
		Packs:             slices.Clone(c.Refs),
		EvaluatedAt:       now,
	}

	span.SetAttributes(
		attribute.Bool("compliance.passed", result.Passed),
		attribute.Int("compliance.blocks", len(result.Blocks)),
		attribute.Int("compliance.warnings", len(result.Warnings)),
		attribute.Int("compliance.approvals", len(result.RequiredApprovals)),
	)
	e.logger.Debug("evaluation complete",
		"packs", refStrings(c),
		"nodes", len(nodes),
		"matches", len(matches),
		"passed", result.Passed,
		"blocks", len(result.Blocks),
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// prepare validates nodes and returns a copy with defaults applied. An
// empty egress is read as NONE and repeated classifications collapse.
func (e *Evaluator) prepare(nodes []NodeContext) ([]NodeContext, error) {
	out := make([]NodeContext, len(nodes))
	seen := make(map[string]struct{}, len(nodes))

	for i, n := range nodes {
		if strings.TrimSpace(n.NodeID) == "" {
			return nil, &ContextError{Index: i, Field: "nodeId", Message: "node id is required"}
		}
		if _, dup := seen[n.NodeID]; dup {
			return nil, &ContextError{Index: i, NodeID: n.NodeID, Field: "nodeId", Message: "duplicate node id"}
		}
		seen[n.NodeID] = struct{}{}

		if n.Egress == "" {
			n.Egress = lattice.EgressNone
		}
		if !n.Egress.Valid() {
			return nil, &ContextError{
				Index: i, NodeID: n.NodeID, Field: "egress",
				Message: fmt.Sprintf("unknown scope %q", n.Egress),
				Cause:   lattice.ErrUnknownEgress,
			}
		}
		if err := e.config.Lattice.Validate(n.DataClassifications); err != nil {
			return nil, &ContextError{
				Index: i, NodeID: n.NodeID, Field: "dataClassifications",
				Message: "classification not in lattice",
				Cause:   err,
			}
		}
		if n.RetentionDays != nil && *n.RetentionDays < 0 {
			return nil, &ContextError{Index: i, NodeID: n.NodeID, Field: "retentionDays", Message: "cannot be negative"}
		}

		// Classifications are a set.
		n.DataClassifications = slices.Clone(n.DataClassifications)
		slices.Sort(n.DataClassifications)
		n.DataClassifications = slices.Compact(n.DataClassifications)
		out[i] = n
	}
	return out, nil
}

// enforce runs the egress and retention floor for one node.
func (e *Evaluator) enforce(c *pack.Composite, node *NodeContext) (blocks, warnings []Violation) {
	for _, class := range node.DataClassifications {
		var ev *EgressViolation
		if err := e.enforcer.CheckEgress(class, node.Egress, c); errors.As(err, &ev) {
			ev.NodeID = node.NodeID
			blocks = append(blocks, ev.Violation())
		}
		if node.RetentionDays == nil {
			continue
		}
		var rv *RetentionViolation
		if err := e.enforcer.CheckRetention(class, *node.RetentionDays, c); errors.As(err, &rv) {
			rv.NodeID = node.NodeID
			if rv.Soft {
				warnings = append(warnings, rv.Violation())
			} else {
				blocks = append(blocks, rv.Violation())
			}
		}
	}
	return blocks, warnings
}

func ruleViolation(m Match) Violation {
	msg := m.Rule.Description
	if msg == "" {
		msg = fmt.Sprintf("rule %s matched (%s)", m.Rule.ID, m.Rule.When)
	}
	return Violation{
		RuleID:   m.Rule.ID,
		NodeID:   m.Node.NodeID,
		Severity: m.Rule.Then.Severity,
		Kind:     KindRule,
		Message:  msg,
		Pack:     m.Source,
	}
}

// compareViolations orders by severity (highest first), then rule, node
// and message.
func compareViolations(a, b Violation) int {
	if n := cmp.Compare(b.Severity.Rank(), a.Severity.Rank()); n != 0 {
		return n
	}
	if n := strings.Compare(a.RuleID, b.RuleID); n != 0 {
		return n
	}
	if n := strings.Compare(a.NodeID, b.NodeID); n != 0 {
		return n
	}
	if n := strings.Compare(a.Message, b.Message); n != 0 {
		return n
	}
	return a.Pack.Compare(b.Pack)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func refStrings(c *pack.Composite) []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.Refs))
	for i, r := range c.Refs {
		out[i] = r.String()
	}
	return out
}

package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys under the "compliance.*" namespace.
const (
	AttrTenantID     = "compliance.tenant_id"
	AttrBotID        = "compliance.bot_id"
	AttrEvaluationID = "compliance.evaluation_id"
	AttrPhase        = "compliance.phase"
	AttrPacks        = "compliance.packs"
	AttrNodeCount    = "compliance.nodes"
	AttrPassed       = "compliance.passed"
	AttrBlocks       = "compliance.blocks"
	AttrWarnings     = "compliance.warnings"
	AttrApprovals    = "compliance.approvals"
	AttrEvidenceID   = "compliance.evidence_id"
	AttrBackend      = "compliance.evidence.backend"
)

// SetRequestAttributes sets the identity of an evaluation request on span.
// Empty values are skipped.
func SetRequestAttributes(span trace.Span, tenantID, botID, evaluationID, phase string) {
	NewAttributeBuilder().
		WithString(AttrTenantID, tenantID).
		WithString(AttrBotID, botID).
		WithString(AttrEvaluationID, evaluationID).
		WithString(AttrPhase, phase).
		Apply(span)
}

// SetResultAttributes records the outcome counts of an evaluation.
func SetResultAttributes(span trace.Span, passed bool, blocks, warnings, approvals int) {
	span.SetAttributes(
		attribute.Bool(AttrPassed, passed),
		attribute.Int(AttrBlocks, blocks),
		attribute.Int(AttrWarnings, warnings),
		attribute.Int(AttrApprovals, approvals),
	)
}

// AttributeBuilder accumulates span attributes.
//
//	attrs := NewAttributeBuilder().
//		WithString(AttrTenantID, tenant).
//		WithStrings(AttrPacks, refs).
//		Build()
//	ctx, span := tracer.Start(ctx, "evaluate", attrs)
type AttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewAttributeBuilder creates an empty builder.
func NewAttributeBuilder() *AttributeBuilder {
	return &AttributeBuilder{}
}

// WithString adds key=value unless value is empty.
func (ab *AttributeBuilder) WithString(key, value string) *AttributeBuilder {
	if value != "" {
		ab.attrs = append(ab.attrs, attribute.String(key, value))
	}
	return ab
}

// WithStrings adds a string slice attribute unless values is empty.
func (ab *AttributeBuilder) WithStrings(key string, values []string) *AttributeBuilder {
	if len(values) > 0 {
		ab.attrs = append(ab.attrs, attribute.StringSlice(key, values))
	}
	return ab
}

// WithInt adds an integer attribute.
func (ab *AttributeBuilder) WithInt(key string, value int) *AttributeBuilder {
	ab.attrs = append(ab.attrs, attribute.Int(key, value))
	return ab
}

// Build returns the attributes as a span start option.
func (ab *AttributeBuilder) Build() trace.SpanStartOption {
	return trace.WithAttributes(ab.attrs...)
}

// Apply sets the attributes on an existing span.
func (ab *AttributeBuilder) Apply(span trace.Span) {
	if len(ab.attrs) > 0 {
		span.SetAttributes(ab.attrs...)
	}
}

// Attributes returns the accumulated attributes.
func (ab *AttributeBuilder) Attributes() []attribute.KeyValue {
	return ab.attrs
}

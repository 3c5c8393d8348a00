package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

// Context keys for common log fields.
const (
	TenantIDKey     contextKey = "tenant_id"
	BotIDKey        contextKey = "bot_id"
	EvaluationIDKey contextKey = "evaluation_id"
	RequestIDKey    contextKey = "request_id"
)

// WithTenantID adds a tenant id to the context.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TenantIDKey, id)
}

// GetTenantID retrieves the tenant id from the context.
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, TenantIDKey)
}

// WithBotID adds a bot id to the context.
func WithBotID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, BotIDKey, id)
}

// GetBotID retrieves the bot id from the context.
func GetBotID(ctx context.Context) string {
	return stringValue(ctx, BotIDKey)
}

// WithEvaluationID adds an evaluation id to the context.
func WithEvaluationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, EvaluationIDKey, id)
}

// GetEvaluationID retrieves the evaluation id from the context.
func GetEvaluationID(ctx context.Context) string {
	return stringValue(ctx, EvaluationIDKey)
}

// WithRequestID adds a request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns key-value pairs for the ids stored in ctx
// and for the active span, if any.
func extractContextFields(ctx context.Context) []any {
	var fields []any
	for _, key := range []contextKey{RequestIDKey, TenantIDKey, BotIDKey, EvaluationIDKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return fields
}

// Contextual returns logger with the ids found in ctx attached.
func Contextual(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if args := extractContextFields(ctx); len(args) > 0 {
		return logger.With(args...)
	}
	return logger
}

package omnilog

import (
	"context"
)

type contextKey string

const (
	contextKeyCorrelation contextKey = "correlation_id"
	contextKeyFields      contextKey = "fields"
)

// WithCorrelationID returns a copy of ctx carrying id. Entries logged with
// the returned context and no explicit correlation id use it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyCorrelation, id)
}

// CorrelationIDFromContext returns the correlation id stored in ctx.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(contextKeyCorrelation).(string)
	return id, ok && id != ""
}

// WithContextFields returns a copy of ctx carrying fields that are merged into
// the Context of entries logged with it. Fields set on the call win over
// fields from ctx; nested calls accumulate.
//
// Example:
//
//	ctx = omnilog.WithContextFields(ctx, map[string]interface{}{"request_id": reqID})
//	logger.InfoContext(ctx, "request accepted")
func WithContextFields(ctx context.Context, fields map[string]interface{}) context.Context {
	merged := make(map[string]interface{}, len(fields))
	for k, v := range ContextFields(ctx) {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, contextKeyFields, merged)
}

// ContextFields returns the fields stored in ctx by WithContextFields, or nil.
func ContextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(contextKeyFields).(map[string]interface{})
	return fields
}

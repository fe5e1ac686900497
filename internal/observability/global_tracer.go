package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer("complaint-desk")
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		// Fallback to default tracer if not initialized
		globalTracer = otel.Tracer("complaint-desk")
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceComplaintFunction starts a new span for a complaint service function.
func TraceComplaintFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "complaint", functionName, attributes...)
}

// TraceUserFunction starts a new span for a user service function.
func TraceUserFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "user", functionName, attributes...)
}

// TraceIdentityFunction starts a new span for an identity protection function.
func TraceIdentityFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "identity", functionName, attributes...)
}

// TraceNotificationFunction starts a new span for a notification dispatch function.
func TraceNotificationFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "notification", functionName, attributes...)
}

// TraceAuditFunction starts a new span for an audit log function.
func TraceAuditFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "audit", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeUserID returns a tracing attribute for a user ID.
func AttributeUserID(id int) attribute.KeyValue {
	return attribute.Int("user.id", id)
}

// AttributeComplaintID returns a tracing attribute for a complaint's public ID.
func AttributeComplaintID(id string) attribute.KeyValue {
	return attribute.String("complaint.id", id)
}

// AttributeRole returns a tracing attribute for an actor's role.
func AttributeRole(role string) attribute.KeyValue {
	return attribute.String("actor.role", role)
}

// AttributeStatus returns a tracing attribute for a complaint status.
func AttributeStatus(status string) attribute.KeyValue {
	return attribute.String("complaint.status", status)
}

// AttributeLevel returns a tracing attribute for an escalation level.
func AttributeLevel(level string) attribute.KeyValue {
	return attribute.String("complaint.level", level)
}

// Package tracing provides distributed tracing support using OpenTelemetry.
// Spans cover the three phases of every tool call: the MCP tool execution,
// the upstream fetch, and the analyzer pass.
package tracing

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
}

var globalTracer trace.Tracer

// InitOTel initializes OpenTelemetry with the given configuration.
// Returns a shutdown function that should be called on application exit.
func InitOTel(cfg OTelConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	// Stdout exporter on stderr; stdout belongs to the MCP transport.
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	globalTracer = tp.Tracer(cfg.ServiceName)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// GetTracer returns the global tracer, or a no-op tracer before InitOTel.
func GetTracer() trace.Tracer {
	if globalTracer == nil {
		return otel.Tracer("noop")
	}
	return globalTracer
}

func startSpan(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// ToolSpan starts a span covering one MCP tool execution.
func ToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return startSpan(ctx, "mcp.tool."+toolName, trace.SpanKindServer,
		attribute.String("mcp.tool.name", toolName),
	)
}

// FetchSpan starts a client span for one upstream fetch request.
func FetchSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return startSpan(ctx, "fetch."+method, trace.SpanKindClient,
		attribute.String("http.method", method),
		attribute.String("http.url", path),
	)
}

// AnalyzerSpan starts a span for one analyzer pass over a result set.
func AnalyzerSpan(ctx context.Context, analyzer string, recordCount int) (context.Context, trace.Span) {
	return startSpan(ctx, "analysis."+analyzer, trace.SpanKindInternal,
		attribute.String("analysis.analyzer", analyzer),
		attribute.Int("analysis.record_count", recordCount),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetAttributes(attribute.Bool("mcp.success", true))
}

// SetToolResult records the result type and size of a tool execution.
func SetToolResult(span trace.Span, resultType string, itemCount int) {
	span.SetAttributes(
		attribute.String("mcp.result.type", resultType),
		attribute.Int("mcp.result.count", itemCount),
	)
}

// TraceInfo carries trace and span IDs for audit logging.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

// FromContext extracts trace information from the active span, if any.
func FromContext(ctx context.Context) *TraceInfo {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.SpanContext().IsValid() {
		return &TraceInfo{}
	}

	sc := span.SpanContext()
	return &TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

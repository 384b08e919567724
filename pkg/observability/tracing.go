package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for scribe operations.
	TracerName = "scribe"
)

// Span attribute keys
const (
	AttrFilename     = "filename"
	AttrFileSize     = "file_size"
	AttrSegmentCount = "segment_count"
	AttrSpeakerCount = "speaker_count"
	AttrHTTPStatus   = "http.status_code"
	AttrExportKind   = "export_kind"
	AttrErrorType    = "error_type"
)

// Span names
const (
	SpanUpload = "scribe.upload"
	SpanPing   = "scribe.ping"
	SpanExport = "scribe.export"
)

// Tracer provides distributed tracing for backend calls and exports.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global otel provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartUploadSpan starts the span covering one upload round trip.
func (t *Tracer) StartUploadSpan(ctx context.Context, filename string, size int64) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, SpanUpload,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrFilename, filename),
		),
	)
	if size >= 0 {
		span.SetAttributes(attribute.Int64(AttrFileSize, size))
	}
	return ctx, span
}

// StartPingSpan starts the span for a backend reachability check.
func (t *Tracer) StartPingSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanPing, trace.WithSpanKind(trace.SpanKindClient))
}

// StartExportSpan starts a span for rendering a download.
func (t *Tracer) StartExportSpan(ctx context.Context, kind string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanExport,
		trace.WithAttributes(
			attribute.String(AttrExportKind, kind),
		),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetHTTPStatus records the backend response status.
func (h *SpanHelper) SetHTTPStatus(code int) {
	h.span.SetAttributes(attribute.Int(AttrHTTPStatus, code))
}

// SetTranscript records the size of a decoded transcript.
func (h *SpanHelper) SetTranscript(segments, speakers int) {
	h.span.SetAttributes(
		attribute.Int(AttrSegmentCount, segments),
		attribute.Int(AttrSpeakerCount, speakers),
	)
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorType string) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(attribute.String(AttrErrorType, errorType))
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

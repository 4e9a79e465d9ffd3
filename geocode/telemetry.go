package geocode

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer for geocoder operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer wrapping an OpenTelemetry tracer.
func NewTracer(tracer trace.Tracer) *Tracer {
	if tracer == nil {
		return nil
	}
	return &Tracer{tracer: tracer}
}

// Span wraps an OpenTelemetry span.
type Span struct {
	span trace.Span
}

// End ends the span.
func (s *Span) End() {
	if s.span != nil {
		s.span.End()
	}
}

// RecordError records an error on the span.
func (s *Span) RecordError(err error) {
	if s.span != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
}

// SetAttributes sets attributes on the span.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	if s.span != nil {
		s.span.SetAttributes(attrs...)
	}
}

// StartSpan starts a new span for geocoder operations.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if t == nil || t.tracer == nil {
		return ctx, &Span{}
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("geocode.provider", "nominatim"),
		),
	)

	return ctx, &Span{span: span}
}

// ReverseAttributes returns attributes for reverse geocode operations.
func ReverseAttributes(lat, lng float64, resultCity string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("geocode.operation", "reverse"),
		attribute.Float64("geocode.location.lat", lat),
		attribute.Float64("geocode.location.lng", lng),
		attribute.String("geocode.result.city", resultCity),
	}
}

// ForwardAttributes returns attributes for forward geocode operations.
func ForwardAttributes(query string, matched bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("geocode.operation", "forward"),
		attribute.Int("geocode.query.length", len(query)),
		attribute.Bool("geocode.matched", matched),
	}
}

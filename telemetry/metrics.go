// Package telemetry provides observability utilities.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP endpoint; empty keeps metrics in-process only
	Insecure       bool   // Use insecure connection
}

// MetricsProvider provides metrics functionality.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	config   MetricsConfig
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(ctx context.Context, config MetricsConfig) (*MetricsProvider, error) {
	// Create resource
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providerOpts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if config.Endpoint != "" {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
		if config.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	provider := sdkmetric.NewMeterProvider(providerOpts...)

	// Set global provider
	otel.SetMeterProvider(provider)

	// Get meter
	meter := provider.Meter(config.ServiceName)

	return &MetricsProvider{
		provider: provider,
		meter:    meter,
		config:   config,
	}, nil
}

// Meter returns the meter for creating instruments.
func (m *MetricsProvider) Meter() metric.Meter {
	return m.meter
}

// Shutdown shuts down the metrics provider.
func (m *MetricsProvider) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// LocationMetrics provides metrics for the resolution and distance
// pipelines.
type LocationMetrics struct {
	resolutionsTotal   metric.Int64Counter
	resolutionDuration metric.Float64Histogram
	geocodeTotal       metric.Int64Counter
	distanceTotal      metric.Int64Counter
	distanceMiles      metric.Float64Histogram
}

// NewLocationMetrics creates the location metric instruments.
func NewLocationMetrics(meter metric.Meter) (*LocationMetrics, error) {
	resolutionsTotal, err := meter.Int64Counter(
		"location_resolutions_total",
		metric.WithDescription("Total coordinate resolutions by fix source"),
		metric.WithUnit("{resolutions}"),
	)
	if err != nil {
		return nil, err
	}

	resolutionDuration, err := meter.Float64Histogram(
		"location_resolution_duration_seconds",
		metric.WithDescription("Coordinate resolution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	geocodeTotal, err := meter.Int64Counter(
		"geocode_requests_total",
		metric.WithDescription("Total geocoder calls by operation and cache outcome"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	distanceTotal, err := meter.Int64Counter(
		"distance_computations_total",
		metric.WithDescription("Total distance computations"),
		metric.WithUnit("{computations}"),
	)
	if err != nil {
		return nil, err
	}

	distanceMiles, err := meter.Float64Histogram(
		"distance_miles",
		metric.WithDescription("Computed great-circle distances in miles"),
		metric.WithUnit("mi"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 60, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	return &LocationMetrics{
		resolutionsTotal:   resolutionsTotal,
		resolutionDuration: resolutionDuration,
		geocodeTotal:       geocodeTotal,
		distanceTotal:      distanceTotal,
		distanceMiles:      distanceMiles,
	}, nil
}

// RecordResolution records one coordinate resolution.
func (m *LocationMetrics) RecordResolution(ctx context.Context, source string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("source", source),
		attribute.Bool("error", err != nil),
	}
	m.resolutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.resolutionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGeocode records one geocoder call.
func (m *LocationMetrics) RecordGeocode(ctx context.Context, operation string, cacheHit bool, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("cache_hit", cacheHit),
		attribute.Bool("error", err != nil),
	}
	m.geocodeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDistance records one distance computation.
func (m *LocationMetrics) RecordDistance(ctx context.Context, miles int, sameCountry, directions bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("same_country", sameCountry),
		attribute.Bool("directions", directions),
	}
	m.distanceTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.distanceMiles.Record(ctx, float64(miles), metric.WithAttributes(attrs...))
}

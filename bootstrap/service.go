// Package bootstrap wires the location subsystem together for host
// applications.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mycobrun/whereabouts/config"
	"github.com/mycobrun/whereabouts/device"
	"github.com/mycobrun/whereabouts/distance"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/geocode"
	"github.com/mycobrun/whereabouts/health"
	"github.com/mycobrun/whereabouts/ipgeo"
	"github.com/mycobrun/whereabouts/locate"
	"github.com/mycobrun/whereabouts/locstore"
	"github.com/mycobrun/whereabouts/logging"
	"github.com/mycobrun/whereabouts/telemetry"
	"github.com/mycobrun/whereabouts/timezone"
)

// Service holds the initialized location subsystem.
type Service struct {
	Config   *config.Config
	Logger   *logging.Logger
	Store    *locstore.Store
	Geocoder *geocode.Client
	Provider *locate.Provider
	Pipeline *locate.Pipeline
	Distance *distance.Engine
	Health   *health.Checker
	Metrics  *telemetry.LocationMetrics

	redis   *redis.Client
	tracing *telemetry.TracingProvider
	metrics *telemetry.MetricsProvider
}

// Options configures optional pieces of the subsystem.
type Options struct {
	// UseTelemetry enables OTLP tracing and metrics when an endpoint is
	// configured.
	UseTelemetry bool

	// UseRedis enables the shared geocode cache and rate limiter when a
	// Redis address is configured.
	UseRedis bool

	// Prompter supplies the interactive ask-for-a-place capability; nil
	// makes a missing destination a silent cancellation.
	Prompter distance.Prompter
}

// DefaultOptions returns options that enable everything configured.
func DefaultOptions() Options {
	return Options{
		UseTelemetry: true,
		UseRedis:     true,
	}
}

// Initialize loads configuration and constructs the full resolution and
// distance stack.
func Initialize(ctx context.Context, serviceName string, opts Options) (*Service, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting location subsystem",
		"service", serviceName,
		"environment", cfg.Environment,
		"device_lookup", cfg.DeviceLookupEnabled())

	svc := &Service{Config: cfg, Logger: logger}

	if opts.UseTelemetry && cfg.OTLPEndpoint != "" {
		svc.tracing, err = telemetry.NewTracingProvider(ctx, telemetry.TracingConfig{
			ServiceName:    serviceName,
			ServiceVersion: cfg.Version,
			Environment:    cfg.Environment,
			Endpoint:       cfg.OTLPEndpoint,
			SampleRate:     1.0,
			Insecure:       cfg.IsDevelopment(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}

		svc.metrics, err = telemetry.NewMetricsProvider(ctx, telemetry.MetricsConfig{
			ServiceName:    serviceName,
			ServiceVersion: cfg.Version,
			Environment:    cfg.Environment,
			Endpoint:       cfg.OTLPEndpoint,
			Insecure:       cfg.IsDevelopment(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}

		svc.Metrics, err = telemetry.NewLocationMetrics(svc.metrics.Meter())
		if err != nil {
			return nil, fmt.Errorf("failed to create metric instruments: %w", err)
		}
	}

	var cache geocode.Cache = geocode.NewInMemoryCache()
	var limiter geocode.RateLimiter = geocode.NewNoopRateLimiter()
	if opts.UseRedis && cfg.RedisAddr != "" {
		svc.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		cache = geocode.NewRedisCache(svc.redis, "")
		limiter = geocode.NewRedisRateLimiter(svc.redis, nil)
		logger.Info("redis geocode cache enabled", "addr", cfg.RedisAddr)
	}

	var geocodeTracer *geocode.Tracer
	if svc.tracing != nil {
		geocodeTracer = geocode.NewTracer(svc.tracing.Tracer())
	}
	svc.Geocoder = geocode.NewClient(&geocode.Config{
		BaseURL:   cfg.GeocoderBaseURL,
		UserAgent: cfg.GeocoderUserAgent,
		Language:  cfg.GeocoderLanguage,
		Timeout:   cfg.GeocoderTimeout,
	}, logger, geocodeTracer, cache, limiter)

	var directory device.Directory
	if cfg.DeviceLookupEnabled() {
		directory = device.NewHTTPDirectory(device.DirectoryConfig{
			BaseURL:  cfg.DirectoryBaseURL,
			Username: cfg.DirectoryUser,
			Secret:   cfg.DirectorySecret,
			Timeout:  cfg.DirectoryTimeout,
		}, logger)
	}

	ipLocator := ipgeo.NewIPLocator(ipgeo.IPLocatorConfig{
		PrimaryURL:  cfg.IPInfoURL,
		FallbackURL: cfg.IPInfoFallbackURL,
		Timeout:     cfg.IPTimeout,
	}, logger)

	var latency ipgeo.Locator
	if cfg.SpeedtestConfigURL != "" {
		latency = ipgeo.NewSpeedtestLocator(ipgeo.SpeedtestLocatorConfig{
			ConfigURL: cfg.SpeedtestConfigURL,
			Timeout:   cfg.IPTimeout,
		}, logger)
	}

	svc.Store = locstore.NewStore(cfg.LocationFile, logger)
	svc.Provider = locate.NewProvider(directory, ipLocator, latency,
		geo.Point{Lat: cfg.DefaultLatitude, Lng: cfg.DefaultLongitude}, logger)
	svc.Pipeline = locate.NewPipeline(svc.Provider, svc.Geocoder, svc.Store, timezone.NewOfflineLookup(), logger)
	svc.Distance = distance.NewEngine(svc.Geocoder, svc.Store, opts.Prompter, logger)

	svc.Health = health.NewChecker(cfg.Version)
	svc.Health.AddCheck("geocoder", health.GeocoderCheck(cfg.GeocoderBaseURL, cfg.GeocoderTimeout), true)
	svc.Health.AddCheck("location_file", health.LocationFileCheck(cfg.LocationFile), false)
	if svc.redis != nil {
		svc.Health.AddCheck("redis", health.RedisCheck(redisPinger{svc.redis}, time.Second), false)
	}

	return svc, nil
}

// MustInitialize initializes the subsystem and panics on error.
func MustInitialize(ctx context.Context, serviceName string, opts Options) *Service {
	svc, err := Initialize(ctx, serviceName, opts)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize location subsystem: %v", err))
	}
	return svc
}

// Close releases held resources.
func (s *Service) Close(ctx context.Context) {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.tracing != nil {
		_ = s.tracing.Shutdown(ctx)
	}
	if s.metrics != nil {
		_ = s.metrics.Shutdown(ctx)
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

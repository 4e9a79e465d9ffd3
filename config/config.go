// Package config provides configuration loading for the location subsystem.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/validation"
)

// Config holds configuration for the location subsystem. Host
// applications load it once and hand it to bootstrap.Initialize.
type Config struct {
	// Service identification
	ServiceName string `json:"service_name"`
	Environment string `json:"environment"`
	Version     string `json:"version"`

	// Logging
	LogLevel string `json:"log_level"`

	// Geocoding provider (Nominatim-compatible)
	GeocoderBaseURL   string        `json:"geocoder_base_url" validate:"required,url"`
	GeocoderUserAgent string        `json:"geocoder_user_agent" validate:"required"`
	GeocoderLanguage  string        `json:"geocoder_language"`
	GeocoderTimeout   time.Duration `json:"geocoder_timeout"`

	// Device directory (optional; empty base URL disables device lookups)
	DirectoryBaseURL string        `json:"directory_base_url" validate:"omitempty,url"`
	DirectoryUser    string        `json:"directory_user"`
	DirectorySecret  string        `json:"directory_secret"`
	DirectoryTimeout time.Duration `json:"directory_timeout"`

	// IP geolocation
	IPInfoURL          string        `json:"ipinfo_url" validate:"required,url"`
	IPInfoFallbackURL  string        `json:"ipinfo_fallback_url" validate:"omitempty,url"`
	SpeedtestConfigURL string        `json:"speedtest_config_url" validate:"omitempty,url"`
	IPTimeout          time.Duration `json:"ip_timeout"`

	// Persisted location record
	LocationFile string `json:"location_file" validate:"required"`

	// Degraded-mode default coordinates (Springfield, MO, USA)
	DefaultLatitude  float64 `json:"default_latitude" validate:"latitude"`
	DefaultLongitude float64 `json:"default_longitude" validate:"longitude"`

	// Redis, used as the shared geocode cache when set
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`

	// Telemetry
	OTLPEndpoint string `json:"otlp_endpoint"`
}

// Load loads configuration from environment variables and validates it.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		ServiceName: serviceName,
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("VERSION", "0.0.1"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		GeocoderBaseURL:   getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", "whereabouts/1.0"),
		GeocoderLanguage:  getEnv("GEOCODER_LANGUAGE", "en"),
		GeocoderTimeout:   getEnvDuration("GEOCODER_TIMEOUT", 3*time.Second),

		DirectoryBaseURL: getEnv("DIRECTORY_BASE_URL", ""),
		DirectoryUser:    getEnv("DIRECTORY_USER", ""),
		DirectorySecret:  getEnv("DIRECTORY_SECRET", ""),
		DirectoryTimeout: getEnvDuration("DIRECTORY_TIMEOUT", 5*time.Second),

		IPInfoURL:          getEnv("IPINFO_URL", "https://ipinfo.io/json"),
		IPInfoFallbackURL:  getEnv("IPINFO_FALLBACK_URL", "https://ipapi.co/json"),
		SpeedtestConfigURL: getEnv("SPEEDTEST_CONFIG_URL", "https://www.speedtest.net/speedtest-config.php"),
		IPTimeout:          getEnvDuration("IP_TIMEOUT", 5*time.Second),

		LocationFile: getEnv("LOCATION_FILE", "location.yaml"),

		DefaultLatitude:  getEnvFloat("DEFAULT_LATITUDE", 37.230881),
		DefaultLongitude: getEnvFloat("DEFAULT_LONGITUDE", -93.3710393),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error.
func MustLoad(serviceName string) *Config {
	cfg, err := Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if details := validation.ValidateStruct(c); details != nil {
		return errors.ValidationWithDetails("invalid configuration", details)
	}
	return nil
}

// DeviceLookupEnabled reports whether a device directory is configured.
func (c *Config) DeviceLookupEnabled() bool {
	return c.DirectoryBaseURL != "" && c.DirectoryUser != "" && c.DirectorySecret != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnv gets an environment variable with a default value.
func GetEnv(key, defaultValue string) string {
	return getEnv(key, defaultValue)
}

// GetEnvInt gets an environment variable as an integer with a default value.
func GetEnvInt(key string, defaultValue int) int {
	return getEnvInt(key, defaultValue)
}

// GetEnvBool gets an environment variable as a boolean with a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	return getEnvBool(key, defaultValue)
}

// GetEnvDuration gets an environment variable as a duration with a default value.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnvDuration(key, defaultValue)
}

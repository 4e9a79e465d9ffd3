// Package ipgeo estimates coordinates without any device: first from
// public-IP geolocation, then from a speedtest-style latency service.
package ipgeo

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/logging"
)

const defaultTimeout = 5 * time.Second

// Locator resolves approximate coordinates for the calling host.
type Locator interface {
	Locate(ctx context.Context) (geo.Point, error)
}

// IPLocatorConfig holds public-IP locator configuration.
type IPLocatorConfig struct {
	// PrimaryURL returns JSON with a `loc` field formatted "lat,lon".
	PrimaryURL string
	// FallbackURL returns JSON with numeric latitude/longitude fields.
	FallbackURL string
	Timeout     time.Duration
}

// IPLocator resolves coordinates from the host's public IP address.
type IPLocator struct {
	config     IPLocatorConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewIPLocator creates a public-IP locator.
func NewIPLocator(config IPLocatorConfig, logger *logging.Logger) *IPLocator {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &IPLocator{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.WithComponent("ipgeo"),
	}
}

// Locate queries the primary endpoint and accepts the result only when
// it carries a parseable "lat,lon" pair; otherwise it tries the
// alternate endpoint. Unreachable or malformed responses from both are
// an error so the caller can move down the fallback chain.
func (l *IPLocator) Locate(ctx context.Context) (geo.Point, error) {
	point, primaryErr := l.locatePrimary(ctx)
	if primaryErr == nil {
		return point, nil
	}
	l.logger.Warn("primary IP geolocation failed", "error", primaryErr)

	if l.config.FallbackURL == "" {
		return geo.Point{}, primaryErr
	}

	point, fallbackErr := l.locateFallback(ctx)
	if fallbackErr != nil {
		l.logger.Warn("fallback IP geolocation failed", "error", fallbackErr)
		return geo.Point{}, fallbackErr
	}
	return point, nil
}

func (l *IPLocator) locatePrimary(ctx context.Context) (geo.Point, error) {
	var payload struct {
		Loc string `json:"loc"`
	}
	if err := l.getJSON(ctx, l.config.PrimaryURL, &payload); err != nil {
		return geo.Point{}, err
	}
	if payload.Loc == "" {
		return geo.Point{}, errors.Connectivity(fmt.Errorf("response carried no loc field"), "IP geolocation")
	}

	point, err := geo.ParsePair(payload.Loc)
	if err != nil {
		return geo.Point{}, errors.Connectivity(err, "IP geolocation")
	}
	return point, nil
}

func (l *IPLocator) locateFallback(ctx context.Context) (geo.Point, error) {
	var payload struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := l.getJSON(ctx, l.config.FallbackURL, &payload); err != nil {
		return geo.Point{}, err
	}
	if payload.Latitude == nil || payload.Longitude == nil {
		return geo.Point{}, errors.Connectivity(fmt.Errorf("response carried no coordinates"), "IP geolocation")
	}

	point := geo.NewPoint(*payload.Latitude, *payload.Longitude)
	if !point.IsValid() {
		return geo.Point{}, errors.Connectivity(fmt.Errorf("coordinates out of range"), "IP geolocation")
	}
	return point, nil
}

func (l *IPLocator) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.InternalWrap(err, "failed to create IP geolocation request")
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return errors.Connectivity(err, "IP geolocation")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Connectivity(fmt.Errorf("status %d from %s", resp.StatusCode, url), "IP geolocation")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Connectivity(fmt.Errorf("malformed response from %s: %w", url, err), "IP geolocation")
	}
	return nil
}

// SpeedtestLocatorConfig holds latency-locator configuration.
type SpeedtestLocatorConfig struct {
	// ConfigURL serves a speedtest-style XML config whose client
	// element carries lat/lon attributes.
	ConfigURL string
	Timeout   time.Duration
}

// SpeedtestLocator estimates coordinates from a latency-measurement
// service's view of the client.
type SpeedtestLocator struct {
	config     SpeedtestLocatorConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSpeedtestLocator creates a latency-based locator.
func NewSpeedtestLocator(config SpeedtestLocatorConfig, logger *logging.Logger) *SpeedtestLocator {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &SpeedtestLocator{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.WithComponent("speedtest"),
	}
}

// Locate fetches the service configuration and reads the client
// coordinates from it.
func (l *SpeedtestLocator) Locate(ctx context.Context) (geo.Point, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.config.ConfigURL, nil)
	if err != nil {
		return geo.Point{}, errors.InternalWrap(err, "failed to create speedtest config request")
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return geo.Point{}, errors.Connectivity(err, "latency geolocation")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, errors.Connectivity(fmt.Errorf("status %d from config endpoint", resp.StatusCode), "latency geolocation")
	}

	var settings struct {
		Client struct {
			Lat string `xml:"lat,attr"`
			Lon string `xml:"lon,attr"`
		} `xml:"client"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return geo.Point{}, errors.Connectivity(fmt.Errorf("malformed config response: %w", err), "latency geolocation")
	}

	point, err := geo.ParsePair(settings.Client.Lat + "," + settings.Client.Lon)
	if err != nil {
		return geo.Point{}, errors.Connectivity(err, "latency geolocation")
	}

	l.logger.Debug("latency geolocation resolved", "lat", point.Lat, "lng", point.Lng)
	return point, nil
}

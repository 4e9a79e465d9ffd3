// Package geocode provides a Nominatim-compatible geocoder adapter for
// turning coordinates into structured addresses and place names into
// coordinates. The adapter owns no retry policy: callers decide whether a
// failed lookup is worth a second attempt.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/logging"
)

const (
	defaultTimeout  = 3 * time.Second
	defaultCacheTTL = 7 * 24 * time.Hour
	defaultLanguage = "en"
)

// Config holds geocoder adapter configuration.
type Config struct {
	// BaseURL of a Nominatim-compatible endpoint.
	BaseURL string

	// UserAgent identifies this client; Nominatim requires one.
	UserAgent string

	// Language for address responses (accept-language).
	Language string

	// Timeout for HTTP requests.
	Timeout time.Duration

	// CacheTTL for caching results.
	CacheTTL time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:   baseURL,
		UserAgent: "whereabouts/1.0",
		Language:  defaultLanguage,
		Timeout:   defaultTimeout,
		CacheTTL:  defaultCacheTTL,
	}
}

// Cache interface for caching geocoder responses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimiter interface for throttling provider calls.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
	Wait(ctx context.Context, key string) error
}

// Client is the geocoder adapter.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logging.Logger
	tracer     *Tracer
	cache      Cache
	limiter    RateLimiter
}

// NewClient creates a new geocoder client.
func NewClient(config *Config, logger *logging.Logger, tracer *Tracer, cache Cache, limiter RateLimiter) *Client {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}
	if config.Language == "" {
		config.Language = defaultLanguage
	}
	if logger == nil {
		logger = logging.NewLogger("info")
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger.WithComponent("geocode"),
		tracer:  tracer,
		cache:   cache,
		limiter: limiter,
	}
}

// nominatimAddress mirrors the provider's address block.
type nominatimAddress struct {
	Road     string `json:"road"`
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
	Hamlet   string `json:"hamlet"`
	County   string `json:"county"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

func (n nominatimAddress) toAddress() Address {
	city := n.City
	if city == "" {
		city = n.Town
	}
	if city == "" {
		city = n.Village
	}
	if city == "" {
		city = n.Hamlet
	}
	return Address{
		Road:       n.Road,
		City:       city,
		County:     n.County,
		State:      n.State,
		Country:    n.Country,
		PostalCode: n.Postcode,
	}
}

// Reverse converts coordinates to a structured address. A provider
// outage or timeout yields a GEOCODING_UNAVAILABLE error; a response
// without a usable address block yields an empty Address, not an error.
func (c *Client) Reverse(ctx context.Context, location geo.Point) (*Address, error) {
	ctx, span := c.startSpan(ctx, "geocode.Reverse")
	defer span.End()

	// Reverse results are cached per H3 cell so nearby fixes share one
	// provider call.
	cacheKey := "rev:" + geo.CellKey(location, geo.CellResolutionNeighborhood)
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil && cached != nil {
			var addr Address
			if err := json.Unmarshal(cached, &addr); err == nil {
				c.logger.Debug("reverse geocode cache hit", "lat", location.Lat, "lng", location.Lng)
				return &addr, nil
			}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "geocode:reverse"); err != nil {
			return nil, errors.GeocodingUnavailable(err)
		}
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(location.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(location.Lng, 'f', -1, 64))
	params.Set("accept-language", c.config.Language)

	var apiResp struct {
		Address *nominatimAddress `json:"address"`
	}
	if err := c.getJSON(ctx, "/reverse", params, &apiResp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addr := Address{}
	if apiResp.Address != nil {
		addr = apiResp.Address.toAddress()
	}

	if c.cache != nil && !addr.Empty() {
		if cached, err := json.Marshal(addr); err == nil {
			_ = c.cache.Set(ctx, cacheKey, cached, c.config.CacheTTL)
		}
	}

	c.logger.Debug("reverse geocode completed",
		"lat", location.Lat,
		"lng", location.Lng,
		"city", addr.Locality())

	return &addr, nil
}

// Forward resolves a free-text place name to coordinates. A miss is
// (nil, nil): only provider outages are errors.
func (c *Client) Forward(ctx context.Context, place string) (*Place, error) {
	ctx, span := c.startSpan(ctx, "geocode.Forward")
	defer span.End()

	query := strings.TrimSpace(place)
	if query == "" {
		return nil, nil
	}

	cacheKey := "fwd:" + strings.ToLower(query)
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil && cached != nil {
			var p Place
			if err := json.Unmarshal(cached, &p); err == nil {
				c.logger.Debug("forward geocode cache hit", "place", query)
				return &p, nil
			}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "geocode:forward"); err != nil {
			return nil, errors.GeocodingUnavailable(err)
		}
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("q", query)
	params.Set("limit", "1")
	params.Set("addressdetails", "1")
	params.Set("accept-language", c.config.Language)

	var apiResp []struct {
		Lat         string            `json:"lat"`
		Lon         string            `json:"lon"`
		DisplayName string            `json:"display_name"`
		Address     *nominatimAddress `json:"address"`
	}
	if err := c.getJSON(ctx, "/search", params, &apiResp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(apiResp) == 0 {
		c.logger.Debug("forward geocode no match", "place", query)
		return nil, nil
	}

	match := apiResp[0]
	point, err := geo.ParsePair(match.Lat + "," + match.Lon)
	if err != nil {
		// A match with unusable coordinates counts as no match.
		c.logger.Warn("forward geocode returned unparseable coordinates",
			"place", query, "lat", match.Lat, "lon", match.Lon)
		return nil, nil
	}

	result := &Place{
		DisplayName: match.DisplayName,
		Location:    point,
	}
	if match.Address != nil {
		result.Address = match.Address.toAddress()
	}

	if c.cache != nil {
		if cached, err := json.Marshal(result); err == nil {
			_ = c.cache.Set(ctx, cacheKey, cached, c.config.CacheTTL)
		}
	}

	c.logger.Debug("forward geocode completed", "place", query, "resolved", result.DisplayName)

	return result, nil
}

// getJSON performs a single GET against the provider; no retries.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s%s?%s", strings.TrimRight(c.config.BaseURL, "/"), path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.InternalWrap(err, "failed to create geocoder request")
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.GeocodingUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.GeocodingUnavailable(fmt.Errorf("geocoder returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.GeocodingUnavailable(fmt.Errorf("malformed geocoder response: %w", err))
	}
	return nil
}

// startSpan starts a telemetry span if a tracer is configured.
func (c *Client) startSpan(ctx context.Context, name string) (context.Context, *Span) {
	if c.tracer != nil {
		return c.tracer.StartSpan(ctx, name)
	}
	return ctx, &Span{}
}

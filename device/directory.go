package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/logging"
)

const defaultDirectoryTimeout = 5 * time.Second

// DirectoryConfig holds directory client configuration.
type DirectoryConfig struct {
	BaseURL  string
	Username string
	Secret   string
	Timeout  time.Duration
}

// HTTPDirectory talks to a device directory service over HTTP. Sessions
// are bearer tokens issued by the directory; the token is a JWT whose
// exp claim decides when re-authentication is due.
type HTTPDirectory struct {
	config     DirectoryConfig
	httpClient *http.Client
	logger     *logging.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewHTTPDirectory creates a directory client.
func NewHTTPDirectory(config DirectoryConfig, logger *logging.Logger) *HTTPDirectory {
	if config.Timeout <= 0 {
		config.Timeout = defaultDirectoryTimeout
	}
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &HTTPDirectory{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.WithComponent("directory"),
	}
}

// Authenticate establishes a directory session. A refusal (bad
// credentials, expired account) is a DIRECTORY_FAILURE; transport
// problems are CONNECTIVITY.
func (d *HTTPDirectory) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": d.config.Username,
		"secret":   d.config.Secret,
	})
	if err != nil {
		return errors.InternalWrap(err, "failed to marshal session request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.config.BaseURL+"/v1/session", bytes.NewReader(body))
	if err != nil {
		return errors.InternalWrap(err, "failed to create session request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errors.Connectivity(err, "device directory")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.DirectoryFailure(fmt.Errorf("session request returned status %d", resp.StatusCode))
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return errors.DirectoryFailure(fmt.Errorf("malformed session response: %w", err))
	}
	if session.Token == "" {
		return errors.DirectoryFailure(fmt.Errorf("session response carried no token"))
	}

	d.mu.Lock()
	d.token = session.Token
	d.expires = tokenExpiry(session.Token)
	d.mu.Unlock()

	d.logger.Debug("directory session established", "expires", d.expires)
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client only needs to know when to re-authenticate, the directory
// verifies the token on every call.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// sessionToken returns the current token, re-authenticating when it is
// missing or expired.
func (d *HTTPDirectory) sessionToken(ctx context.Context) (string, error) {
	d.mu.Lock()
	token := d.token
	expires := d.expires
	d.mu.Unlock()

	if token != "" && (expires.IsZero() || time.Now().Before(expires)) {
		return token, nil
	}
	if err := d.Authenticate(ctx); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.token, nil
}

// Devices returns all registered devices for the account.
func (d *HTTPDirectory) Devices(ctx context.Context) ([]Device, error) {
	var entries []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := d.getJSON(ctx, "/v1/devices", &entries); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(entries))
	for _, e := range entries {
		devices = append(devices, &httpDevice{
			directory: d,
			id:        e.ID,
			name:      e.Name,
		})
	}
	return devices, nil
}

func (d *HTTPDirectory) getJSON(ctx context.Context, path string, out any) error {
	token, err := d.sessionToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.config.BaseURL+path, nil)
	if err != nil {
		return errors.InternalWrap(err, "failed to create directory request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errors.Connectivity(err, "device directory")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return errNoContent
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.DirectoryFailure(fmt.Errorf("directory returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return errors.DirectoryFailure(fmt.Errorf("directory returned status %d for %s", resp.StatusCode, path))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.DirectoryFailure(fmt.Errorf("malformed directory response: %w", err))
	}
	return nil
}

// errNoContent marks a 204 response: the entity exists but has nothing
// to report.
var errNoContent = errors.New("NO_CONTENT", "no content")

// httpDevice is a directory entry backed by the HTTP directory.
type httpDevice struct {
	directory *HTTPDirectory
	id        string
	name      string
}

// Name returns the user-assigned device name.
func (d *httpDevice) Name() string {
	return d.name
}

// Location returns the device's reported coordinates. A 204 from the
// directory means "device exists, no location payload" and maps to
// (nil, nil).
func (d *httpDevice) Location(ctx context.Context) (*geo.Point, error) {
	var payload struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	err := d.directory.getJSON(ctx, "/v1/devices/"+d.id+"/location", &payload)
	if err == errNoContent {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if payload.Latitude == nil || payload.Longitude == nil {
		return nil, nil
	}

	p := geo.NewPoint(*payload.Latitude, *payload.Longitude)
	if !p.IsValid() {
		return nil, errors.DirectoryFailure(fmt.Errorf("device %s reported out-of-range coordinates", d.name))
	}
	return &p, nil
}

// Status returns the device's self-reported state.
func (d *httpDevice) Status(ctx context.Context) (*Status, error) {
	var status Status
	err := d.directory.getJSON(ctx, "/v1/devices/"+d.id+"/status", &status)
	if err == errNoContent {
		return &Status{Name: d.name}, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

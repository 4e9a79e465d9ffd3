package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mycobrun/whereabouts/errors"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// directoryFixture is a minimal in-process directory service.
type directoryFixture struct {
	t            *testing.T
	token        string
	authCalls    atomic.Int32
	denyAuth     bool
	noLocation   bool
	locationLat  float64
	locationLng  float64
	batteryLevel float64
}

func (f *directoryFixture) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/session", func(w http.ResponseWriter, r *http.Request) {
		f.authCalls.Add(1)
		if f.denyAuth {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": f.token})
	})
	authed := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}
	mux.HandleFunc("GET /v1/devices", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"id": "dev-1", "name": "Vicky's iPhone"},
			{"id": "dev-2", "name": "Vicky's MacBook Pro"},
		})
	})
	mux.HandleFunc("GET /v1/devices/dev-1/location", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		if f.noLocation {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]float64{
			"latitude": f.locationLat, "longitude": f.locationLng,
		})
	})
	mux.HandleFunc("GET /v1/devices/dev-1/status", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"batteryLevel":      f.batteryLevel,
			"deviceDisplayName": "iPhone 15 Pro",
			"name":              "Vicky's iPhone",
		})
	})
	return mux
}

func newDirectoryFixture(t *testing.T) (*directoryFixture, *HTTPDirectory) {
	t.Helper()
	fixture := &directoryFixture{
		t:            t,
		token:        signedToken(t, time.Hour),
		locationLat:  37.230881,
		locationLng:  -93.3710393,
		batteryLevel: 0.82,
	}
	server := httptest.NewServer(fixture.handler())
	t.Cleanup(server.Close)

	dir := NewHTTPDirectory(DirectoryConfig{
		BaseURL:  server.URL,
		Username: "operator",
		Secret:   "hunter2",
	}, nil)
	return fixture, dir
}

func TestHTTPDirectory_DevicesAndLocation(t *testing.T) {
	fixture, dir := newDirectoryFixture(t)
	ctx := context.Background()

	devices, err := dir.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if fixture.authCalls.Load() != 1 {
		t.Errorf("auth calls = %d, want 1 (implicit session)", fixture.authCalls.Load())
	}

	phone := Match(devices, "iphone")
	point, err := phone.Location(ctx)
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if point == nil || point.Lat != 37.230881 {
		t.Errorf("location = %v", point)
	}

	status, err := phone.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.DisplayName != "iPhone 15 Pro" || status.BatteryLevel != 0.82 {
		t.Errorf("status = %+v", status)
	}
}

func TestHTTPDirectory_OfflineDevice(t *testing.T) {
	fixture, dir := newDirectoryFixture(t)
	fixture.noLocation = true
	ctx := context.Background()

	devices, err := dir.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}

	point, err := Match(devices, "iphone").Location(ctx)
	if err != nil {
		t.Fatalf("offline device is not an error, got %v", err)
	}
	if point != nil {
		t.Errorf("offline device location = %v, want nil", point)
	}
}

func TestHTTPDirectory_AuthRefused(t *testing.T) {
	fixture, dir := newDirectoryFixture(t)
	fixture.denyAuth = true

	err := dir.Authenticate(context.Background())
	if !errors.IsDirectoryFailure(err) {
		t.Errorf("error = %v, want DIRECTORY_FAILURE", err)
	}
}

func TestHTTPDirectory_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	dir := NewHTTPDirectory(DirectoryConfig{BaseURL: server.URL}, nil)
	err := dir.Authenticate(context.Background())
	if !errors.IsConnectivity(err) {
		t.Errorf("error = %v, want CONNECTIVITY_ERROR", err)
	}
}

func TestHTTPDirectory_ReauthenticatesExpiredSession(t *testing.T) {
	fixture, dir := newDirectoryFixture(t)
	ctx := context.Background()

	// Seed an already-expired session token.
	dir.token = signedToken(t, -time.Minute)
	dir.expires = tokenExpiry(dir.token)

	if _, err := dir.Devices(ctx); err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if fixture.authCalls.Load() != 1 {
		t.Errorf("auth calls = %d, want 1 re-authentication", fixture.authCalls.Load())
	}
}

func TestTokenExpiry(t *testing.T) {
	token := signedToken(t, time.Hour)
	exp := tokenExpiry(token)
	if exp.IsZero() {
		t.Fatal("expiry should be parsed from the token")
	}
	if time.Until(exp) < 55*time.Minute {
		t.Errorf("expiry %v too soon", exp)
	}

	if !tokenExpiry("garbage").IsZero() {
		t.Error("garbage token should have zero expiry")
	}
}

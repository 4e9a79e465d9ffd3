package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultConfig(server.URL)
	client := NewClient(config, nil, nil, NewInMemoryCache(), NewNoopRateLimiter())
	return client, server
}

func TestReverse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "whereabouts/1.0" {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		if got := r.URL.Query().Get("accept-language"); got != "en" {
			t.Errorf("accept-language = %q, want en", got)
		}

		resp := map[string]any{
			"address": map[string]any{
				"road":     "E Sunshine St",
				"city":     "Springfield",
				"county":   "Greene County",
				"state":    "Missouri",
				"postcode": "65804",
				"country":  "United States",
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	addr, err := client.Reverse(context.Background(), geo.Point{Lat: 37.230881, Lng: -93.3710393})
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	if addr.City != "Springfield" || addr.State != "Missouri" || addr.Country != "United States" {
		t.Errorf("unexpected address: %+v", addr)
	}
	if addr.Locality() != "Springfield" {
		t.Errorf("Locality() = %q, want Springfield", addr.Locality())
	}
}

func TestReverse_TownFillsCitySlot(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"address": map[string]any{
				"town":    "Ozark",
				"state":   "Missouri",
				"country": "United States",
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	addr, err := client.Reverse(context.Background(), geo.Point{Lat: 37.0, Lng: -93.2})
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	if addr.City != "Ozark" {
		t.Errorf("City = %q, want town to fill the city slot", addr.City)
	}
}

func TestReverse_NoAddressBlock(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "Unable to geocode"})
	})

	addr, err := client.Reverse(context.Background(), geo.Point{Lat: 0, Lng: 0})
	if err != nil {
		t.Fatalf("a response without an address block is not an error, got %v", err)
	}
	if addr == nil || !addr.Empty() {
		t.Errorf("want empty non-nil address, got %+v", addr)
	}
}

func TestReverse_ProviderOutage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Reverse(context.Background(), geo.Point{Lat: 37.23, Lng: -93.37})
	if !errors.IsGeocodingUnavailable(err) {
		t.Errorf("error = %v, want GEOCODING_UNAVAILABLE", err)
	}
}

func TestReverse_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on

	client := NewClient(DefaultConfig(server.URL), nil, nil, nil, nil)
	_, err := client.Reverse(context.Background(), geo.Point{Lat: 37.23, Lng: -93.37})
	if !errors.IsGeocodingUnavailable(err) {
		t.Errorf("error = %v, want GEOCODING_UNAVAILABLE", err)
	}
}

func TestReverse_CacheHit(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		resp := map[string]any{
			"address": map[string]any{"city": "Springfield", "country": "United States"},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	ctx := context.Background()
	p := geo.Point{Lat: 37.230881, Lng: -93.3710393}

	if _, err := client.Reverse(ctx, p); err != nil {
		t.Fatalf("first Reverse() error = %v", err)
	}
	// A second fix a few meters away lands in the same H3 cell.
	nearby := geo.Point{Lat: 37.23095, Lng: -93.37110}
	if _, err := client.Reverse(ctx, nearby); err != nil {
		t.Fatalf("second Reverse() error = %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1 (cache hit)", calls.Load())
	}
}

func TestForward(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Chicago" {
			t.Errorf("q = %q, want Chicago", got)
		}

		resp := []map[string]any{{
			"lat":          "41.8781",
			"lon":          "-87.6298",
			"display_name": "Chicago, Cook County, Illinois, United States",
			"address": map[string]any{
				"city":    "Chicago",
				"state":   "Illinois",
				"country": "United States",
			},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})

	place, err := client.Forward(context.Background(), "Chicago")
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if place == nil {
		t.Fatal("Forward() returned nil for a match")
	}
	if place.Location.Lat != 41.8781 || place.Location.Lng != -87.6298 {
		t.Errorf("coordinates = %v", place.Location)
	}
	if place.Address.Country != "United States" {
		t.Errorf("country = %q", place.Address.Country)
	}
}

func TestForward_NoMatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]any{})
	})

	place, err := client.Forward(context.Background(), "Xyzzyville Nowhere")
	if err != nil {
		t.Fatalf("a no-match is not an error, got %v", err)
	}
	if place != nil {
		t.Errorf("want nil place, got %+v", place)
	}
}

func TestForward_UnparseableCoordinates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := []map[string]any{{"lat": "not-a-number", "lon": "nope", "display_name": "?"}}
		_ = json.NewEncoder(w).Encode(resp)
	})

	place, err := client.Forward(context.Background(), "Broken")
	if err != nil {
		t.Fatalf("unparseable coordinates count as no match, got error %v", err)
	}
	if place != nil {
		t.Errorf("want nil place, got %+v", place)
	}
}

func TestForward_EmptyQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider should not be called for an empty query")
	})

	place, err := client.Forward(context.Background(), "   ")
	if err != nil || place != nil {
		t.Errorf("empty query: place = %v, err = %v; want nil, nil", place, err)
	}
}

func TestInMemoryCache_TTL(t *testing.T) {
	cache := NewInMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	val, err := cache.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val != nil {
		t.Error("expired entry should return nil")
	}
}

func TestAddress_Helpers(t *testing.T) {
	addr := Address{County: "Greene County", State: "Missouri", Country: "United States"}
	if addr.Locality() != "Greene County" {
		t.Errorf("Locality() should fall back to county, got %q", addr.Locality())
	}
	if addr.Region() != "Missouri" {
		t.Errorf("Region() = %q, want Missouri", addr.Region())
	}

	other := Address{Country: "united states"}
	if !addr.SameCountry(other) {
		t.Error("SameCountry should compare case-insensitively")
	}
	if addr.SameCountry(Address{}) {
		t.Error("SameCountry with unknown country should be false")
	}
}

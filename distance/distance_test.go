package distance

import (
	"context"
	"strings"
	"testing"

	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/geocode"
	"github.com/mycobrun/whereabouts/locstore"
)

type fakeGeocoder struct {
	places map[string]*geocode.Place
	err    error
	calls  int
}

func (f *fakeGeocoder) Forward(_ context.Context, place string) (*geocode.Place, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.places[strings.ToLower(place)], nil
}

type fakeCache struct {
	record *locstore.Record
	err    error
}

func (f *fakeCache) Read() (*locstore.Record, error) {
	return f.record, f.err
}

type fakePrompter struct {
	answer string
	ok     bool
	asked  int
}

func (f *fakePrompter) Ask(context.Context, string) (string, bool) {
	f.asked++
	return f.answer, f.ok
}

func place(name, country string, lat, lng float64) *geocode.Place {
	return &geocode.Place{
		DisplayName: name,
		Location:    geo.Point{Lat: lat, Lng: lng},
		Address:     geocode.Address{Country: country},
	}
}

func usGeocoder() *fakeGeocoder {
	return &fakeGeocoder{places: map[string]*geocode.Place{
		"new york": place("New York, United States", "United States", 40.7128, -74.006),
		"boston":   place("Boston, Massachusetts, United States", "United States", 42.3601, -71.0589),
		"paris":    place("Paris, Île-de-France, France", "France", 48.8566, 2.3522),
		"ozark":    place("Ozark, Missouri, United States", "United States", 37.0209, -93.206),
	}}
}

func springfieldCache() *fakeCache {
	return &fakeCache{record: &locstore.Record{
		Latitude:  37.230881,
		Longitude: -93.3710393,
		Address: geocode.Address{
			City:    "Springfield",
			State:   "Missouri",
			Country: "United States",
		},
	}}
}

func TestEngine_DirectionsNewYorkBoston(t *testing.T) {
	engine := NewEngine(usGeocoder(), springfieldCache(), nil, nil)

	result, err := engine.Compute(context.Background(), Request{
		Origin:      "New York",
		Destination: "Boston",
		Directions:  true,
	})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if result.Miles < 185 || result.Miles > 195 {
		t.Errorf("miles = %d, want about 190 great-circle miles", result.Miles)
	}
	if !result.SameCountry {
		t.Error("both endpoints are in the United States")
	}
	if result.Travel == nil || result.Travel.Hours != 4 || result.Travel.Minutes != 0 {
		t.Errorf("travel = %+v, want 4 whole hours", result.Travel)
	}
	if result.Travel.Singular() {
		t.Error("4 hours is plural")
	}
	if !strings.Contains(result.Spoken(), "4 hours") {
		t.Errorf("spoken = %q", result.Spoken())
	}
}

func TestEngine_DistanceIsSymmetric(t *testing.T) {
	engine := NewEngine(usGeocoder(), nil, nil, nil)
	ctx := context.Background()

	there, err := engine.Compute(ctx, Request{Origin: "New York", Destination: "Boston"})
	if err != nil {
		t.Fatal(err)
	}
	back, err := engine.Compute(ctx, Request{Origin: "Boston", Destination: "New York"})
	if err != nil {
		t.Fatal(err)
	}
	if there.Miles != back.Miles {
		t.Errorf("miles %d vs %d, want symmetric", there.Miles, back.Miles)
	}
}

func TestDriveTime(t *testing.T) {
	tests := []struct {
		miles       int
		wantMinutes int
		wantHours   int
		singular    bool
	}{
		{10, 10, 0, false},
		{45, 45, 0, false},
		{59, 59, 0, false},
		{60, 0, 1, true},
		{61, 0, 2, false},
		{215, 0, 4, false},
	}

	for _, tt := range tests {
		travel := driveTime(tt.miles)
		if travel.Minutes != tt.wantMinutes || travel.Hours != tt.wantHours {
			t.Errorf("driveTime(%d) = %+v, want minutes=%d hours=%d",
				tt.miles, travel, tt.wantMinutes, tt.wantHours)
		}
		if travel.Singular() != tt.singular {
			t.Errorf("driveTime(%d).Singular() = %v", tt.miles, travel.Singular())
		}
	}
}

func TestEngine_ImplicitOriginFromCache(t *testing.T) {
	engine := NewEngine(usGeocoder(), springfieldCache(), nil, nil)
	ctx := context.Background()

	first, err := engine.Compute(ctx, Request{Destination: "Ozark"})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if !first.OriginFromCache {
		t.Error("origin should come from the cache")
	}
	if first.Origin.ResolvedAddress != "Springfield, Missouri, United States" {
		t.Errorf("origin address = %q", first.Origin.ResolvedAddress)
	}
	if !first.Hint {
		t.Error("first cache-origin result carries the hint")
	}

	second, err := engine.Compute(ctx, Request{Destination: "Ozark"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Hint {
		t.Error("the hint is shown at most once per session")
	}
}

func TestEngine_CrossCountry(t *testing.T) {
	engine := NewEngine(usGeocoder(), springfieldCache(), nil, nil)

	result, err := engine.Compute(context.Background(), Request{Destination: "Paris", Directions: true})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if result.SameCountry {
		t.Error("Springfield and Paris are not in the same country")
	}
	if !strings.Contains(result.Spoken(), "flight") {
		t.Errorf("spoken = %q, want a flight suggestion", result.Spoken())
	}
}

func TestEngine_CacheUnreadableIsNoCurrentLocation(t *testing.T) {
	cache := &fakeCache{err: errors.ReadFailure(errors.New("TEST", "corrupt"), "location.yaml")}
	engine := NewEngine(usGeocoder(), cache, nil, nil)

	_, err := engine.Compute(context.Background(), Request{Destination: "Boston"})
	if !errors.IsNoCurrentLocation(err) {
		t.Errorf("error = %v, want NO_CURRENT_LOCATION, never the raw read error", err)
	}
	if errors.IsReadFailure(err) {
		t.Error("raw read failure leaked")
	}
}

func TestEngine_BrokenCachedCoordinates(t *testing.T) {
	cache := &fakeCache{record: &locstore.Record{Latitude: 500, Longitude: 0}}
	engine := NewEngine(usGeocoder(), cache, nil, nil)

	_, err := engine.Compute(context.Background(), Request{Destination: "Boston"})
	if !errors.IsPlaceNotFound(err) {
		t.Errorf("error = %v, want PLACE_NOT_FOUND", err)
	}
}

func TestEngine_UnknownDestination(t *testing.T) {
	engine := NewEngine(usGeocoder(), springfieldCache(), nil, nil)

	_, err := engine.Compute(context.Background(), Request{Destination: "Atlantis"})
	if !errors.IsPlaceNotFound(err) {
		t.Errorf("error = %v, want PLACE_NOT_FOUND", err)
	}
}

func TestEngine_GeocoderOutagePassesThrough(t *testing.T) {
	geocoder := &fakeGeocoder{err: errors.GeocodingUnavailable(errors.New("TEST", "timeout"))}
	engine := NewEngine(geocoder, springfieldCache(), nil, nil)

	_, err := engine.Compute(context.Background(), Request{Destination: "Boston"})
	if !errors.IsGeocodingUnavailable(err) {
		t.Errorf("error = %v, want GEOCODING_UNAVAILABLE", err)
	}
}

func TestEngine_CancelTokens(t *testing.T) {
	for _, phrase := range []string{"exit", "quit now", "yo dawg xzibit"} {
		t.Run(phrase, func(t *testing.T) {
			geocoder := usGeocoder()
			engine := NewEngine(geocoder, springfieldCache(), nil, nil)

			result, err := engine.Compute(context.Background(), Request{Destination: phrase})
			if result != nil || err != nil {
				t.Errorf("Compute() = (%v, %v), want silent cancellation", result, err)
			}
			if geocoder.calls != 0 {
				t.Error("cancelled request must not reach the geocoder")
			}
		})
	}
}

func TestEngine_PromptsForMissingDestination(t *testing.T) {
	prompter := &fakePrompter{answer: "Boston", ok: true}
	engine := NewEngine(usGeocoder(), springfieldCache(), prompter, nil)

	result, err := engine.Compute(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if prompter.asked != 1 {
		t.Errorf("prompter asked %d times, want 1", prompter.asked)
	}
	if result.Destination.Query != "Boston" {
		t.Errorf("destination = %q", result.Destination.Query)
	}
}

func TestEngine_PromptDeclinedCancels(t *testing.T) {
	tests := []struct {
		name     string
		prompter *fakePrompter
	}{
		{"no answer", &fakePrompter{ok: false}},
		{"empty answer", &fakePrompter{answer: "  ", ok: true}},
		{"cancel answer", &fakePrompter{answer: "quit", ok: true}},
		{"no prompter", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompter Prompter
			if tt.prompter != nil {
				prompter = tt.prompter
			}
			engine := NewEngine(usGeocoder(), springfieldCache(), prompter, nil)

			result, err := engine.Compute(context.Background(), Request{})
			if result != nil || err != nil {
				t.Errorf("Compute() = (%v, %v), want silent cancellation", result, err)
			}
		})
	}
}

func TestResult_SpokenExplicitPlaces(t *testing.T) {
	engine := NewEngine(usGeocoder(), nil, nil, nil)

	result, err := engine.Compute(context.Background(), Request{Origin: "New York", Destination: "Boston"})
	if err != nil {
		t.Fatal(err)
	}
	spoken := result.Spoken()
	if !strings.HasPrefix(spoken, "New York is ") || !strings.Contains(spoken, "Boston") {
		t.Errorf("spoken = %q", spoken)
	}
	if strings.Contains(spoken, "look a place up") {
		t.Error("explicit origins carry no hint")
	}
}

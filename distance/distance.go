// Package distance resolves two place descriptors to coordinates and
// computes great-circle distance and drive-time estimates between them.
package distance

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/geocode"
	"github.com/mycobrun/whereabouts/locstore"
	"github.com/mycobrun/whereabouts/logging"
)

// ReferenceSpeedMPH is the constant speed assumed for drive-time
// estimates.
const ReferenceSpeedMPH = 60

// cancelTokens abort the whole computation silently when they appear in
// the destination phrase.
var cancelTokens = map[string]bool{
	"exit":   true,
	"quit":   true,
	"xzibit": true,
}

// Geocoder is the slice of the geocoder adapter the engine needs.
type Geocoder interface {
	Forward(ctx context.Context, place string) (*geocode.Place, error)
}

// CacheReader supplies the persisted current location used as the
// implicit origin.
type CacheReader interface {
	Read() (*locstore.Record, error)
}

// Prompter asks the user for a missing destination. Implementations are
// supplied by the host application; ok is false when no answer arrived.
type Prompter interface {
	Ask(ctx context.Context, question string) (answer string, ok bool)
}

// Request describes one distance computation.
type Request struct {
	// Origin is a free-text place. Empty means "my current location",
	// read from the location cache.
	Origin string

	// Destination is a free-text place. Empty triggers the Prompter.
	Destination string

	// Directions requests a drive-time estimate instead of plain
	// distance phrasing.
	Directions bool
}

// PlaceResolution is one resolved endpoint.
type PlaceResolution struct {
	Query           string
	ResolvedAddress string
	Country         string
	Location        geo.Point
}

// Travel is a drive-time estimate at the reference speed. Exactly one of
// Minutes and Hours is set.
type Travel struct {
	Minutes int
	Hours   int
}

// Singular reports whether the estimate is exactly one hour.
func (t Travel) Singular() bool {
	return t.Hours == 1
}

// Result is the outcome of one computation. Transient, never persisted.
type Result struct {
	Origin      PlaceResolution
	Destination PlaceResolution
	Miles       int
	SameCountry bool

	// OriginFromCache is true when no explicit origin was given.
	OriginFromCache bool

	// Travel is set only in directions mode.
	Travel *Travel

	// Hint is true the first time a cache-origin result is produced in
	// this engine's lifetime; the host appends a place-lookup hint.
	Hint bool
}

// Engine computes distances. One engine corresponds to one user session;
// the place-lookup hint is shown at most once per engine.
type Engine struct {
	geocoder  Geocoder
	cache     CacheReader
	prompter  Prompter
	logger    *logging.Logger
	hintShown bool
}

// NewEngine creates a distance engine. prompter may be nil; a missing
// destination is then a silent cancellation.
func NewEngine(geocoder Geocoder, cache CacheReader, prompter Prompter, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &Engine{
		geocoder: geocoder,
		cache:    cache,
		prompter: prompter,
		logger:   logger.WithComponent("distance"),
	}
}

// Compute resolves both endpoints and derives the distance metrics. A
// (nil, nil) return means the user cancelled; both endpoints failing to
// geocode is PLACE_NOT_FOUND, an unreadable location cache when the
// origin is implicit is NO_CURRENT_LOCATION.
func (e *Engine) Compute(ctx context.Context, req Request) (*Result, error) {
	destination := strings.TrimSpace(req.Destination)
	if containsCancelToken(destination) {
		e.logger.Debug("distance request cancelled", "destination", destination)
		return nil, nil
	}

	if destination == "" {
		if e.prompter == nil {
			return nil, nil
		}
		answer, ok := e.prompter.Ask(ctx, "Which place?")
		if !ok {
			return nil, nil
		}
		destination = strings.TrimSpace(answer)
		if destination == "" || containsCancelToken(destination) {
			return nil, nil
		}
	}

	result := &Result{OriginFromCache: strings.TrimSpace(req.Origin) == ""}

	var err error
	if result.OriginFromCache {
		result.Origin, err = e.cachedOrigin()
	} else {
		result.Origin, err = e.resolvePlace(ctx, req.Origin)
	}
	if err != nil {
		return nil, err
	}

	result.Destination, err = e.resolvePlace(ctx, destination)
	if err != nil {
		return nil, err
	}

	result.Miles = geo.MilesBetween(result.Origin.Location, result.Destination.Location)
	result.SameCountry = sameCountry(result.Origin.Country, result.Destination.Country)

	switch {
	case req.Directions:
		result.Travel = driveTime(result.Miles)
	case result.OriginFromCache:
		if !e.hintShown {
			result.Hint = true
			e.hintShown = true
		}
	}

	e.logger.Debug("distance computed",
		"origin", result.Origin.Query,
		"destination", result.Destination.Query,
		"miles", result.Miles,
		"same_country", result.SameCountry)
	return result, nil
}

// resolvePlace forward-geocodes a place phrase. No match, or a match
// without usable coordinates, is PLACE_NOT_FOUND; provider outages pass
// through untouched.
func (e *Engine) resolvePlace(ctx context.Context, phrase string) (PlaceResolution, error) {
	phrase = strings.TrimSpace(phrase)

	place, err := e.geocoder.Forward(ctx, phrase)
	if err != nil {
		return PlaceResolution{}, err
	}
	if place == nil || !place.Location.IsValid() {
		return PlaceResolution{}, errors.PlaceNotFound(phrase)
	}

	return PlaceResolution{
		Query:           phrase,
		ResolvedAddress: place.DisplayName,
		Country:         place.Address.Country,
		Location:        place.Location,
	}, nil
}

// cachedOrigin reads the implicit origin from the location cache. An
// unreadable cache is NO_CURRENT_LOCATION; a readable record with broken
// coordinates is PLACE_NOT_FOUND, since the destination may still be
// perfectly valid.
func (e *Engine) cachedOrigin() (PlaceResolution, error) {
	record, err := e.cache.Read()
	if err != nil {
		e.logger.Warn("location cache unreadable", "error", err)
		return PlaceResolution{}, errors.NoCurrentLocation()
	}

	point := record.Point()
	if !point.IsValid() {
		return PlaceResolution{}, errors.PlaceNotFound("current location")
	}

	return PlaceResolution{
		Query:           "current location",
		ResolvedAddress: recordAddress(record),
		Country:         record.Address.Country,
		Location:        point,
	}, nil
}

// driveTime converts miles to a time estimate at the reference speed:
// minutes for trips under one hour, otherwise whole hours rounded up.
func driveTime(miles int) *Travel {
	if miles < ReferenceSpeedMPH {
		return &Travel{Minutes: int(math.Round(float64(miles) / ReferenceSpeedMPH * 60))}
	}
	return &Travel{Hours: int(math.Ceil(float64(miles) / ReferenceSpeedMPH))}
}

// sameCountry compares resolved countries when both are known. An
// unknown country on either side counts as same, so the directions flow
// does not claim a flight is needed on missing data.
func sameCountry(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return strings.EqualFold(a, b)
}

func containsCancelToken(phrase string) bool {
	for _, word := range strings.Fields(strings.ToLower(phrase)) {
		if cancelTokens[word] {
			return true
		}
	}
	return false
}

func recordAddress(record *locstore.Record) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{record.Address.Locality(), record.Address.Region(), record.Address.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// Spoken renders the result as a sentence following the phrasing policy:
// drive time in directions mode, "you are N miles from X" when the
// origin came from the cache, and an explicit two-place comparison
// otherwise.
func (r *Result) Spoken() string {
	switch {
	case r.Travel != nil:
		if !r.SameCountry {
			return fmt.Sprintf("%s is %d miles away in another country; driving there is not an option, you need a flight.",
				r.Destination.Query, r.Miles)
		}
		if r.Travel.Minutes > 0 || r.Travel.Hours == 0 {
			return fmt.Sprintf("Driving the %d miles to %s takes about %d minutes.",
				r.Miles, r.Destination.Query, r.Travel.Minutes)
		}
		unit := "hours"
		if r.Travel.Singular() {
			unit = "hour"
		}
		return fmt.Sprintf("Driving the %d miles to %s takes about %d %s.",
			r.Miles, r.Destination.Query, r.Travel.Hours, unit)
	case r.OriginFromCache:
		sentence := fmt.Sprintf("You are %d miles away from %s.", r.Miles, r.Destination.Query)
		if r.Hint {
			sentence += " You can also ask me to look a place up."
		}
		return sentence
	default:
		return fmt.Sprintf("%s is %d miles away from %s.", r.Origin.Query, r.Miles, r.Destination.Query)
	}
}

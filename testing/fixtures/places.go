// Package fixtures provides canned geocoder payloads shared by tests.
package fixtures

import (
	"strconv"

	"github.com/mycobrun/whereabouts/geo"
)

// Well-known coordinates used across tests.
var (
	Springfield = geo.Point{Lat: 37.230881, Lng: -93.3710393}
	NewYork     = geo.Point{Lat: 40.7128, Lng: -74.006}
	Boston      = geo.Point{Lat: 42.3601, Lng: -71.0589}
	Paris       = geo.Point{Lat: 48.8566, Lng: 2.3522}
)

// NominatimReverse builds a jsonv2 reverse-geocode response body.
func NominatimReverse(city, state, country string) map[string]any {
	return map[string]any{
		"display_name": city + ", " + state + ", " + country,
		"address": map[string]string{
			"city":    city,
			"state":   state,
			"country": country,
		},
	}
}

// NominatimSearch builds a jsonv2 search response body with one match.
func NominatimSearch(displayName string, location geo.Point, country string) []map[string]any {
	return []map[string]any{
		{
			"lat":          formatCoord(location.Lat),
			"lon":          formatCoord(location.Lng),
			"display_name": displayName,
			"address": map[string]string{
				"country": country,
			},
		},
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

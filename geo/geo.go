// Package geo provides coordinate types and great-circle math.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// EarthRadiusKm is the Earth's radius in kilometers.
	EarthRadiusKm = 6371.0
	// MetersPerKm converts kilometers to meters.
	MetersPerKm = 1000.0
	// MilesPerKm converts kilometers to statute miles.
	MilesPerKm = 0.621371
)

// Point represents a geographic coordinate. An unresolved location is a
// nil *Point, never a zero or sentinel value.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint creates a new Point.
func NewPoint(lat, lng float64) Point {
	return Point{Lat: lat, Lng: lng}
}

// IsValid reports whether both coordinates are finite and in range.
func (p Point) IsValid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// String formats the point as "lat,lng", the wire form used by IP
// geolocation providers.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// ParsePair parses a "lat,lon" pair. It rejects pairs that are not two
// finite in-range floats.
func ParsePair(s string) (Point, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("malformed coordinate pair %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed latitude in %q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed longitude in %q: %w", s, err)
	}
	p := Point{Lat: lat, Lng: lng}
	if !p.IsValid() {
		return Point{}, fmt.Errorf("coordinate pair %q out of range", s)
	}
	return p, nil
}

// HaversineDistance calculates the great-circle distance between two
// points using the Haversine formula. Returns distance in kilometers.
func HaversineDistance(p1, p2 Point) float64 {
	lat1 := degreesToRadians(p1.Lat)
	lat2 := degreesToRadians(p2.Lat)
	deltaLat := degreesToRadians(p2.Lat - p1.Lat)
	deltaLng := degreesToRadians(p2.Lng - p1.Lng)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// HaversineDistanceMeters returns distance in meters.
func HaversineDistanceMeters(p1, p2 Point) float64 {
	return HaversineDistance(p1, p2) * MetersPerKm
}

// HaversineDistanceMiles returns distance in statute miles.
func HaversineDistanceMiles(p1, p2 Point) float64 {
	return HaversineDistance(p1, p2) * MilesPerKm
}

// MilesBetween returns the great-circle distance rounded to the nearest
// whole mile.
func MilesBetween(p1, p2 Point) int {
	return int(math.Round(HaversineDistanceMiles(p1, p2)))
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

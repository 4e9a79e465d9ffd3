package geo

import (
	"github.com/uber/h3-go/v4"
)

// CellResolution defines H3 resolution levels used for bucketing nearby
// coordinates under one cache key.
// Resolution 7: ~5.16 km² average hexagon area (~1.22 km edge)
// Resolution 8: ~0.74 km² average hexagon area (~0.46 km edge)
// Resolution 9: ~0.11 km² average hexagon area (~0.17 km edge)
type CellResolution int

const (
	// CellResolutionCity is for city-level bucketing (resolution 7).
	CellResolutionCity CellResolution = 7
	// CellResolutionNeighborhood is for neighborhood-level bucketing (resolution 8).
	CellResolutionNeighborhood CellResolution = 8
	// CellResolutionBlock is for block-level bucketing (resolution 9).
	CellResolutionBlock CellResolution = 9
)

// CellKey returns the H3 cell index string for a point at the given
// resolution. Points within the same hexagon share a key, which makes it
// a stable cache key for reverse geocoding.
func CellKey(p Point, resolution CellResolution) string {
	cell := h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lng}, int(resolution))
	return h3.IndexToString(uint64(cell))
}

// CellCenter returns the center point of the H3 cell containing p at the
// given resolution.
func CellCenter(p Point, resolution CellResolution) Point {
	cell := h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lng}, int(resolution))
	latLng := h3.CellToLatLng(cell)
	return Point{Lat: latLng.Lat, Lng: latLng.Lng}
}

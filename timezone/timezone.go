// Package timezone maps coordinates to IANA zone names without any
// network call, using an embedded zone-boundary table.
package timezone

import (
	"github.com/bradfitz/latlong"

	"github.com/mycobrun/whereabouts/geo"
)

// Lookup resolves the IANA timezone name for a point.
type Lookup interface {
	// TimezoneAt returns the zone name, or ok=false when the point
	// falls outside every known zone polygon.
	TimezoneAt(p geo.Point) (name string, ok bool)
}

// OfflineLookup resolves zones from the embedded boundary data.
type OfflineLookup struct{}

// NewOfflineLookup creates an offline timezone resolver.
func NewOfflineLookup() *OfflineLookup {
	return &OfflineLookup{}
}

// TimezoneAt resolves the zone for the given point. Ocean points and
// invalid coordinates return ok=false rather than an error; callers
// keep whatever zone they already have.
func (l *OfflineLookup) TimezoneAt(p geo.Point) (string, bool) {
	if !p.IsValid() {
		return "", false
	}
	name := latlong.LookupZoneName(p.Lat, p.Lng)
	return name, name != ""
}

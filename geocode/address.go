package geocode

import (
	"strings"

	"github.com/mycobrun/whereabouts/geo"
)

// Address is a structured geocoder address. Fields are optional; not
// every provider response populates all of them.
type Address struct {
	Road       string `json:"road,omitempty" yaml:"road,omitempty"`
	City       string `json:"city,omitempty" yaml:"city,omitempty"`
	County     string `json:"county,omitempty" yaml:"county,omitempty"`
	State      string `json:"state,omitempty" yaml:"state,omitempty"`
	Country    string `json:"country,omitempty" yaml:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty" yaml:"postcode,omitempty"`
}

// Empty reports whether no field is populated.
func (a Address) Empty() bool {
	return a == Address{}
}

// Locality returns the city-or-county slot, preferring city.
func (a Address) Locality() string {
	if a.City != "" {
		return a.City
	}
	return a.County
}

// Region returns the state-or-county slot, preferring state.
func (a Address) Region() string {
	if a.State != "" {
		return a.State
	}
	return a.County
}

// SameCountry reports whether both addresses name a country and it is the
// same one, compared case-insensitively.
func (a Address) SameCountry(other Address) bool {
	if a.Country == "" || other.Country == "" {
		return false
	}
	return strings.EqualFold(a.Country, other.Country)
}

// Place is a forward-geocoded result: the provider's display name for the
// match plus its coordinates.
type Place struct {
	DisplayName string    `json:"display_name"`
	Location    geo.Point `json:"location"`
	Address     Address   `json:"address"`
}

// Package locstore persists the last resolved location as a single
// human-editable YAML record. An operator may hand-edit the file and set
// reserved: true to pin the location permanently.
package locstore

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/geocode"
	"github.com/mycobrun/whereabouts/logging"
)

// Record is the persisted location.
type Record struct {
	Timezone  string          `yaml:"timezone" json:"timezone" validate:"omitempty,tzname"`
	Latitude  float64         `yaml:"latitude" json:"latitude" validate:"latitude"`
	Longitude float64         `yaml:"longitude" json:"longitude" validate:"longitude"`
	Address   geocode.Address `yaml:"address" json:"address"`
	Reserved  bool            `yaml:"reserved" json:"reserved"`
}

// Point returns the record's coordinates.
func (r Record) Point() geo.Point {
	return geo.Point{Lat: r.Latitude, Lng: r.Longitude}
}

// Store reads and writes the location record file.
type Store struct {
	path   string
	logger *logging.Logger
}

// NewStore creates a store backed by the given file path.
func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &Store{
		path:   path,
		logger: logger.WithComponent("locstore"),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Read returns the persisted record. A missing, unreadable, or
// unparseable file is a READ_FAILURE; callers treat that as "no trusted
// current location" and degrade, never crash.
func (s *Store) Read() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.ReadFailure(err, s.path)
	}

	var record Record
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, errors.ReadFailure(err, s.path)
	}
	return &record, nil
}

// Write atomically replaces the record: the new content lands in a temp
// file first and is renamed over the old one, so a concurrent reader
// never observes a partial record.
func (s *Store) Write(record Record) error {
	data, err := yaml.Marshal(record)
	if err != nil {
		return errors.InternalWrap(err, "failed to marshal location record")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.InternalWrap(err, "failed to create location record directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*")
	if err != nil {
		return errors.InternalWrap(err, "failed to create temp location record")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.InternalWrap(err, "failed to write location record")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.InternalWrap(err, "failed to close location record")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.InternalWrap(err, "failed to set location record permissions")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.InternalWrap(err, fmt.Sprintf("failed to replace location record at %s", s.path))
	}

	s.logger.Info("location record written", "path", s.path, "reserved", record.Reserved)
	return nil
}

// Trusted reports whether the record is operator-pinned and complete
// enough to skip automatic refresh: reserved, valid coordinates, a
// city-or-county, a country, and a state-or-county.
func Trusted(record *Record) bool {
	if record == nil || !record.Reserved {
		return false
	}
	// A 0,0 pair in a hand-edited file means the fields were never
	// written, not a fix on Null Island.
	if record.Latitude == 0 && record.Longitude == 0 {
		return false
	}
	if !record.Point().IsValid() {
		return false
	}
	addr := record.Address
	return addr.Locality() != "" && addr.Country != "" && addr.Region() != ""
}

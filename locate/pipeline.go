package locate

import (
	"context"

	"github.com/mycobrun/whereabouts/device"
	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/geocode"
	"github.com/mycobrun/whereabouts/locstore"
	"github.com/mycobrun/whereabouts/logging"
	"github.com/mycobrun/whereabouts/timezone"
	"github.com/mycobrun/whereabouts/validation"
)

// State names the device-location state machine's states.
type State string

const (
	StateQueryDirectory   State = "QUERY_DIRECTORY"
	StateQueryDevice      State = "QUERY_DEVICE"
	StateSuccess          State = "SUCCESS"
	StateOffline          State = "OFFLINE"
	StateDirectoryFailure State = "DIRECTORY_FAILURE"
	StateFallback         State = "FALLBACK_TO_IP"
	StateResolveAddress   State = "RESOLVE_ADDRESS"
)

// Mode distinguishes the two locate call sites, which tolerate guessing
// differently.
type Mode int

const (
	// ModeSelf is the "where am I" context: an offline device degrades
	// to the network fallback chain.
	ModeSelf Mode = iota

	// ModeDeviceLookup is the "show me where device X is" context: an
	// offline device is a NOT_FOUND terminal, never a guess.
	ModeDeviceLookup
)

// Geocoder is the slice of the geocoder adapter the pipeline needs.
type Geocoder interface {
	Reverse(ctx context.Context, location geo.Point) (*geocode.Address, error)
}

// DeviceLocation is a located device or host: coordinates, the
// reverse-geocoded address, the fix provenance, and the device's
// self-reported status when one answered.
type DeviceLocation struct {
	Point   geo.Point
	Address geocode.Address
	Source  Source
	Status  *device.Status
}

// Pipeline orchestrates the coordinate provider, the geocoder, the
// timezone lookup, and the location record store.
type Pipeline struct {
	provider *Provider
	geocoder Geocoder
	store    *locstore.Store
	timezone timezone.Lookup
	logger   *logging.Logger
}

// NewPipeline creates a resolution pipeline. timezone may be nil, in
// which case refreshed records carry no zone name.
func NewPipeline(provider *Provider, geocoder Geocoder, store *locstore.Store, tz timezone.Lookup, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &Pipeline{
		provider: provider,
		geocoder: geocoder,
		store:    store,
		timezone: tz,
		logger:   logger.WithComponent("locate"),
	}
}

// RefreshCurrentLocation re-resolves and persists the current location.
// Idempotent: when the stored record is operator-pinned and complete,
// nothing is resolved and nothing is written.
func (p *Pipeline) RefreshCurrentLocation(ctx context.Context) error {
	record, err := p.store.Read()
	if err == nil && locstore.Trusted(record) {
		p.logger.Info("location record is reserved, skipping refresh")
		return nil
	}
	if err != nil {
		p.logger.Info("no readable location record, refreshing", "error", err)
	}

	fix, err := p.provider.Resolve(ctx, "")
	if err != nil {
		return err
	}

	addr, err := p.geocoder.Reverse(ctx, fix.Point)
	if err != nil {
		return err
	}

	fresh := locstore.Record{
		Latitude:  fix.Point.Lat,
		Longitude: fix.Point.Lng,
		Reserved:  false,
	}
	if addr != nil {
		fresh.Address = *addr
	}
	if record != nil {
		// Keep the previous zone when the lookup cannot improve on it.
		fresh.Timezone = record.Timezone
	}
	if p.timezone != nil {
		if zone, ok := p.timezone.TimezoneAt(fix.Point); ok {
			fresh.Timezone = zone
		}
	}

	// A record that fails validation here is a broken precondition, not
	// something to quietly persist.
	if details := validation.ValidateStruct(&fresh); details != nil {
		return errors.ValidationWithDetails("refreshed location record is invalid", details)
	}

	if err := p.store.Write(fresh); err != nil {
		return err
	}

	p.logger.Info("location refreshed",
		"source", string(fix.Source),
		"city", fresh.Address.Locality(),
		"timezone", fresh.Timezone)
	return nil
}

// LocateDevice resolves the device named by phrase to coordinates and an
// address. The decision tree is run as an explicit state machine so each
// terminal outcome stays independently observable.
func (p *Pipeline) LocateDevice(ctx context.Context, phrase string, mode Mode) (*DeviceLocation, error) {
	var (
		result DeviceLocation
		dev    device.Device
	)

	state := StateQueryDirectory
	for {
		p.logger.Debug("locate state", "state", string(state), "device", phrase)

		switch state {
		case StateQueryDirectory:
			if p.provider.directory == nil {
				state = StateDirectoryFailure
				continue
			}
			devices, err := p.provider.devices(ctx)
			if err != nil {
				if errors.IsConnectivity(err) {
					return nil, err
				}
				state = StateDirectoryFailure
				continue
			}
			dev = device.Match(devices, phrase)
			if dev == nil {
				state = StateDirectoryFailure
				continue
			}
			state = StateQueryDevice

		case StateQueryDevice:
			point, err := dev.Location(ctx)
			if err != nil {
				if errors.IsConnectivity(err) {
					return nil, err
				}
				state = StateDirectoryFailure
				continue
			}
			if point == nil {
				state = StateOffline
				continue
			}
			result.Point = *point
			result.Source = SourceDevice
			state = StateSuccess

		case StateSuccess:
			state = StateResolveAddress

		case StateOffline:
			if mode == ModeDeviceLookup {
				return nil, errors.NotFound("device location")
			}
			state = StateFallback

		case StateDirectoryFailure:
			state = StateFallback

		case StateFallback:
			fix := p.provider.networkFix(ctx)
			result.Point = fix.Point
			result.Source = fix.Source
			state = StateResolveAddress

		case StateResolveAddress:
			addr, err := p.geocoder.Reverse(ctx, result.Point)
			if err != nil {
				return nil, err
			}
			if addr == nil || addr.Empty() {
				// Coordinates without an address are nothing to report.
				return nil, errors.NotFound("address for location")
			}
			result.Address = *addr

			if result.Source == SourceDevice && dev != nil {
				if status, err := dev.Status(ctx); err == nil {
					result.Status = status
				} else {
					p.logger.Warn("device status unavailable", "error", err)
				}
			}
			return &result, nil

		default:
			return nil, errors.Internal("unknown locate state " + string(state))
		}
	}
}

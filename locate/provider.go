// Package locate resolves "where am I" and "where is device X": an
// ordered fallback chain over device, IP, and latency geolocation, and a
// pipeline that turns the resulting coordinates into a persisted,
// addressed location record.
package locate

import (
	"context"

	"github.com/mycobrun/whereabouts/device"
	"github.com/mycobrun/whereabouts/errors"
	"github.com/mycobrun/whereabouts/geo"
	"github.com/mycobrun/whereabouts/ipgeo"
	"github.com/mycobrun/whereabouts/logging"
)

// Source identifies which provider produced a coordinate fix.
type Source string

const (
	SourceDevice  Source = "device"
	SourceIP      Source = "ip"
	SourceLatency Source = "latency"
	SourceDefault Source = "default"
)

// Fix is a resolved coordinate pair tagged with its provenance.
type Fix struct {
	Point  geo.Point
	Source Source
}

// Provider is the single choke point for "current coordinates": every
// component that needs them calls Resolve, never the underlying services
// directly.
type Provider struct {
	directory       device.Directory
	ip              ipgeo.Locator
	latency         ipgeo.Locator
	defaultLocation geo.Point
	logger          *logging.Logger
}

// NewProvider creates a coordinate provider. directory, ip, and latency
// may each be nil; a nil directory disables device lookups and nil
// locators shorten the fallback chain.
func NewProvider(directory device.Directory, ip, latency ipgeo.Locator, defaultLocation geo.Point, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &Provider{
		directory:       directory,
		ip:              ip,
		latency:         latency,
		defaultLocation: defaultLocation,
		logger:          logger.WithComponent("locate"),
	}
}

// Resolve returns current coordinates for the host, trying the named (or
// host-matched) device first and falling through the network chain when
// the device cannot answer. Transport failures talking to the directory
// are returned, not swallowed; an offline device or a directory refusal
// degrades to the network chain.
func (p *Provider) Resolve(ctx context.Context, phrase string) (Fix, error) {
	if p.directory != nil {
		point, _, err := p.deviceFix(ctx, phrase)
		switch {
		case err == nil && point != nil:
			return Fix{Point: *point, Source: SourceDevice}, nil
		case errors.IsConnectivity(err):
			return Fix{}, err
		default:
			// Offline device or directory refusal.
			p.logger.Warn("device location unavailable, falling back", "error", err)
		}
	}
	return p.networkFix(ctx), nil
}

// deviceFix queries the directory for the best-matching device and asks
// it for its location. A directory refusal is retried once after an
// explicit re-authentication; a second refusal stands.
func (p *Provider) deviceFix(ctx context.Context, phrase string) (*geo.Point, device.Device, error) {
	devices, err := p.devices(ctx)
	if err != nil {
		return nil, nil, err
	}

	dev := device.Match(devices, phrase)
	if dev == nil {
		return nil, nil, errors.NotFound("device")
	}

	point, err := dev.Location(ctx)
	if err != nil {
		return nil, dev, err
	}
	if point == nil {
		return nil, dev, errors.DeviceOffline(dev.Name())
	}
	return point, dev, nil
}

// devices lists directory devices with the single allowed
// re-authentication retry.
func (p *Provider) devices(ctx context.Context) ([]device.Device, error) {
	devices, err := p.directory.Devices(ctx)
	if err == nil {
		return devices, nil
	}
	if !errors.IsDirectoryFailure(err) {
		return nil, err
	}

	p.logger.Warn("directory listing refused, re-authenticating once", "error", err)
	if authErr := p.directory.Authenticate(ctx); authErr != nil {
		return nil, authErr
	}
	return p.directory.Devices(ctx)
}

// networkFix walks the deviceless part of the chain: public-IP
// geolocation, then latency-based geolocation, then the documented
// default coordinates. The default is a degraded success, logged as a
// warning, so callers always receive a usable fix.
func (p *Provider) networkFix(ctx context.Context) Fix {
	if p.ip != nil {
		point, err := p.ip.Locate(ctx)
		if err == nil {
			return Fix{Point: point, Source: SourceIP}
		}
		p.logger.Warn("IP geolocation failed", "error", err)
	}

	if p.latency != nil {
		point, err := p.latency.Locate(ctx)
		if err == nil {
			return Fix{Point: point, Source: SourceLatency}
		}
		p.logger.Warn("latency geolocation failed", "error", err)
	}

	p.logger.Warn("all geolocation providers failed, using default location",
		"lat", p.defaultLocation.Lat,
		"lng", p.defaultLocation.Lng)
	return Fix{Point: p.defaultLocation, Source: SourceDefault}
}

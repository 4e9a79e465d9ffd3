// Package device provides the device directory adapter: listing a user's
// registered devices and asking one for its reported location. The
// directory service itself is opaque; only its narrow contract matters
// here.
package device

import (
	"context"
	"os"
	"strings"

	"github.com/mycobrun/whereabouts/geo"
)

// Status is a device's self-reported state.
type Status struct {
	// BatteryLevel is a fraction in [0, 1]; 0 means unknown on most
	// device families.
	BatteryLevel float64 `json:"batteryLevel"`
	// DisplayName is the marketing model name ("iPhone 15 Pro").
	DisplayName string `json:"deviceDisplayName"`
	// Name is the user-assigned device name.
	Name string `json:"name"`
}

// Device is a single directory entry.
type Device interface {
	// Name returns the user-assigned device name.
	Name() string

	// Location returns the device's reported coordinates. A nil point
	// with nil error means the device exists but reported no location
	// (offline); transport failures are errors.
	Location(ctx context.Context) (*geo.Point, error)

	// Status returns the device's self-reported state.
	Status(ctx context.Context) (*Status, error)
}

// Directory lists devices after authenticating against the directory
// service.
type Directory interface {
	// Authenticate establishes or renews the directory session.
	Authenticate(ctx context.Context) error

	// Devices returns all registered devices for the account.
	Devices(ctx context.Context) ([]Device, error)
}

// Match selects the device whose name best matches the phrase. An empty
// phrase falls back to the local host name, so "where am I" maps to the
// machine the assistant runs on. Returns nil when no devices are given.
func Match(devices []Device, phrase string) Device {
	if len(devices) == 0 {
		return nil
	}
	if phrase == "" {
		if host, err := os.Hostname(); err == nil {
			phrase, _, _ = strings.Cut(host, ".")
		}
	}

	best := devices[0]
	bestScore := -1.0
	for _, d := range devices {
		score := similarity(phrase, d.Name())
		if score > bestScore {
			best = d
			bestScore = score
		}
	}
	return best
}

// similarity is a bigram Dice coefficient over lowercased names, in
// [0, 1].
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := func(s string) map[string]int {
		m := make(map[string]int)
		runes := []rune(s)
		for i := 0; i < len(runes)-1; i++ {
			m[string(runes[i:i+2])]++
		}
		return m
	}

	aGrams := bigrams(a)
	bGrams := bigrams(b)

	overlap := 0
	total := 0
	for gram, count := range aGrams {
		total += count
		if other, ok := bGrams[gram]; ok {
			if other < count {
				overlap += other
			} else {
				overlap += count
			}
		}
	}
	for _, count := range bGrams {
		total += count
	}
	if total == 0 {
		return 0
	}
	return 2 * float64(overlap) / float64(total)
}

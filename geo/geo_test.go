package geo

import (
	"math"
	"testing"
)

func TestPoint_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		want  bool
	}{
		{"origin", Point{0, 0}, true},
		{"springfield", Point{37.230881, -93.3710393}, true},
		{"north pole", Point{90, 0}, true},
		{"lat too high", Point{90.1, 0}, false},
		{"lng too low", Point{0, -180.5}, false},
		{"nan lat", Point{math.NaN(), 0}, false},
		{"inf lng", Point{0, math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePair(t *testing.T) {
	tests := []struct {
		input   string
		want    Point
		wantErr bool
	}{
		{"37.230881,-93.3710393", Point{37.230881, -93.3710393}, false},
		{" 40.7128 , -74.0060 ", Point{40.7128, -74.0060}, false},
		{"not,numbers", Point{}, true},
		{"12.5", Point{}, true},
		{"91.0,10.0", Point{}, true},
		{"", Point{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePair(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePair(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParsePair(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHaversineDistanceMiles(t *testing.T) {
	newYork := Point{40.7128, -74.0060}
	boston := Point{42.3601, -71.0589}

	miles := HaversineDistanceMiles(newYork, boston)
	if miles < 185 || miles > 195 {
		t.Errorf("NYC-Boston = %.1f miles, want ~190", miles)
	}

	// Symmetric in magnitude.
	reverse := HaversineDistanceMiles(boston, newYork)
	if math.Abs(miles-reverse) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", miles, reverse)
	}

	if d := HaversineDistance(newYork, newYork); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
}

func TestMilesBetween(t *testing.T) {
	newYork := Point{40.7128, -74.0060}
	boston := Point{42.3601, -71.0589}

	if a, b := MilesBetween(newYork, boston), MilesBetween(boston, newYork); a != b {
		t.Errorf("MilesBetween not symmetric: %d vs %d", a, b)
	}
}

func TestCellKey(t *testing.T) {
	p := Point{37.230881, -93.3710393}

	key := CellKey(p, CellResolutionNeighborhood)
	if key == "" {
		t.Fatal("CellKey returned empty string")
	}

	// Nearby points (~50m apart) land in the same neighborhood cell.
	nearby := Point{37.23095, -93.37110}
	if got := CellKey(nearby, CellResolutionNeighborhood); got != key {
		t.Errorf("nearby point got cell %s, want %s", got, key)
	}

	// A point a few hundred kilometers away must not.
	chicago := Point{41.8781, -87.6298}
	if got := CellKey(chicago, CellResolutionNeighborhood); got == key {
		t.Error("distant point mapped to the same cell")
	}
}

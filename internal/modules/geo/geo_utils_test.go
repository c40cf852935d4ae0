package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 41.1179, lng1: -87.8656,
			lat2: 41.1179, lng2: -87.8656,
			wantKm:    0,
			tolerance: 0,
		},
		{
			name: "Kankakee to Chicago Loop (~90km)",
			lat1: 41.1179, lng1: -87.8656,
			lat2: 41.8781, lng2: -87.6298,
			wantKm:    86.5,
			tolerance: 2.0,
		},
		{
			name: "New York to Los Angeles (~3944km)",
			lat1: 40.7128, lng1: -74.0060,
			lat2: 34.0522, lng2: -118.2437,
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversine_Symmetry(t *testing.T) {
	pairs := [][4]float64{
		{25.0, 121.0, 26.0, 122.0},
		{41.1179, -87.8656, 41.8781, -87.6298},
		{-33.86, 151.2, 51.5, -0.12},
	}
	for _, p := range pairs {
		for _, unit := range []Unit{UnitKm, UnitMi} {
			d1 := Haversine(p[0], p[1], p[2], p[3], unit)
			d2 := Haversine(p[2], p[3], p[0], p[1], unit)
			if math.Abs(d1-d2) > 1e-9 {
				t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
			}
		}
	}
}

func TestHaversine_MilesUseMileRadius(t *testing.T) {
	km := Haversine(40.7128, -74.0060, 34.0522, -118.2437, UnitKm)
	mi := Haversine(40.7128, -74.0060, 34.0522, -118.2437, UnitMi)
	if math.Abs(km/EarthRadiusKm-mi/EarthRadiusMi) > 1e-12 {
		t.Errorf("unit radii not applied consistently: %f km vs %f mi", km, mi)
	}
}

func TestCalculateDistance_SamePointIsZero(t *testing.T) {
	if got := CalculateDistance(41.1179, -87.8656, 41.1179, -87.8656, "mile"); got != 0.0 {
		t.Fatalf("expected 0.0, got %v", got)
	}
}

func TestLawOfCosinesDriftIsSmall(t *testing.T) {
	h := Haversine(41.1179, -87.8656, 41.1279, -87.8556, UnitKm)
	l := lawOfCosines(41.1179, -87.8656, 41.1279, -87.8556, UnitKm)
	if math.Abs(h-l) > 0.01 {
		t.Errorf("retired formula drifted more than 10m: haversine=%f cosines=%f", h, l)
	}
}

func TestParseUnit(t *testing.T) {
	cases := map[string]Unit{"mile": UnitMi, "mi": UnitMi, "miles": UnitMi, "km": UnitKm, "": UnitKm, "kilometer": UnitKm}
	for in, want := range cases {
		if got := ParseUnit(in); got != want {
			t.Errorf("ParseUnit(%q) = %s, want %s", in, got, want)
		}
	}
}

type hubDistance struct {
	ID       int64
	Distance float64
}

func TestSortByDistance(t *testing.T) {
	hubs := []hubDistance{{ID: 3, Distance: 5.0}, {ID: 1, Distance: 1.0}, {ID: 2, Distance: 3.0}}
	SortByDistance(hubs, func(h hubDistance) float64 { return h.Distance })
	if hubs[0].ID != 1 || hubs[1].ID != 2 || hubs[2].ID != 3 {
		t.Errorf("unexpected sort order: %v", hubs)
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var hubs []hubDistance
	SortByDistance(hubs, func(h hubDistance) float64 { return h.Distance })
}

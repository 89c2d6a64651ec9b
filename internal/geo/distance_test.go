package geo

import (
	"math"
	"testing"

	"roadsafe/internal/model"
)

func TestDistanceZero(t *testing.T) {
	p := model.Position{Latitude: 12.9716, Longitude: 77.5946}
	if d := Distance(p, p); d != 0 {
		t.Errorf("expected zero distance, got %f", d)
	}
}

func TestDistanceKnownOffsets(t *testing.T) {
	base := model.Position{Latitude: 12.9716, Longitude: 77.5946}

	tests := []struct {
		name     string
		other    model.Position
		expected float64 // meters
	}{
		{"30m north", model.Position{Latitude: base.Latitude + 30.0/111195, Longitude: base.Longitude}, 30},
		{"100m north", model.Position{Latitude: base.Latitude + 100.0/111195, Longitude: base.Longitude}, 100},
		{"1 degree latitude", model.Position{Latitude: base.Latitude + 1, Longitude: base.Longitude}, 111195},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Distance(base, tt.other)
			if math.Abs(d-tt.expected) > tt.expected*0.01 {
				t.Errorf("expected ~%f m, got %f m", tt.expected, d)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := model.Position{Latitude: 12.9716, Longitude: 77.5946}
	b := model.Position{Latitude: 12.9800, Longitude: 77.6000}

	if ab, ba := Distance(a, b), Distance(b, a); math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", ab, ba)
	}
}

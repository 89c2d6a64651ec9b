package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"roadsafe/internal/model"
)

func TestDefaultCoversAllHazardTypes(t *testing.T) {
	c := Default()

	types := []model.HazardType{
		model.HazardPothole,
		model.HazardConstruction,
		model.HazardWetRoad,
		model.HazardStoppedVehicle,
		model.HazardAnimal,
		model.HazardAccident,
		model.HazardDebris,
	}

	for _, hazardType := range types {
		entry := c.Entry(hazardType)
		if entry.Label == "" || entry.Glyph == "" || entry.Color == "" {
			t.Errorf("incomplete entry for %s: %+v", hazardType, entry)
		}
	}
}

func TestUnknownTypeFallsBack(t *testing.T) {
	c := Default()
	entry := c.Entry(model.HazardType("sinkhole"))
	if entry.Label != "Hazard" {
		t.Errorf("expected the fallback entry, got %+v", entry)
	}
}

func TestFormatAlert(t *testing.T) {
	c := Default()
	event := model.HazardEvent{Type: model.HazardConstruction, Description: "Lane closed ahead"}
	if got := c.FormatAlert(event); got != "🚧 Lane closed ahead" {
		t.Errorf("unexpected alert text %q", got)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `pothole:
  label: Road damage
wet_road:
  color: "#0000FF"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// Overridden fields replace the defaults, omitted fields keep them.
	pothole := c.Entry(model.HazardPothole)
	if pothole.Label != "Road damage" {
		t.Errorf("expected the overridden label, got %q", pothole.Label)
	}
	if pothole.Glyph != "⚠️" || pothole.Color != "#FF3B30" {
		t.Errorf("expected default glyph and color to survive, got %+v", pothole)
	}

	wet := c.Entry(model.HazardWetRoad)
	if wet.Color != "#0000FF" {
		t.Errorf("expected the overridden color, got %q", wet.Color)
	}
	if wet.Label != "Wet road" {
		t.Errorf("expected the default label to survive, got %q", wet.Label)
	}

	// Untouched types keep their built-in entries.
	if c.Entry(model.HazardDebris).Label != "Debris" {
		t.Error("untouched types must keep their defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing catalog file")
	}
}

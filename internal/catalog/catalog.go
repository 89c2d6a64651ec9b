package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"roadsafe/internal/model"
)

// Entry describes how one hazard type is presented.
type Entry struct {
	Label string `yaml:"label"`
	Glyph string `yaml:"glyph"`
	Color string `yaml:"color"`
}

// Catalog maps hazard types to their presentation. Unknown types fall back
// to the pothole-style warning entry.
type Catalog struct {
	entries map[model.HazardType]Entry
}

var fallback = Entry{Label: "Hazard", Glyph: "⚠️", Color: "#FF3B30"}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{entries: map[model.HazardType]Entry{
		model.HazardPothole:        {Label: "Pothole", Glyph: "⚠️", Color: "#FF3B30"},
		model.HazardConstruction:   {Label: "Construction", Glyph: "🚧", Color: "#FF9500"},
		model.HazardWetRoad:        {Label: "Wet road", Glyph: "💧", Color: "#007AFF"},
		model.HazardStoppedVehicle: {Label: "Stopped vehicle", Glyph: "🚗", Color: "#FFCC00"},
		model.HazardAnimal:         {Label: "Animal", Glyph: "🦌", Color: "#34C759"},
		model.HazardAccident:       {Label: "Accident", Glyph: "🚨", Color: "#FF2D55"},
		model.HazardDebris:         {Label: "Debris", Glyph: "🪨", Color: "#8E8E93"},
	}}
}

// Load reads a YAML catalog file and overlays it on the defaults. Types not
// present in the file keep their built-in entries.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	overrides := make(map[string]Entry)
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	c := Default()
	for name, entry := range overrides {
		base := c.Entry(model.HazardType(name))
		if entry.Label == "" {
			entry.Label = base.Label
		}
		if entry.Glyph == "" {
			entry.Glyph = base.Glyph
		}
		if entry.Color == "" {
			entry.Color = base.Color
		}
		c.entries[model.HazardType(name)] = entry
	}
	return c, nil
}

// Entry returns the presentation for a hazard type.
func (c *Catalog) Entry(hazardType model.HazardType) Entry {
	if entry, ok := c.entries[hazardType]; ok {
		return entry
	}
	return fallback
}

// FormatAlert renders the one-line text shown for an event.
func (c *Catalog) FormatAlert(event model.HazardEvent) string {
	return c.Entry(event.Type).Glyph + " " + event.Description
}

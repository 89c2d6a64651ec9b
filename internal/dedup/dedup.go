package dedup

import (
	"sync"
	"time"

	"roadsafe/internal/geo"
	"roadsafe/internal/model"
)

// CooldownEntry records the most recent accepted detection of one hazard type.
type CooldownEntry struct {
	Position  model.Position
	Timestamp time.Time
}

// Engine suppresses repeat detections of the same hazard type that are close
// in both time and space. It keeps exactly one entry per type: Record
// overwrites, never appends. This is not a sliding-window history; the most
// recent accepted detection is the only reference point.
type Engine struct {
	window time.Duration
	radius float64 // meters

	mu      sync.Mutex
	entries map[model.HazardType]CooldownEntry
}

// NewEngine creates an engine with the given cooldown window and proximity
// radius in meters.
func NewEngine(window time.Duration, radiusMeters float64) *Engine {
	return &Engine{
		window:  window,
		radius:  radiusMeters,
		entries: make(map[model.HazardType]CooldownEntry),
	}
}

// ShouldSuppress reports whether a detection of hazardType at pos is a
// duplicate of the last accepted detection of that type. Both conditions must
// hold: inside the cooldown window AND inside the proximity radius. A
// detection far away or long after is always accepted.
func (e *Engine) ShouldSuppress(hazardType model.HazardType, pos model.Position, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[hazardType]
	if !ok {
		return false
	}
	if now.Sub(entry.Timestamp) >= e.window {
		return false
	}
	return geo.Distance(entry.Position, pos) < e.radius
}

// Record stores the accepted detection, overwriting the entry for its type.
// Call only after ShouldSuppress returned false.
func (e *Engine) Record(hazardType model.HazardType, pos model.Position, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.entries[hazardType] = CooldownEntry{Position: pos, Timestamp: now}
}

// Last returns the live cooldown entry for a type, if any.
func (e *Engine) Last(hazardType model.HazardType) (CooldownEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[hazardType]
	return entry, ok
}

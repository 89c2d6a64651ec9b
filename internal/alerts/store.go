package alerts

import (
	"sort"
	"sync"

	"roadsafe/internal/model"
)

// Store merges locally detected and remotely received hazard events into one
// bounded, time-ordered view. The two origin histories are independent: each
// is capped, newest first, oldest evicted from the back.
type Store struct {
	detectedCap int
	receivedCap int

	mu       sync.RWMutex
	detected []model.HazardEvent
	received []model.HazardEvent
}

// NewStore creates a store with the given per-origin capacities.
func NewStore(detectedCap, receivedCap int) *Store {
	return &Store{
		detectedCap: detectedCap,
		receivedCap: receivedCap,
	}
}

// InsertDetected prepends a locally detected event, evicting the oldest when
// the detected history is full.
func (s *Store) InsertDetected(event model.HazardEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detected = prepend(s.detected, event, s.detectedCap)
}

// InsertReceived prepends a relay-delivered event unless an event with the
// same ID is already in the received history. Returns whether the event was
// newly inserted. This drops transport-level redeliveries; it is independent
// of the semantic cooldown in the dedup engine.
func (s *Store) InsertReceived(event model.HazardEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.received {
		if existing.ID == event.ID {
			return false
		}
	}

	s.received = prepend(s.received, event, s.receivedCap)
	return true
}

// View returns the union of both histories ordered by timestamp, most recent
// first. The merged view is recomputed on every call, not maintained
// incrementally.
func (s *Store) View() []model.HazardEvent {
	s.mu.RLock()
	merged := make([]model.HazardEvent, 0, len(s.detected)+len(s.received))
	merged = append(merged, s.detected...)
	merged = append(merged, s.received...)
	s.mu.RUnlock()

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	return merged
}

// Counts returns the current sizes of the detected and received histories.
func (s *Store) Counts() (detected, received int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.detected), len(s.received)
}

func prepend(history []model.HazardEvent, event model.HazardEvent, capacity int) []model.HazardEvent {
	history = append([]model.HazardEvent{event}, history...)
	if len(history) > capacity {
		history = history[:capacity]
	}
	return history
}

package alerts

import (
	"fmt"
	"testing"
	"time"

	"roadsafe/internal/model"
)

func event(id string, origin model.Origin, ts time.Time) model.HazardEvent {
	return model.HazardEvent{
		ID:          id,
		Type:        model.HazardPothole,
		Description: "pothole on the left lane",
		Timestamp:   ts,
		Origin:      origin,
	}
}

func TestInsertReceivedIdempotent(t *testing.T) {
	store := NewStore(5, 10)
	now := time.Now()

	if !store.InsertReceived(event("a", model.OriginReceived, now)) {
		t.Fatal("first insert should report newly inserted")
	}
	if store.InsertReceived(event("a", model.OriginReceived, now.Add(time.Second))) {
		t.Error("redelivered id should not be newly inserted")
	}

	if _, received := store.Counts(); received != 1 {
		t.Errorf("expected 1 received event, got %d", received)
	}
}

func TestHistoriesAreBounded(t *testing.T) {
	store := NewStore(5, 10)
	now := time.Now()

	for i := 0; i < 8; i++ {
		store.InsertDetected(event(fmt.Sprintf("d%d", i), model.OriginDetected, now.Add(time.Duration(i)*time.Second)))
	}
	for i := 0; i < 14; i++ {
		store.InsertReceived(event(fmt.Sprintf("r%d", i), model.OriginReceived, now.Add(time.Duration(i)*time.Second)))
	}

	detected, received := store.Counts()
	if detected != 5 {
		t.Errorf("expected detected history capped at 5, got %d", detected)
	}
	if received != 10 {
		t.Errorf("expected received history capped at 10, got %d", received)
	}

	// The survivors are the most recent ones.
	view := store.View()
	for _, e := range view {
		if e.ID == "d0" || e.ID == "d2" || e.ID == "r3" {
			t.Errorf("evicted event %s still visible", e.ID)
		}
	}
}

func TestViewMergesByTimestamp(t *testing.T) {
	store := NewStore(5, 10)
	now := time.Now()

	store.InsertDetected(event("d0", model.OriginDetected, now))
	store.InsertReceived(event("r0", model.OriginReceived, now.Add(2*time.Second)))
	store.InsertDetected(event("d1", model.OriginDetected, now.Add(4*time.Second)))
	store.InsertReceived(event("r1", model.OriginReceived, now.Add(6*time.Second)))

	view := store.View()
	if len(view) != 4 {
		t.Fatalf("expected 4 events in the merged view, got %d", len(view))
	}

	expected := []string{"r1", "d1", "r0", "d0"}
	for i, id := range expected {
		if view[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, view[i].ID)
		}
	}

	for i := 1; i < len(view); i++ {
		if view[i].Timestamp.After(view[i-1].Timestamp) {
			t.Error("view is not ordered most recent first")
		}
	}
}

func TestViewIsRecomputed(t *testing.T) {
	store := NewStore(5, 10)
	now := time.Now()

	store.InsertDetected(event("d0", model.OriginDetected, now))
	first := store.View()

	store.InsertReceived(event("r0", model.OriginReceived, now.Add(time.Second)))
	second := store.View()

	if len(first) != 1 || len(second) != 2 {
		t.Errorf("expected views of 1 then 2 events, got %d and %d", len(first), len(second))
	}
}

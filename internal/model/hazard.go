package model

import "time"

// HazardType is the categorical tag of a road condition.
type HazardType string

const (
	HazardPothole        HazardType = "pothole"
	HazardConstruction   HazardType = "construction"
	HazardWetRoad        HazardType = "wet_road"
	HazardStoppedVehicle HazardType = "stopped_vehicle"
	HazardAnimal         HazardType = "animal"
	HazardAccident       HazardType = "accident"
	HazardDebris         HazardType = "debris"
)

// Origin says whether an event was detected on this device or received
// from the relay.
type Origin string

const (
	OriginDetected Origin = "detected"
	OriginReceived Origin = "received"
)

// Position is a GPS fix. A new sample replaces the previous one wholesale.
type Position struct {
	Latitude  float64
	Longitude float64
}

// HazardEvent is one hazard on the timeline. Immutable after creation.
// For received events the ID is assigned by the relay and is the key used
// to drop transport-level redeliveries.
type HazardEvent struct {
	ID             string
	Type           HazardType
	Description    string
	Position       Position
	Timestamp      time.Time
	Origin         Origin
	DistanceMeters *float64
	PhotoRef       string
}

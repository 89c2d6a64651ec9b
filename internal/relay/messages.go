package relay

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds exchanged with the relay. Inbound kinds outside this set are
// logged and ignored.
const (
	TypeLocationUpdate = "location_update"
	TypeHazardReport   = "hazard_report"
	TypeHazardAlert    = "hazard_alert"
	TypeLocationAck    = "location_ack"
	TypeHazardAck      = "hazard_ack"
)

// Envelope is the tagged union carried in every JSON text frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// LocationUpdatePayload is the outbound position push.
type LocationUpdatePayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

// HazardReportPayload is the outbound fast-path hazard report. Photo, when
// present, is a data URI.
type HazardReportPayload struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	HazardType  string  `json:"hazardType"`
	Description string  `json:"description"`
	Timestamp   string  `json:"timestamp"`
	Photo       string  `json:"photo,omitempty"`
}

// HazardAlertPayload is an inbound alert about a hazard near the user.
type HazardAlertPayload struct {
	ID          string   `json:"id"`
	HazardType  string   `json:"hazardType"`
	Description string   `json:"description"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Timestamp   string   `json:"timestamp"`
	Distance    *float64 `json:"distance,omitempty"`
	PhotoURL    string   `json:"photoUrl,omitempty"`
}

// HazardAckPayload acknowledges a fast-path report. Merged is set when the
// relay folded the report into an existing hazard.
type HazardAckPayload struct {
	HazardID string `json:"hazard_id"`
	Merged   bool   `json:"merged,omitempty"`
}

func encodeEnvelope(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// parseTimestamp reads an RFC 3339 timestamp, falling back to now for frames
// with missing or malformed times so an alert is never dropped over its clock.
func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Now()
	}
	return ts
}

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"roadsafe/internal/model"
)

// TokenSource supplies the bearer credential for the durable path.
type TokenSource interface {
	Token() (string, error)
}

// Uploader is the durable transmission path: slower than the channel, but
// persisted by the backend regardless of channel state.
type Uploader interface {
	Upload(ctx context.Context, event model.HazardEvent, photoDataURI string) error
}

type uploadBody struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	HazardType  string  `json:"hazardType"`
	Description string  `json:"description"`
	Timestamp   string  `json:"timestamp"`
	Photo       string  `json:"photo,omitempty"`
}

// HTTPUploader posts hazard reports with the photo embedded as a data URI.
type HTTPUploader struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// NewHTTPUploader creates an uploader against the given API base URL.
func NewHTTPUploader(baseURL string, tokens TokenSource) *HTTPUploader {
	return &HTTPUploader{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload posts the report. The response is advisory; a failure here never
// rolls back the fast-path send.
func (u *HTTPUploader) Upload(ctx context.Context, event model.HazardEvent, photoDataURI string) error {
	token, err := u.tokens.Token()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(uploadBody{
		Latitude:    event.Position.Latitude,
		Longitude:   event.Position.Longitude,
		HazardType:  string(event.Type),
		Description: event.Description,
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
		Photo:       photoDataURI,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/api/hazards/report", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

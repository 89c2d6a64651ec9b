package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"roadsafe/internal/alerts"
	"roadsafe/internal/camera"
	"roadsafe/internal/logger"
	"roadsafe/internal/model"
	"roadsafe/internal/repository/sqlite"
)

// Outcome is the three-way result of a report attempt. Both transmission
// paths failing is a hard failure; exactly one succeeding is partial; both is
// full. The distinction is load-bearing for callers and must not collapse
// into a boolean.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomePartial
	OutcomeFull
)

func (o Outcome) String() string {
	switch o {
	case OutcomePartial:
		return "partial"
	case OutcomeFull:
		return "full"
	}
	return "failed"
}

// Sender is the fast path over the persistent channel. Satisfied by
// relay.Client.
type Sender interface {
	SendHazardReport(event model.HazardEvent, photoDataURI string) error
}

// Locator provides the position stamped onto reports. Satisfied by
// location.Tracker.
type Locator interface {
	Current() (model.Position, bool)
	Sample(ctx context.Context) (model.Position, error)
}

// Journal records report attempts durably on the device. Satisfied by
// sqlite.ReportRepository.
type Journal interface {
	Insert(rec *sqlite.ReportRecord) (int64, error)
}

// Result carries the outcome of one report attempt along with the per-path
// errors for callers that want them.
type Result struct {
	Outcome  Outcome
	Event    model.HazardEvent
	FastPath error
	Durable  error
}

// Workflow orchestrates one hazard report: position, photo, fast-path send,
// durable upload, fusion store insert, journal append. The fast path and the
// durable path are independent by design; the relay merges same-type reports
// arriving close together, so neither side suppresses the other.
type Workflow struct {
	locator  Locator
	camera   camera.Camera
	sender   Sender
	uploader Uploader
	store    *alerts.Store
	journal  Journal
	log      *logger.Logger

	sampleTimeout time.Duration
}

// NewWorkflow wires the reporting pipeline. journal may be nil.
func NewWorkflow(locator Locator, cam camera.Camera, sender Sender, uploader Uploader,
	store *alerts.Store, journal Journal, log *logger.Logger) *Workflow {
	return &Workflow{
		locator:       locator,
		camera:        cam,
		sender:        sender,
		uploader:      uploader,
		store:         store,
		journal:       journal,
		log:           log,
		sampleTimeout: 15 * time.Second,
	}
}

// Report runs one attempt. Location and capture failures abort the attempt
// with a hard failure; transmission failures are absorbed into the three-way
// outcome.
func (w *Workflow) Report(ctx context.Context, hazardType model.HazardType, description string) (Result, error) {
	pos, ok := w.locator.Current()
	if !ok {
		sampleCtx, cancel := context.WithTimeout(ctx, w.sampleTimeout)
		fresh, err := w.locator.Sample(sampleCtx)
		cancel()
		if err != nil {
			return Result{Outcome: OutcomeFailed}, fmt.Errorf("report aborted: %w", err)
		}
		pos = fresh
	}

	photo, err := w.camera.TakePhoto(ctx)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("report aborted: %w", err)
	}

	event := model.HazardEvent{
		ID:          uuid.New().String(),
		Type:        hazardType,
		Description: description,
		Position:    pos,
		Timestamp:   time.Now(),
		Origin:      model.OriginDetected,
	}

	// Fast path carries no photo; the durable upload does.
	fastErr := w.sender.SendHazardReport(event, "")
	if fastErr != nil {
		w.log.Warning("Fast-path send failed: %v", fastErr)
	}

	photoDataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(photo)
	durableErr := w.uploader.Upload(ctx, event, photoDataURI)
	if durableErr != nil {
		w.log.Warning("Durable upload failed: %v", durableErr)
	}

	result := Result{Event: event, FastPath: fastErr, Durable: durableErr}
	switch {
	case fastErr == nil && durableErr == nil:
		result.Outcome = OutcomeFull
	case fastErr == nil || durableErr == nil:
		result.Outcome = OutcomePartial
	default:
		result.Outcome = OutcomeFailed
	}

	if result.Outcome != OutcomeFailed {
		w.store.InsertDetected(event)
	}

	w.appendJournal(event, result.Outcome)

	if result.Outcome == OutcomeFailed {
		return result, fmt.Errorf("report failed on both paths: fast=%v durable=%v", fastErr, durableErr)
	}

	w.log.Info("Reported %s (%s): %s", hazardType, result.Outcome, description)
	return result, nil
}

func (w *Workflow) appendJournal(event model.HazardEvent, outcome Outcome) {
	if w.journal == nil {
		return
	}
	_, err := w.journal.Insert(&sqlite.ReportRecord{
		EventID:     event.ID,
		Type:        event.Type,
		Description: event.Description,
		Position:    event.Position,
		ReportedAt:  event.Timestamp,
		Outcome:     outcome.String(),
	})
	if err != nil {
		w.log.Warning("Failed to journal report: %v", err)
	}
}

package monitor

import (
	"context"
	"sync"
	"time"

	"roadsafe/internal/camera"
	"roadsafe/internal/dedup"
	"roadsafe/internal/logger"
	"roadsafe/internal/model"
	"roadsafe/internal/report"
	"roadsafe/internal/vision"
)

// Reporter runs one report attempt. Satisfied by report.Workflow.
type Reporter interface {
	Report(ctx context.Context, hazardType model.HazardType, description string) (report.Result, error)
}

// Locator exposes the latest known position. Satisfied by location.Tracker.
type Locator interface {
	Current() (model.Position, bool)
}

// Monitor is the on-device detection loop: every interval it captures a
// frame, preprocesses it, runs the model, and reports a hazard when the score
// clears the threshold and the dedup engine accepts it. Frames without a GPS
// fix are skipped entirely.
type Monitor struct {
	camera    camera.Camera
	model     vision.Model
	engine    *dedup.Engine
	locator   Locator
	reporter  Reporter
	log       *logger.Logger
	interval  time.Duration
	threshold float64
	dtype     vision.DType

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a monitor. dtype must match the loaded model's input.
func New(cam camera.Camera, mdl vision.Model, engine *dedup.Engine, locator Locator,
	reporter Reporter, interval time.Duration, threshold float64, dtype vision.DType,
	log *logger.Logger) *Monitor {
	return &Monitor{
		camera:    cam,
		model:     mdl,
		engine:    engine,
		locator:   locator,
		reporter:  reporter,
		log:       log,
		interval:  interval,
		threshold: threshold,
		dtype:     dtype,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run ticks until Stop or ctx cancellation.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// Stop ends the loop. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Done is closed when the loop has exited.
func (m *Monitor) Done() <-chan struct{} { return m.done }

func (m *Monitor) tick(ctx context.Context) {
	pos, ok := m.locator.Current()
	if !ok {
		return
	}

	photo, err := m.camera.TakePhoto(ctx)
	if err != nil {
		m.log.Warning("Capture failed: %v", err)
		return
	}

	tensor, err := vision.Preprocess(photo, m.dtype)
	if err != nil {
		// Non-retriable for this frame; never substitute a default tensor.
		m.log.Warning("Preprocess failed: %v", err)
		return
	}

	score, err := m.model.Run(tensor)
	if err != nil {
		m.log.Error("Inference failed: %v", err)
		return
	}
	if score <= m.threshold {
		return
	}

	hazardType := model.HazardPothole
	now := time.Now()
	if m.engine.ShouldSuppress(hazardType, pos, now) {
		m.log.Info("Skipping duplicate %s detection", hazardType)
		return
	}
	m.engine.Record(hazardType, pos, now)

	if _, err := m.reporter.Report(ctx, hazardType, "AI detected pothole"); err != nil {
		m.log.Error("Failed to report detection: %v", err)
	}
}

package app

import (
	"context"
	"errors"
	"fmt"

	"roadsafe/internal/alerts"
	"roadsafe/internal/auth"
	"roadsafe/internal/camera"
	"roadsafe/internal/catalog"
	"roadsafe/internal/config"
	"roadsafe/internal/dedup"
	"roadsafe/internal/location"
	"roadsafe/internal/logger"
	"roadsafe/internal/model"
	"roadsafe/internal/monitor"
	"roadsafe/internal/relay"
	"roadsafe/internal/report"
	"roadsafe/internal/repository/sqlite"
	"roadsafe/internal/vision"
)

// App owns one device session: every timer, connection, and device handle is
// an explicit field with a start/shutdown lifecycle, nothing is ambient.
type App struct {
	config  *config.Config
	log     *logger.Logger
	catalog *catalog.Catalog

	db      *sqlite.DB
	store   *alerts.Store
	engine  *dedup.Engine
	tracker *location.Tracker
	relay   *relay.Client
	camera  camera.Camera
	model   vision.Model
	monitor *monitor.Monitor
	flow    *report.Workflow
}

// New wires the session from config. The detection monitor is enabled only
// when the model loads; everything else runs regardless.
func New(cfg *config.Config) (*App, error) {
	log := logger.NewLogger(cfg.LogDirectory)

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	journal := sqlite.NewReportRepository(db)

	a := &App{
		config:  cfg,
		log:     log,
		catalog: cat,
		db:      db,
		store:   alerts.NewStore(cfg.DetectedHistoryLimit, cfg.ReceivedHistoryLimit),
		engine:  dedup.NewEngine(cfg.CooldownWindow, cfg.ProximityRadius),
	}

	tokens := auth.NewFileStore(cfg.TokenPath)
	a.tracker = location.NewTracker(location.NewGPSDProvider(cfg.GPSDAddress), cfg.SampleInterval, log)
	a.relay = relay.NewClient(cfg.RelayURL, tokens, cfg.ReconnectDelay, relay.Handlers{
		OnAlert:            a.handleAlert,
		OnConnectionChange: a.handleConnectionChange,
	}, log)

	cam, err := camera.OpenWebcam(cfg.CameraDevice)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("camera unavailable: %w", err)
	}
	a.camera = cam

	uploader := report.NewHTTPUploader(cfg.APIBaseURL, tokens)
	a.flow = report.NewWorkflow(a.tracker, cam, a.relay, uploader, a.store, journal, log)

	dtype := vision.DTypeUint8
	if cfg.TensorFloat {
		dtype = vision.DTypeFloat32
	}
	if net, err := vision.NewScoreNet(cfg.ModelPath, log); err != nil {
		log.Warning("Detection disabled: %v", err)
	} else {
		a.model = net
		a.monitor = monitor.New(cam, net, a.engine, a.tracker, a.flow,
			cfg.DetectionInterval, cfg.DetectionThreshold, dtype, log)
	}

	return a, nil
}

// Run starts the session tasks and blocks until ctx is cancelled, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	go a.tracker.Run(ctx)
	go a.forwardLocations(ctx)
	if a.monitor != nil {
		go a.monitor.Run(ctx)
	}

	if err := a.relay.Connect(ctx); err != nil {
		// Dial failures reschedule themselves; a missing credential does
		// not, so surface it.
		if errors.Is(err, auth.ErrNoCredential) {
			a.Shutdown()
			return err
		}
		a.log.Warning("Initial relay connect failed: %v", err)
	}

	a.log.Info("RoadSafe client started")
	<-ctx.Done()

	a.Shutdown()
	return nil
}

// Shutdown stops timers and closes handles exactly once each.
func (a *App) Shutdown() {
	a.relay.Shutdown()
	a.tracker.Stop()
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.model != nil {
		a.model.Close()
	}
	a.camera.Close()
	a.db.Close()
	a.log.Info("RoadSafe client stopped")
}

// Report submits a manual hazard report.
func (a *App) Report(ctx context.Context, hazardType, description string) (report.Result, error) {
	return a.flow.Report(ctx, model.HazardType(hazardType), description)
}

// Alerts returns the merged hazard timeline, most recent first.
func (a *App) Alerts() []model.HazardEvent {
	return a.store.View()
}

func (a *App) handleAlert(event model.HazardEvent) {
	if !a.store.InsertReceived(event) {
		return
	}
	line := a.catalog.FormatAlert(event)
	if event.DistanceMeters != nil {
		a.log.Info("Hazard nearby: %s (%.0f m away)", line, *event.DistanceMeters)
	} else {
		a.log.Info("Hazard nearby: %s", line)
	}
}

func (a *App) handleConnectionChange(connected bool) {
	if connected {
		a.log.Info("Relay channel is live")
	} else {
		a.log.Warning("Relay channel is offline")
	}
}

func (a *App) forwardLocations(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pos := <-a.tracker.Updates():
			err := a.relay.SendLocation(pos)
			if err != nil && !errors.Is(err, relay.ErrNotConnected) {
				a.log.Warning("Failed to push location: %v", err)
			}
		}
	}
}

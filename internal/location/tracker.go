package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"roadsafe/internal/logger"
	"roadsafe/internal/model"
)

// ErrUnavailable is returned when no position can be obtained.
var ErrUnavailable = errors.New("location unavailable")

// Provider is the device location collaborator.
type Provider interface {
	Sample(ctx context.Context) (model.Position, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (model.Position, error)

func (f ProviderFunc) Sample(ctx context.Context) (model.Position, error) { return f(ctx) }

// Tracker periodically samples the device position and keeps the latest
// accepted fix. A failed sample leaves the previous fix in place; callers
// must treat a present value as best-effort, there is no staleness marker.
type Tracker struct {
	provider Provider
	interval time.Duration
	log      *logger.Logger

	mu      sync.RWMutex
	current *model.Position

	updates  chan model.Position
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewTracker creates a tracker sampling from provider every interval.
func NewTracker(provider Provider, interval time.Duration, log *logger.Logger) *Tracker {
	return &Tracker{
		provider: provider,
		interval: interval,
		log:      log,
		updates:  make(chan model.Position, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run samples once immediately and then on every tick until Stop is called or
// ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	defer close(t.done)

	t.sampleOnce(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.sampleOnce(ctx)
		}
	}
}

// Stop ends the sampling loop. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Done is closed when the sampling loop has exited.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Current returns the latest accepted position without blocking.
func (t *Tracker) Current() (model.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return model.Position{}, false
	}
	return *t.current, true
}

// Sample fetches a fresh position synchronously and, on success, makes it the
// current fix and notifies subscribers.
func (t *Tracker) Sample(ctx context.Context) (model.Position, error) {
	pos, err := t.provider.Sample(ctx)
	if err != nil {
		return model.Position{}, ErrUnavailable
	}
	t.accept(pos)
	return pos, nil
}

// Updates delivers accepted samples with at-most-one-in-flight semantics: a
// slow consumer never blocks sampling, stale notifications are replaced by
// the latest.
func (t *Tracker) Updates() <-chan model.Position { return t.updates }

func (t *Tracker) sampleOnce(ctx context.Context) {
	pos, err := t.provider.Sample(ctx)
	if err != nil {
		if t.log != nil {
			t.log.Warning("Location sample failed: %v", err)
		}
		return
	}
	t.accept(pos)
}

func (t *Tracker) accept(pos model.Position) {
	t.mu.Lock()
	p := pos
	t.current = &p
	t.mu.Unlock()

	// Replace a pending notification instead of blocking on it.
	select {
	case t.updates <- pos:
	default:
		select {
		case <-t.updates:
		default:
		}
		select {
		case t.updates <- pos:
		default:
		}
	}
}

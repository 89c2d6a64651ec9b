package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"roadsafe/internal/logger"
	"roadsafe/internal/model"
)

// State is the connection manager's lifecycle state. Transitions are strictly
// sequential; only the Client mutates it.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// ErrNotConnected is returned by sends attempted outside the Open state. The
// message is dropped, not queued; callers decide whether to fall back to the
// durable path.
var ErrNotConnected = errors.New("relay not connected")

// ErrShutdown is returned once Shutdown has been called.
var ErrShutdown = errors.New("relay client shut down")

// TokenSource supplies the bearer credential presented at dial time.
type TokenSource interface {
	Token() (string, error)
}

// Handlers receive inbound alerts and connection state changes. Both are
// optional.
type Handlers struct {
	OnAlert            func(model.HazardEvent)
	OnConnectionChange func(connected bool)
}

// Client owns the single logical channel to the hazard relay: connect,
// authenticate, send, receive, detect loss, reconnect after a fixed delay.
// The retry policy is a fixed-delay retry forever, with no backoff growth
// and no attempt cap.
type Client struct {
	endpoint string
	tokens   TokenSource
	delay    time.Duration
	handlers Handlers
	log      *logger.Logger
	dialer   *websocket.Dialer

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	lastPosition   *model.Position
	closed         bool

	writeMu sync.Mutex
}

// NewClient creates a client for the given websocket endpoint. delay is the
// fixed reconnect delay.
func NewClient(endpoint string, tokens TokenSource, delay time.Duration, handlers Handlers, log *logger.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		tokens:   tokens,
		delay:    delay,
		handlers: handlers,
		log:      log,
		dialer:   websocket.DefaultDialer,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the channel is open.
func (c *Client) Connected() bool {
	return c.State() == StateOpen
}

// Connect dials the relay. It fails fast without entering Connecting when no
// credential is available. A dial or handshake failure schedules the next
// attempt and returns the error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrShutdown
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}

	token, err := c.tokens.Token()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("relay connect: %w", err)
	}

	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return fmt.Errorf("relay dial: %w", err)
	}

	c.mu.Lock()
	// Shutdown may have won the race while the dial was in flight; the
	// terminal state must stick.
	if c.closed {
		c.state = StateDisconnected
		c.mu.Unlock()
		conn.Close()
		return ErrShutdown
	}
	c.conn = conn
	c.state = StateOpen
	last := c.lastPosition
	c.mu.Unlock()

	c.log.Info("Relay connected: %s", c.endpoint)
	c.notifyConnection(true)

	// Resynchronize the relay's view of our position after a reconnect.
	if last != nil {
		if err := c.SendLocation(*last); err != nil {
			c.log.Warning("Failed to resend position after connect: %v", err)
		}
	}

	go c.readLoop(conn)
	return nil
}

// SendLocation pushes a position over the channel. The position is remembered
// as the last known fix even when the send fails, so the next successful
// connect can resynchronize.
func (c *Client) SendLocation(pos model.Position) error {
	c.mu.Lock()
	p := pos
	c.lastPosition = &p
	c.mu.Unlock()

	frame, err := encodeEnvelope(TypeLocationUpdate, LocationUpdatePayload{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return c.send(frame)
}

// SendHazardReport pushes a hazard report over the fast path. photoDataURI
// may be empty.
func (c *Client) SendHazardReport(event model.HazardEvent, photoDataURI string) error {
	frame, err := encodeEnvelope(TypeHazardReport, HazardReportPayload{
		Latitude:    event.Position.Latitude,
		Longitude:   event.Position.Longitude,
		HazardType:  string(event.Type),
		Description: event.Description,
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
		Photo:       photoDataURI,
	})
	if err != nil {
		return err
	}
	return c.send(frame)
}

// Shutdown cancels any pending reconnect and closes an open connection. After
// shutdown no automatic reconnection happens. Safe to call more than once.
func (c *Client) Shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosing
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
	}

	c.notifyConnection(false)
	c.log.Info("Relay client shut down")
}

func (c *Client) send(frame []byte) error {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("relay send: %w", err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info("Relay closed the connection")
			} else {
				c.log.Warning("Relay read error: %v", err)
			}
			c.handleDisconnect(conn)
			return
		}
		c.handleMessage(raw)
	}
}

// handleMessage dispatches one inbound frame. Parse errors and unknown kinds
// are logged and dropped, never fatal.
func (c *Client) handleMessage(raw []byte) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.log.Warning("Malformed relay frame: %v", err)
		return
	}

	switch envelope.Type {
	case TypeHazardAlert:
		var alert HazardAlertPayload
		if err := json.Unmarshal(envelope.Payload, &alert); err != nil {
			c.log.Warning("Malformed hazard alert: %v", err)
			return
		}
		c.deliverAlert(alert)

	case TypeLocationAck:
		c.log.Info("Location update acknowledged")

	case TypeHazardAck:
		var ack HazardAckPayload
		if err := json.Unmarshal(envelope.Payload, &ack); err == nil && ack.Merged {
			c.log.Info("Hazard report merged with %s", ack.HazardID)
		} else {
			c.log.Info("Hazard report acknowledged: %s", ack.HazardID)
		}

	default:
		c.log.Warning("Unknown relay message type: %q", envelope.Type)
	}
}

func (c *Client) deliverAlert(alert HazardAlertPayload) {
	if c.handlers.OnAlert == nil {
		return
	}

	id := alert.ID
	if id == "" {
		id = uuid.New().String()
	}

	c.handlers.OnAlert(model.HazardEvent{
		ID:             id,
		Type:           model.HazardType(alert.HazardType),
		Description:    alert.Description,
		Position:       model.Position{Latitude: alert.Latitude, Longitude: alert.Longitude},
		Timestamp:      parseTimestamp(alert.Timestamp),
		Origin:         model.OriginReceived,
		DistanceMeters: alert.Distance,
		PhotoRef:       alert.PhotoURL,
	})
}

// handleDisconnect moves to Disconnected and arms exactly one reconnect
// timer. A prior pending timer is cancelled first so overlapping close events
// never produce duplicate concurrent attempts.
func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn == conn {
		c.conn = nil
	}
	c.state = StateDisconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.notifyConnection(false)
}

func (c *Client) scheduleReconnectLocked() {
	if c.closed {
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.log.Info("Reconnecting to relay in %s", c.delay)
	c.reconnectTimer = time.AfterFunc(c.delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			c.log.Warning("Reconnect attempt failed: %v", err)
		}
	})
}

func (c *Client) notifyConnection(connected bool) {
	if c.handlers.OnConnectionChange != nil {
		c.handlers.OnConnectionChange(connected)
	}
}

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"roadsafe/internal/logger"
	"roadsafe/internal/model"
)

type staticTokens string

func (s staticTokens) Token() (string, error) { return string(s), nil }

type noTokens struct{}

func (noTokens) Token() (string, error) { return "", errors.New("no stored credential") }

// testRelay is an in-process relay endpoint counting websocket upgrades.
type testRelay struct {
	server   *httptest.Server
	url      string
	upgrades int32
}

func newTestRelay(t *testing.T, onConn func(conn *websocket.Conn, r *http.Request)) *testRelay {
	t.Helper()

	relay := &testRelay{}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	relay.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&relay.upgrades, 1)
		if onConn != nil {
			onConn(conn, r)
		}
	}))
	t.Cleanup(relay.server.Close)

	relay.url = "ws" + strings.TrimPrefix(relay.server.URL, "http")
	return relay
}

func (r *testRelay) upgradeCount() int32 {
	return atomic.LoadInt32(&r.upgrades)
}

func TestConnectFailsFastWithoutCredential(t *testing.T) {
	client := NewClient("ws://localhost:0", noTokens{}, time.Hour, Handlers{}, logger.NewDiscard())
	defer client.Shutdown()

	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected connect to fail without a credential")
	}
	if client.State() != StateDisconnected {
		t.Errorf("expected Disconnected, got %s", client.State())
	}

	client.mu.Lock()
	timer := client.reconnectTimer
	client.mu.Unlock()
	if timer != nil {
		t.Error("a credential failure must not schedule a reconnect")
	}
}

func TestSendOutsideOpenIsRejected(t *testing.T) {
	client := NewClient("ws://localhost:0", staticTokens("tok"), time.Hour, Handlers{}, logger.NewDiscard())
	defer client.Shutdown()

	err := client.SendLocation(model.Position{Latitude: 1, Longitude: 2})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}

	err = client.SendHazardReport(model.HazardEvent{Type: model.HazardPothole}, "")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectDeliversAlerts(t *testing.T) {
	frame := `{"type":"hazard_alert","payload":{"id":"h-1","hazardType":"pothole",` +
		`"description":"Pothole ahead","latitude":12.9716,"longitude":77.5946,` +
		`"timestamp":"2026-08-30T10:00:00Z","distance":120.5}}`

	gotToken := make(chan string, 1)
	relay := newTestRelay(t, func(conn *websocket.Conn, r *http.Request) {
		gotToken <- r.URL.Query().Get("token")
		conn.WriteMessage(websocket.TextMessage, []byte(frame))
	})

	alerts := make(chan model.HazardEvent, 1)
	client := NewClient(relay.url, staticTokens("secret"), time.Hour, Handlers{
		OnAlert: func(e model.HazardEvent) { alerts <- e },
	}, logger.NewDiscard())
	defer client.Shutdown()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if client.State() != StateOpen {
		t.Fatalf("expected Open, got %s", client.State())
	}

	select {
	case token := <-gotToken:
		if token != "secret" {
			t.Errorf("expected bearer token in query string, got %q", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the connection")
	}

	select {
	case event := <-alerts:
		if event.ID != "h-1" {
			t.Errorf("expected id h-1, got %s", event.ID)
		}
		if event.Type != model.HazardPothole {
			t.Errorf("expected pothole, got %s", event.Type)
		}
		if event.Origin != model.OriginReceived {
			t.Errorf("expected received origin, got %s", event.Origin)
		}
		if event.DistanceMeters == nil || *event.DistanceMeters != 120.5 {
			t.Errorf("expected distance 120.5, got %v", event.DistanceMeters)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert never delivered")
	}
}

func TestResendsLastPositionOnOpen(t *testing.T) {
	frames := make(chan Envelope, 1)
	relay := newTestRelay(t, func(conn *websocket.Conn, r *http.Request) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var envelope Envelope
		if json.Unmarshal(raw, &envelope) == nil {
			frames <- envelope
		}
	})

	client := NewClient(relay.url, staticTokens("tok"), time.Hour, Handlers{}, logger.NewDiscard())
	defer client.Shutdown()

	// Recorded as the last known fix even though the send itself fails.
	if err := client.SendLocation(model.Position{Latitude: 48.2, Longitude: 16.37}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	select {
	case envelope := <-frames:
		if envelope.Type != TypeLocationUpdate {
			t.Fatalf("expected %s frame, got %s", TypeLocationUpdate, envelope.Type)
		}
		var payload LocationUpdatePayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if payload.Latitude != 48.2 || payload.Longitude != 16.37 {
			t.Errorf("expected resynchronized position, got %+v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("position was not resent after connect")
	}
}

func TestUnexpectedCloseSchedulesSingleReconnect(t *testing.T) {
	var first int32
	relay := newTestRelay(t, func(conn *websocket.Conn, r *http.Request) {
		if atomic.CompareAndSwapInt32(&first, 0, 1) {
			conn.Close()
			return
		}
		// Later connections stay open.
	})

	client := NewClient(relay.url, staticTokens("tok"), 100*time.Millisecond, Handlers{}, logger.NewDiscard())
	defer client.Shutdown()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	// Wait for the close to be noticed.
	deadline := time.Now().Add(2 * time.Second)
	for client.State() != StateDisconnected {
		if time.Now().After(deadline) {
			t.Fatal("client never observed the close")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A second close event before the timer fires must not arm a second
	// timer.
	client.handleDisconnect(nil)

	time.Sleep(500 * time.Millisecond)
	if got := relay.upgradeCount(); got != 2 {
		t.Errorf("expected exactly one reconnect (2 upgrades total), got %d", got)
	}
	if client.State() != StateOpen {
		t.Errorf("expected the reconnect to leave the channel Open, got %s", client.State())
	}
}

func TestShutdownCancelsPendingReconnect(t *testing.T) {
	relay := newTestRelay(t, nil)

	client := NewClient(relay.url, staticTokens("tok"), 50*time.Millisecond, Handlers{}, logger.NewDiscard())

	// Simulate a close event arming the timer, then shut down before it
	// fires.
	client.handleDisconnect(nil)
	client.Shutdown()
	client.Shutdown() // double shutdown is a no-op

	time.Sleep(200 * time.Millisecond)
	if got := relay.upgradeCount(); got != 0 {
		t.Errorf("expected no reconnect after shutdown, got %d upgrades", got)
	}

	if err := client.Connect(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected ErrShutdown, got %v", err)
	}
}

func TestShutdownDuringDialStaysTerminal(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the handshake until the test has shut the client down.
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()

	client := NewClient("ws"+strings.TrimPrefix(server.URL, "http"), staticTokens("tok"),
		time.Hour, Handlers{}, logger.NewDiscard())

	result := make(chan error, 1)
	go func() { result <- client.Connect(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for client.State() != StateConnecting {
		if time.Now().After(deadline) {
			t.Fatal("client never entered Connecting")
		}
		time.Sleep(5 * time.Millisecond)
	}

	client.Shutdown()
	close(release)

	select {
	case err := <-result:
		if !errors.Is(err, ErrShutdown) {
			t.Errorf("expected ErrShutdown from the in-flight connect, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connect never returned")
	}

	if client.State() != StateDisconnected {
		t.Errorf("shutdown must be terminal, got %s", client.State())
	}
	if client.Connected() {
		t.Error("client must not be open after shutdown")
	}
}

func TestHandleMessageToleratesBadFrames(t *testing.T) {
	delivered := 0
	client := NewClient("ws://localhost:0", staticTokens("tok"), time.Hour, Handlers{
		OnAlert: func(model.HazardEvent) { delivered++ },
	}, logger.NewDiscard())
	defer client.Shutdown()

	client.handleMessage([]byte("not json at all"))
	client.handleMessage([]byte(`{"type":"telemetry_snapshot","payload":{}}`))
	client.handleMessage([]byte(`{"type":"hazard_alert","payload":"not an object"}`))
	if delivered != 0 {
		t.Errorf("malformed frames must not deliver alerts, got %d", delivered)
	}

	client.handleMessage([]byte(`{"type":"hazard_alert","payload":{"id":"x","hazardType":"debris",` +
		`"description":"d","latitude":1,"longitude":2,"timestamp":"2026-08-30T10:00:00Z"}}`))
	if delivered != 1 {
		t.Errorf("expected exactly one delivered alert, got %d", delivered)
	}
}

func TestParseTimestampFallsBackToNow(t *testing.T) {
	parsed := parseTimestamp("2026-08-30T10:00:00Z")
	if parsed.UTC().Hour() != 10 {
		t.Errorf("unexpected parse result: %v", parsed)
	}

	fallback := parseTimestamp("yesterday-ish")
	if time.Since(fallback) > time.Minute {
		t.Errorf("expected fallback near now, got %v", fallback)
	}
}

package location

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"roadsafe/internal/model"
)

// GPSDProvider samples positions from a gpsd daemon over its JSON watch
// protocol.
type GPSDProvider struct {
	address string
	timeout time.Duration
}

// NewGPSDProvider creates a provider for the daemon at address
// (host:port, gpsd listens on 2947 by default).
func NewGPSDProvider(address string) *GPSDProvider {
	return &GPSDProvider{address: address, timeout: 10 * time.Second}
}

type tpvReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// Sample opens a watch, reads until the first usable TPV fix, and returns it.
func (p *GPSDProvider) Sample(ctx context.Context) (model.Position, error) {
	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return model.Position{}, fmt.Errorf("%w: gpsd dial: %v", ErrUnavailable, err)
	}
	defer conn.Close()
	conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte(`?WATCH={"enable":true,"json":true};` + "\n")); err != nil {
		return model.Position{}, fmt.Errorf("%w: gpsd watch: %v", ErrUnavailable, err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		// Mode 2 is a 2D fix, 3 is 3D.
		if report.Class != "TPV" || report.Mode < 2 || report.Lat == nil || report.Lon == nil {
			continue
		}
		return model.Position{Latitude: *report.Lat, Longitude: *report.Lon}, nil
	}

	return model.Position{}, fmt.Errorf("%w: no fix from gpsd", ErrUnavailable)
}

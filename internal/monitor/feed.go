// Package monitor streams live detection events from the backend over an
// outbound WebSocket connection, feeding the monitoring views as detections
// happen instead of waiting for the next dashboard refresh.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Event is one detection event pushed by the backend.
type Event struct {
	Type       string    `json:"type"` // detection, quota, notice
	ItemID     string    `json:"item_id,omitempty"`
	Verdict    string    `json:"verdict,omitempty"`
	ThreatType string    `json:"threat_type,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

// Feed is a live event stream. It does not reconnect on its own; like the
// gateway, retry is always an explicit caller decision.
type Feed struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial connects to the backend's event stream. The credential is carried as
// a query parameter since WebSocket upgrades cannot set arbitrary headers
// from every client environment.
func Dial(ctx context.Context, backendURL, credential string) (*Feed, error) {
	wsURL := toWebSocketURL(backendURL) + "/ws/events?token=" + url.QueryEscape(credential)

	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}

	return &Feed{conn: conn}, nil
}

// Next blocks until the backend pushes the next event.
func (f *Feed) Next(ctx context.Context) (Event, error) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		return Event{}, fmt.Errorf("feed is closed")
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("reading event: %w", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	return ev, nil
}

// Listen delivers events to fn until the context ends or the stream breaks.
func (f *Feed) Listen(ctx context.Context, fn func(Event)) error {
	for {
		ev, err := f.Next(ctx)
		if err != nil {
			return err
		}
		fn(ev)
	}
}

// Close closes the stream.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		err := f.conn.Close(websocket.StatusNormalClosure, "done")
		f.conn = nil
		return err
	}
	return nil
}

// toWebSocketURL converts an HTTP(S) URL to a WS(S) URL.
func toWebSocketURL(httpURL string) string {
	if strings.HasPrefix(httpURL, "https://") {
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	}
	if strings.HasPrefix(httpURL, "http://") {
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	// Already a ws:// or wss:// URL
	return httpURL
}

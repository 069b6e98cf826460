// Package telemetry records settled gateway requests to a JSONL audit file
// (one JSON object per line). Events are appended immediately after each
// settlement for real-time inspection.
//
// Credential material never reaches the file: bodies are redacted before
// writing.
package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// redactedFields are body fields replaced before an event is written.
var redactedFields = []string{"token", "api_key", "credential", "password"}

// RequestEvent is one settled gateway request.
type RequestEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	RequestID   string          `json:"request_id"`
	Method      string          `json:"method"`
	Path        string          `json:"path"`
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status,omitempty"`
	Kind        string          `json:"kind,omitempty"` // empty on success
	DurationMs  int64           `json:"duration_ms"`
	Body        json.RawMessage `json:"body,omitempty"` // redacted request body
}

// Log appends request events to a JSONL file. A nil *Log is a valid no-op
// receiver so callers don't need to branch on whether auditing is enabled.
type Log struct {
	path  string
	mu    sync.Mutex
	count int
}

// NewLog creates the audit log at path, ensuring the directory exists.
// An empty path returns a nil Log, which disables auditing.
func NewLog(path string) (*Log, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		_ = f.Close()
	}
	return &Log{path: path}, nil
}

// Record appends one event. The event's body is redacted in place.
func (l *Log) Record(ev *RequestEvent) {
	if l == nil || ev == nil {
		return
	}
	ev.Body = Redact(ev.Body)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := appendJSONL(l.path, ev); err != nil {
		log.Error().Err(err).Str("path", l.path).Msg("telemetry: failed to write request event")
		return
	}
	l.count++
}

// Close logs a session summary.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count > 0 {
		log.Info().Str("path", l.path).Int("events", l.count).Msg("telemetry: session complete")
	}
	return nil
}

// Redact replaces sensitive fields in a JSON body with a placeholder.
// Non-JSON input is dropped entirely rather than risk leaking it.
func Redact(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return nil
	}
	for _, field := range redactedFields {
		if gjson.GetBytes(body, field).Exists() {
			body, _ = sjson.SetBytes(body, field, "[redacted]")
		}
	}
	return body
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Write(data)
	return err
}

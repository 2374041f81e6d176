// ABOUTME: Fire-and-forget audit sink for session and bridge lifecycle events.
// ABOUTME: Recording must never block or fail the caller; sinks log and move on.

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an auditable lifecycle event.
type Kind string

const (
	KindSessionOpen     Kind = "session.open"
	KindSessionAttach   Kind = "session.attach"
	KindSessionRelease  Kind = "session.release"
	KindSessionTeardown Kind = "session.teardown"
	KindBridgeFallback  Kind = "bridge.fallback"
)

// Event is one audit record.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    string         `json:"timestamp"`
	Kind         Kind           `json:"kind"`
	SessionID    string         `json:"session_id,omitempty"`
	ConnectionID string         `json:"connection_id,omitempty"`
	ServerID     string         `json:"server_id,omitempty"`
	Detail       map[string]any `json:"detail,omitempty"`
}

// Sink receives audit events. Implementations swallow their own errors.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}

// Fanout forwards each event to every sink in order.
type Fanout []Sink

func (f Fanout) Record(ctx context.Context, ev Event) {
	for _, s := range f {
		s.Record(ctx, ev)
	}
}

// stamp fills in generated fields on an event before persistence.
func stamp(ev *Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// JSONLSink appends events to a JSON-lines file.
type JSONLSink struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewJSONLSink opens (or creates) the audit log file in append mode.
func NewJSONLSink(path string, logger *slog.Logger) (*JSONLSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &JSONLSink{file: f, logger: logger.With("component", "audit")}, nil
}

// Record appends one event. Failures are logged, never returned.
func (s *JSONLSink) Record(_ context.Context, ev Event) {
	stamp(&ev)

	b, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("dropping unencodable audit event", "kind", ev.Kind, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	if _, err := s.file.Write(append(b, '\n')); err != nil {
		s.logger.Warn("audit write failed", "kind", ev.Kind, "error", err)
	}
}

// Close closes the underlying file. Further Records are dropped.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ABOUTME: Session multiplexer mapping each logical session id to one live bridge.
// ABOUTME: Reference-counts physical attachments and dedupes concurrent creation.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/candlewick/switchboard/internal/audit"
	"github.com/candlewick/switchboard/internal/bridge"
	"github.com/candlewick/switchboard/internal/chain"
	"github.com/candlewick/switchboard/internal/protocol"
)

// ErrUnknownSession indicates a release for a session id with no entry.
var ErrUnknownSession = errors.New("unknown session")

// ErrUnknownConnection indicates a release for a connection id that is not
// attached to the session.
var ErrUnknownConnection = errors.New("connection not attached to session")

// BridgeOpener resolves a bridge for a chain selection. Production wiring
// uses bridge.Open; tests inject fakes.
type BridgeOpener func(ctx context.Context, sel *chain.Selection, onMessage protocol.MessageHandler) (bridge.Bridge, error)

// attachment is one physical connection sharing a session's bridge.
type attachment struct {
	connectionID string
	onMessage    protocol.MessageHandler
}

// entry tracks one logical session. done is closed once bridge creation
// settles; openErr holds the failure when it settled unsuccessfully.
type entry struct {
	bridge      bridge.Bridge
	refs        int
	attachments []attachment
	done        chan struct{}
	openErr     error
}

// Multiplexer ensures at most one bridge per logical session id while
// letting many physical attachments (reconnects, duplicate clients) share
// it. Inbound messages are broadcast to every attached forwarder in
// attachment order.
type Multiplexer struct {
	mu       sync.Mutex
	sessions map[string]*entry

	open   BridgeOpener
	audit  audit.Sink
	logger *slog.Logger
}

// NewMultiplexer creates a multiplexer using the given bridge opener.
// sink may be nil to disable auditing.
func NewMultiplexer(open BridgeOpener, sink audit.Sink, logger *slog.Logger) *Multiplexer {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Multiplexer{
		sessions: make(map[string]*entry),
		open:     open,
		audit:    sink,
		logger:   logger.With("component", "session-mux"),
	}
}

// Acquire returns the bridge for sessionID, creating it on first attach.
// Subsequent attaches increment the reference count and register their own
// forwarder. Overlapping creation for a not-yet-existing session id makes
// the second caller await the first's in-flight creation rather than spawn
// a duplicate bridge.
func (m *Multiplexer) Acquire(ctx context.Context, sessionID, connectionID string, sel *chain.Selection, onMessage protocol.MessageHandler) (bridge.Bridge, error) {
	for {
		m.mu.Lock()
		e, ok := m.sessions[sessionID]
		if !ok {
			e = &entry{
				refs:        1,
				attachments: []attachment{{connectionID: connectionID, onMessage: onMessage}},
				done:        make(chan struct{}),
			}
			m.sessions[sessionID] = e
			m.mu.Unlock()
			return m.create(ctx, sessionID, connectionID, sel, e)
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.done:
		}

		m.mu.Lock()
		if e.openErr != nil || m.sessions[sessionID] != e {
			// Creation failed or the entry was torn down while we waited;
			// start over.
			m.mu.Unlock()
			continue
		}
		e.refs++
		e.attachments = append(e.attachments, attachment{connectionID: connectionID, onMessage: onMessage})
		b := e.bridge
		refs := e.refs
		m.mu.Unlock()

		m.logger.Debug("session attached", "session_id", sessionID, "connection_id", connectionID, "refs", refs)
		m.audit.Record(ctx, audit.Event{
			Kind:         audit.KindSessionAttach,
			SessionID:    sessionID,
			ConnectionID: connectionID,
		})
		return b, nil
	}
}

// create opens the bridge for a freshly inserted entry and settles it.
func (m *Multiplexer) create(ctx context.Context, sessionID, connectionID string, sel *chain.Selection, e *entry) (bridge.Bridge, error) {
	b, err := m.open(ctx, sel, func(msg protocol.Message) {
		m.forward(sessionID, msg)
	})

	m.mu.Lock()
	if err != nil {
		e.openErr = err
		delete(m.sessions, sessionID)
		close(e.done)
		m.mu.Unlock()
		return nil, fmt.Errorf("opening bridge for session %s: %w", sessionID, err)
	}
	e.bridge = b
	close(e.done)
	m.mu.Unlock()

	m.logger.Info("session bridge opened",
		"session_id", sessionID,
		"connection_id", connectionID,
		"bridge_kind", string(b.Kind()),
		"ai_id", sel.AI.ID,
	)
	m.audit.Record(ctx, audit.Event{
		Kind:         audit.KindSessionOpen,
		SessionID:    sessionID,
		ConnectionID: connectionID,
		ServerID:     sel.AI.ID,
		Detail:       map[string]any{"bridge_kind": string(b.Kind())},
	})
	return b, nil
}

// Release detaches one connection. When the reference count reaches zero,
// the underlying bridge is shut down and the entry removed. Only the
// multiplexer closes bridges; no other component closes transports behind
// its back.
func (m *Multiplexer) Release(ctx context.Context, sessionID, connectionID string) error {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownSession
	}

	found := false
	for i, a := range e.attachments {
		if a.connectionID == connectionID {
			e.attachments = append(e.attachments[:i], e.attachments[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return ErrUnknownConnection
	}

	e.refs--
	if e.refs > 0 {
		refs := e.refs
		m.mu.Unlock()
		m.logger.Debug("session released", "session_id", sessionID, "connection_id", connectionID, "refs", refs)
		m.audit.Record(ctx, audit.Event{
			Kind:         audit.KindSessionRelease,
			SessionID:    sessionID,
			ConnectionID: connectionID,
		})
		return nil
	}

	delete(m.sessions, sessionID)
	b := e.bridge
	m.mu.Unlock()

	var err error
	if b != nil {
		err = b.Shutdown(ctx)
	}
	m.logger.Info("session torn down", "session_id", sessionID)
	m.audit.Record(ctx, audit.Event{
		Kind:         audit.KindSessionTeardown,
		SessionID:    sessionID,
		ConnectionID: connectionID,
	})
	return err
}

// Refs reports the current reference count for a session id.
func (m *Multiplexer) Refs(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok {
		return e.refs
	}
	return 0
}

// forward broadcasts one inbound message to every attached forwarder.
func (m *Multiplexer) forward(sessionID string, msg protocol.Message) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	var targets []attachment
	if ok {
		targets = make([]attachment, len(e.attachments))
		copy(targets, e.attachments)
	}
	m.mu.Unlock()

	for _, a := range targets {
		if a.onMessage != nil {
			a.onMessage(msg)
		}
	}
}

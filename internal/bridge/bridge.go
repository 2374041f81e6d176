// ABOUTME: Transport-agnostic bridge contract and the two-tier creation policy.
// ABOUTME: Tries the manager-proxy relay first, falls back to direct exactly once.

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/candlewick/switchboard/internal/audit"
	"github.com/candlewick/switchboard/internal/chain"
	"github.com/candlewick/switchboard/internal/protocol"
)

// Kind identifies which transport strategy a bridge uses.
type Kind string

const (
	KindProxy  Kind = "proxy"
	KindDirect Kind = "direct"
)

// errProxyUnready marks a proxy bridge that failed before becoming ready.
// It is always recovered via fallback and never surfaced to callers.
var errProxyUnready = errors.New("manager proxy not ready")

// Bridge delivers bidirectional protocol messages between a caller and one
// resolved ai endpoint, independent of transport. Exactly one live bridge
// exists per active logical session; only the session multiplexer shuts a
// bridge down.
type Bridge interface {
	Kind() Kind
	Chain() *chain.Selection
	Send(cmd protocol.Command) error
	Shutdown(ctx context.Context) error
}

// OpenOptions configures bridge creation.
type OpenOptions struct {
	// OnMessage receives every inbound message, plus a synthesized
	// error-kind message when the transport closes after readiness.
	OnMessage protocol.MessageHandler

	// ForceDirect skips the manager-proxy attempt even when the chain
	// includes a manager.
	ForceDirect bool

	// Dialer overrides the relay socket dialer (test harnesses).
	Dialer Dialer

	HandshakeTimeout time.Duration
	AskTimeout       time.Duration

	Logger *slog.Logger
	Audit  audit.Sink
}

func (o *OpenOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *OpenOptions) audit() audit.Sink {
	if o.Audit != nil {
		return o.Audit
	}
	return audit.NopSink{}
}

// Open creates a bridge for the resolved chain. When the chain includes a
// manager and direct mode is not forced, the manager-proxy bridge is tried
// first; a readiness rejection falls back to the direct bridge exactly once.
// Two attempts maximum — a direct failure propagates to the caller.
func Open(ctx context.Context, sel *chain.Selection, opts OpenOptions) (Bridge, error) {
	logger := opts.logger()

	if sel.Manager != nil && !opts.ForceDirect {
		b, err := newProxy(ctx, sel, opts)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, errProxyUnready) {
			return nil, err
		}
		logger.Warn("manager proxy unready, falling back to direct bridge",
			"manager_id", sel.Manager.ID,
			"ai_id", sel.AI.ID,
			"error", err,
		)
		opts.audit().Record(ctx, audit.Event{
			Kind:     audit.KindBridgeFallback,
			ServerID: sel.Manager.ID,
			Detail:   map[string]any{"ai_id": sel.AI.ID, "reason": err.Error()},
		})
	}

	return newDirect(ctx, sel, opts)
}

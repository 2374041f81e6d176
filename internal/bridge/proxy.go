// ABOUTME: Manager-proxy bridge relaying protocol messages through a manager endpoint.
// ABOUTME: Readiness is the first successful open; pre-ready failures enable fallback.

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/candlewick/switchboard/internal/chain"
	"github.com/candlewick/switchboard/internal/protocol"
)

// Dialer opens the relay socket to a manager endpoint.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

func defaultDialer(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// attachFrame is the first line written on the relay socket. It carries
// routing hints so the manager can connect the session to the right
// worker and ai endpoints.
type attachFrame struct {
	Type     string `json:"type"`
	WorkerID string `json:"worker,omitempty"`
	AIID     string `json:"ai"`
}

// ProxyBridge relays protocol traffic through a manager's relay endpoint.
type ProxyBridge struct {
	sel    *chain.Selection
	client *protocol.Client
}

// newProxy dials the manager relay and writes the attach frame. Any failure
// before that point rejects readiness with errProxyUnready; once the open
// succeeds, later failures are reported through the message channel and do
// not retroactively fail creation.
func newProxy(ctx context.Context, sel *chain.Selection, opts OpenOptions) (*ProxyBridge, error) {
	dial := opts.Dialer
	if dial == nil {
		dial = defaultDialer
	}

	addr := sel.Manager.Addr()
	conn, err := dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing relay %s: %v", errProxyUnready, addr, err)
	}

	frame := attachFrame{Type: "relay_attach", AIID: sel.AI.ID}
	if sel.Worker != nil {
		frame.WorkerID = sel.Worker.ID
	}
	line, err := json.Marshal(frame)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: encoding attach frame: %v", errProxyUnready, err)
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: writing attach frame: %v", errProxyUnready, err)
	}

	// Ready. The relay passes the agent's own messages through verbatim, so
	// the client adopts the socket without waiting for a second handshake.
	onMessage := opts.OnMessage
	client := protocol.NewClient(protocol.Conn(conn), protocol.Options{
		Logger:        opts.logger(),
		SkipHandshake: true,
		AskTimeout:    opts.AskTimeout,
		OnDisconnect: func(err error) {
			if onMessage != nil {
				onMessage(protocol.Message{
					Type:    protocol.KindError,
					Message: fmt.Sprintf("relay transport closed: %v", err),
				})
			}
		},
	})
	if onMessage != nil {
		client.AddMessageHandler(onMessage)
	}

	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting relay client: %w", err)
	}

	opts.logger().Info("manager proxy bridge ready",
		"manager_id", sel.Manager.ID,
		"ai_id", sel.AI.ID,
	)
	return &ProxyBridge{sel: sel, client: client}, nil
}

func (b *ProxyBridge) Kind() Kind              { return KindProxy }
func (b *ProxyBridge) Chain() *chain.Selection { return b.sel }

// Send forwards a command through the relay.
func (b *ProxyBridge) Send(cmd protocol.Command) error {
	return b.client.Send(cmd)
}

// Shutdown closes the relay socket.
func (b *ProxyBridge) Shutdown(context.Context) error {
	b.client.Stop()
	return nil
}

// ABOUTME: Direct bridge owning one protocol client to the resolved ai endpoint.
// ABOUTME: Uses the transport mode declared in the ai record's metadata.

package bridge

import (
	"context"
	"fmt"

	"github.com/candlewick/switchboard/internal/chain"
	"github.com/candlewick/switchboard/internal/protocol"
	"github.com/candlewick/switchboard/internal/registry"
)

// DirectBridge connects straight to the ai endpoint, bypassing any manager.
type DirectBridge struct {
	sel    *chain.Selection
	client *protocol.Client
}

// newDirect builds and starts a direct bridge. Start must complete (including
// the agent handshake) before the bridge is usable.
func newDirect(ctx context.Context, sel *chain.Selection, opts OpenOptions) (*DirectBridge, error) {
	ai := sel.AI

	var dial protocol.DialFunc
	switch ai.Metadata.Transport {
	case registry.TransportEmbedded:
		if ai.Metadata.Command == "" {
			return nil, fmt.Errorf("ai server %s declares embedded transport but no command", ai.ID)
		}
		dial = protocol.Embedded(ai.Metadata.Command, ai.Metadata.Args...)
	default:
		dial = protocol.TCP(ai.Addr())
	}

	onMessage := opts.OnMessage
	client := protocol.NewClient(dial, protocol.Options{
		Logger:           opts.logger(),
		HandshakeTimeout: opts.HandshakeTimeout,
		AskTimeout:       opts.AskTimeout,
		OnDisconnect: func(err error) {
			// Post-ready transport failures flow to the caller through the
			// normal forwarding channel, not as a thrown error.
			if onMessage != nil {
				onMessage(protocol.Message{
					Type:    protocol.KindError,
					Message: fmt.Sprintf("agent transport closed: %v", err),
				})
			}
		},
	})
	if onMessage != nil {
		client.AddMessageHandler(onMessage)
	}

	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting direct bridge to %s: %w", ai.ID, err)
	}

	opts.logger().Info("direct bridge ready",
		"ai_id", ai.ID,
		"transport", ai.Metadata.Transport,
	)
	return &DirectBridge{sel: sel, client: client}, nil
}

func (b *DirectBridge) Kind() Kind              { return KindDirect }
func (b *DirectBridge) Chain() *chain.Selection { return b.sel }

// Send forwards a command to the agent.
func (b *DirectBridge) Send(cmd protocol.Command) error {
	return b.client.Send(cmd)
}

// Shutdown stops the underlying protocol client.
func (b *DirectBridge) Shutdown(context.Context) error {
	b.client.Stop()
	return nil
}

// Client exposes the owned protocol client for single-shot asks.
func (b *DirectBridge) Client() *protocol.Client {
	return b.client
}

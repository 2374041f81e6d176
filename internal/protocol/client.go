// ABOUTME: Protocol client maintaining one bidirectional channel to an agent process.
// ABOUTME: Handles handshake, ordered fan-out to subscribers, and single-shot asks.

package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrConnectTimeout indicates the init handshake did not arrive in time.
var ErrConnectTimeout = errors.New("timed out waiting for init handshake")

// ErrTransportError indicates the transport itself could not be established.
var ErrTransportError = errors.New("transport could not be established")

// ErrNotConnected indicates a send was attempted with no live transport.
var ErrNotConnected = errors.New("client is not connected")

// ErrAskTimeout indicates a single-shot ask exceeded its time bound.
var ErrAskTimeout = errors.New("ask timed out")

// Default time bounds. Both are overridable through Options.
const (
	DefaultHandshakeTimeout = 5000 * time.Millisecond
	DefaultAskTimeout       = 60000 * time.Millisecond
)

// MessageHandler receives every decoded server→client message, in receipt order.
type MessageHandler func(Message)

// Options configures a Client.
type Options struct {
	Logger           *slog.Logger
	HandshakeTimeout time.Duration // default DefaultHandshakeTimeout
	AskTimeout       time.Duration // default DefaultAskTimeout

	// SkipHandshake makes Start return as soon as the transport is live,
	// without waiting for init. The manager-proxy bridge uses this: its
	// readiness is the relay socket opening, not the agent handshake.
	SkipHandshake bool

	// OnDisconnect is invoked once when the transport fails underneath the
	// client (process exit, socket close). A deliberate Stop does not fire it.
	OnDisconnect func(error)
}

type subscriber struct {
	id int64
	fn MessageHandler
}

// Client talks to one external agent process over a single Transport.
// Subscribers are dispatched in registration order; all shared state is
// mutex-guarded since handlers run on the read-loop goroutine.
type Client struct {
	dial   DialFunc
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	transport Transport
	connected bool
	subs      []subscriber
	nextSubID int64
	init      *Message

	// writeMu keeps each outgoing line atomic on the wire.
	writeMu sync.Mutex
}

// NewClient creates a client that will establish its transport via dial.
func NewClient(dial DialFunc, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		dial:   dial,
		opts:   opts,
		logger: logger.With("component", "protocol-client"),
	}
}

// Start establishes the transport, begins the decode loop, and waits for the
// init handshake. Returns ErrTransportError if the transport cannot be
// established and ErrConnectTimeout if the handshake does not arrive in time.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return errors.New("client already started")
	}
	c.mu.Unlock()

	t, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportError, err)
	}

	initCh := make(chan Message, 1)

	c.mu.Lock()
	c.transport = t
	c.connected = true
	watchID := c.addHandlerLocked(func(m Message) {
		if m.Type == KindInit {
			select {
			case initCh <- m:
			default:
			}
		}
	})
	c.mu.Unlock()

	go c.readLoop(t)

	if c.opts.SkipHandshake {
		c.RemoveMessageHandler(watchID)
		return nil
	}

	timeout := c.opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-initCh:
		c.RemoveMessageHandler(watchID)
		c.mu.Lock()
		c.init = &m
		c.mu.Unlock()
		c.logger.Info("agent handshake complete",
			"version", m.Version,
			"model", m.Model,
			"workspace_root", m.WorkspaceRoot,
		)
		return nil
	case <-timer.C:
		c.Stop()
		return ErrConnectTimeout
	case <-ctx.Done():
		c.Stop()
		return ctx.Err()
	}
}

// Send serializes the command to one UTF-8 JSON line and writes it.
func (c *Client) Send(cmd Command) error {
	c.mu.Lock()
	t := c.transport
	connected := c.connected
	c.mu.Unlock()

	if !connected || t == nil {
		return ErrNotConnected
	}

	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}
	b = append(b, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := t.Write(b); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

// Ask sends a user_input command and accumulates streamed conversation
// chunks, invoking onChunk for each piece of content. It resolves on a
// terminal conversation message (isStreaming=false), or on an idle status
// after any content has arrived; it rejects immediately on an error message.
// The call is bounded by the configured ask timeout with no retry.
func (c *Client) Ask(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	type askResult struct {
		text string
		err  error
	}
	result := make(chan askResult, 1)
	resolve := func(r askResult) {
		select {
		case result <- r:
		default:
		}
	}

	// The handler runs on the read-loop goroutine only, so the builder
	// needs no extra locking.
	var acc []byte
	id := c.AddMessageHandler(func(m Message) {
		switch m.Type {
		case KindConversation:
			if m.Content != "" {
				acc = append(acc, m.Content...)
				if onChunk != nil {
					onChunk(m.Content)
				}
			}
			if !m.IsStreaming {
				resolve(askResult{text: string(acc)})
			}
		case KindStatus:
			if m.State == StateIdle && len(acc) > 0 {
				resolve(askResult{text: string(acc)})
			}
		case KindError:
			resolve(askResult{err: fmt.Errorf("agent error: %s", m.Message)})
		}
	})
	defer c.RemoveMessageHandler(id)

	if err := c.Send(UserInput(prompt)); err != nil {
		return "", err
	}

	timeout := c.opts.AskTimeout
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-result:
		return r.text, r.err
	case <-timer.C:
		return "", ErrAskTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AddMessageHandler registers an independent subscriber and returns its id.
// Subscribers are dispatched in registration order.
func (c *Client) AddMessageHandler(fn MessageHandler) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addHandlerLocked(fn)
}

func (c *Client) addHandlerLocked(fn MessageHandler) int64 {
	c.nextSubID++
	c.subs = append(c.subs, subscriber{id: c.nextSubID, fn: fn})
	return c.nextSubID
}

// RemoveMessageHandler removes a previously registered subscriber.
func (c *Client) RemoveMessageHandler(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// Connected reports whether a transport is currently live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Init returns the handshake message, or nil before the handshake completes.
func (c *Client) Init() *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.init
}

// Stop tears down the transport and clears all subscriptions and buffers.
func (c *Client) Stop() {
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.connected = false
	c.subs = nil
	c.init = nil
	c.mu.Unlock()

	if t != nil {
		_ = t.Close()
	}
}

// readLoop feeds transport bytes through the line decoder until the
// transport fails, then performs disconnect cleanup.
func (c *Client) readLoop(t Transport) {
	dec := NewLineDecoder(c.dispatch, c.logger)
	buf := make([]byte, 4096)
	for {
		n, err := t.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil {
			c.handleDisconnect(err)
			return
		}
	}
}

// dispatch delivers one message to every current subscriber, in order.
func (c *Client) dispatch(msg Message) {
	c.mu.Lock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(msg)
	}
}

// handleDisconnect cleans up after a transport failure. In-flight asks are
// not proactively rejected; they resolve via their own terminal condition
// or timeout.
func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	if !c.connected {
		// Deliberate Stop already cleaned up.
		c.mu.Unlock()
		return
	}
	c.connected = false
	t := c.transport
	c.transport = nil
	c.subs = nil
	c.init = nil
	onDisconnect := c.opts.OnDisconnect
	c.mu.Unlock()

	if t != nil {
		_ = t.Close()
	}
	c.logger.Warn("agent transport closed", "error", err)

	if onDisconnect != nil {
		onDisconnect(err)
	}
}

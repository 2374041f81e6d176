// ABOUTME: Interactive chat and single-shot ask subcommands.
// ABOUTME: Renders the UOL-wrapped agent stream and handles cooperative interruption.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/candlewick/switchboard/internal/bridge"
	"github.com/candlewick/switchboard/internal/chain"
	"github.com/candlewick/switchboard/internal/protocol"
	"github.com/candlewick/switchboard/internal/session"
	"github.com/candlewick/switchboard/internal/uol"
)

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	sessionID := fs.String("session", "", "logical session id (default: fresh id)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID == "" {
		*sessionID = uuid.New().String()
	}

	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	sel, err := e.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	opts := e.bridgeOptions()
	mux := session.NewMultiplexer(func(ctx context.Context, sel *chain.Selection, onMessage protocol.MessageHandler) (bridge.Bridge, error) {
		o := opts
		o.OnMessage = onMessage
		return bridge.Open(ctx, sel, o)
	}, e.sink, e.logger)

	// The stream feeds raw messages to the renderer; the UOL wrapping turns
	// it into the sequenced event stream the renderer consumes.
	stream := newRawStream(64, e.logger)
	connectionID := uuid.New().String()
	b, err := mux.Acquire(ctx, *sessionID, connectionID, sel, stream.forward)
	if err != nil {
		return err
	}
	release := sync.OnceValue(func() error {
		return mux.Release(context.Background(), *sessionID, connectionID)
	})
	defer func() { _ = release() }()

	intr := uol.NewInterrupt()
	events := uol.Wrap(uol.SourceAgent, stream.ch, intr)

	// First Ctrl-C interrupts the stream and the agent; a second one exits.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		intr.Set()
		_ = b.Send(protocol.Interrupt())
		<-sigCh
		os.Exit(1)
	}()

	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		renderEvents(events)
	}()

	fmt.Printf("session %s — bridge %s to %s (type /quit to exit)\n",
		*sessionID, b.Kind(), sel.AI.ID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if err := b.Send(protocol.UserInput(line)); err != nil {
			return err
		}
	}

	_ = release()
	stream.close()
	<-renderDone
	return scanner.Err()
}

// rawStream carries forwarded messages to the renderer. Release does not
// wait for broadcasts already in flight, so the forwarder and close share a
// mutex: a forward arriving after close is dropped instead of panicking on
// the closed channel.
type rawStream struct {
	mu     sync.Mutex
	ch     chan any
	closed bool
	logger *slog.Logger
}

func newRawStream(size int, logger *slog.Logger) *rawStream {
	return &rawStream{ch: make(chan any, size), logger: logger}
}

// forward is the per-connection message handler registered with the
// multiplexer. It never blocks the read loop.
func (s *rawStream) forward(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
		s.logger.Warn("renderer behind, dropping message", "kind", msg.Type)
	}
}

// close ends the stream. Later forwards are dropped.
func (s *rawStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// renderEvents prints normalized events until the stream ends.
func renderEvents(events <-chan uol.Event) {
	faint := color.New(color.Faint)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	for ev := range events {
		msg, ok := ev.Data.(protocol.Message)
		if !ok {
			if ev.Event == uol.EventInterrupt {
				yellow.Println("\n— interrupted —")
			}
			continue
		}

		switch msg.Type {
		case protocol.KindConversation:
			fmt.Print(msg.Content)
			if !msg.IsStreaming {
				fmt.Println()
			}
		case protocol.KindStatus:
			if msg.Thought != "" {
				faint.Printf("[%s] %s\n", msg.State, msg.Thought)
			}
		case protocol.KindInfo:
			cyan.Printf("info: %s\n", msg.Message)
		case protocol.KindError:
			red.Printf("error: %s\n", msg.Message)
		case protocol.KindCompletionStats:
			faint.Printf("(%.2fs, %d prompt + %d completion tokens)\n",
				msg.Duration, msg.PromptTokens, msg.CompletionTokens)
		}
	}
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("usage: switchboard ask <prompt>")
	}

	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	sel, err := e.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	// Single-shot asks always go direct: the convenience call lives on the
	// protocol client, which only the direct bridge owns.
	opts := e.bridgeOptions()
	opts.ForceDirect = true
	b, err := bridge.Open(ctx, sel, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = b.Shutdown(context.Background())
	}()

	direct, ok := b.(*bridge.DirectBridge)
	if !ok {
		return fmt.Errorf("expected direct bridge, got %s", b.Kind())
	}

	_, err = direct.Client().Ask(ctx, prompt, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	return err
}

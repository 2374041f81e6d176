// ABOUTME: Minimal fake agent for E2E testing — speaks newline-delimited JSON over stdio or TCP.
// ABOUTME: Usage: fake-agent [-listen :7777] [-model fake-1] [-scenario replies.toml]

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/candlewick/switchboard/internal/protocol"
)

func main() {
	listen := flag.String("listen", "", "TCP listen address; empty serves one session on stdio")
	model := flag.String("model", "fake-1", "model name reported in the init handshake")
	workspace := flag.String("workspace", "/tmp/fake-agent", "workspace root reported in the init handshake")
	scenarioPath := flag.String("scenario", "", "optional TOML file with scripted replies")
	chunkDelay := flag.Duration("chunk-delay", 25*time.Millisecond, "delay between streamed chunks")
	flag.Parse()

	sc, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Fatalf("loading scenario: %v", err)
	}
	if sc.Model != "" {
		*model = sc.Model
	}

	a := &agent{
		model:      *model,
		workspace:  *workspace,
		scenario:   sc,
		chunkDelay: *chunkDelay,
	}

	if *listen == "" {
		a.serve(os.Stdin, os.Stdout)
		return
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Fatalf("listening on %s: %v", *listen, err)
	}
	fmt.Fprintf(os.Stderr, "fake-agent listening on %s\n", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatalf("accept: %v", err)
		}
		go func() {
			defer conn.Close()
			a.serve(conn, conn)
		}()
	}
}

// scenario holds scripted replies matched by prompt substring.
type scenario struct {
	Model   string  `toml:"model"`
	Replies []reply `toml:"reply"`
}

type reply struct {
	Match   string `toml:"match"`
	Content string `toml:"content"`
}

func loadScenario(path string) (*scenario, error) {
	sc := &scenario{}
	if path == "" {
		return sc, nil
	}
	if _, err := toml.DecodeFile(path, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

type agent struct {
	model      string
	workspace  string
	scenario   *scenario
	chunkDelay time.Duration
}

// serve handles one protocol session: init handshake, then a command loop.
func (a *agent) serve(r io.Reader, w io.Writer) {
	// The command loop and the respond goroutines share the writer; the
	// mutex keeps each line whole on the wire.
	var writeMu sync.Mutex
	send := func(m protocol.Message) {
		b, err := json.Marshal(m)
		if err != nil {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_, _ = w.Write(append(b, '\n'))
	}

	send(protocol.Message{
		Type:          protocol.KindInit,
		Version:       "1.0",
		WorkspaceRoot: a.workspace,
		Model:         a.model,
	})

	var interrupted atomic.Bool
	var msgID atomic.Int64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd protocol.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			send(protocol.Message{Type: protocol.KindError, Message: "malformed command"})
			continue
		}

		switch cmd.Type {
		case protocol.KindUserInput:
			interrupted.Store(false)
			go a.respond(cmd.Content, send, &interrupted, &msgID)
		case protocol.KindInterrupt:
			interrupted.Store(true)
		default:
			send(protocol.Message{Type: protocol.KindInfo, Message: fmt.Sprintf("ignoring command %q", cmd.Type)})
		}
	}
}

// respond streams a reply in chunks, then reports idle status and stats.
func (a *agent) respond(prompt string, send func(protocol.Message), interrupted *atomic.Bool, msgID *atomic.Int64) {
	start := time.Now()
	id := fmt.Sprintf("msg-%d", msgID.Add(1))

	send(protocol.Message{Type: protocol.KindStatus, State: protocol.StateResponding})

	text := a.replyFor(prompt)
	chunks := chunkText(text, 24)
	for i, chunk := range chunks {
		if interrupted.Load() {
			send(protocol.Message{Type: protocol.KindInfo, ID: id, Message: "response interrupted"})
			send(protocol.Message{Type: protocol.KindStatus, State: protocol.StateIdle})
			return
		}
		send(protocol.Message{
			Type:        protocol.KindConversation,
			Role:        "assistant",
			Content:     chunk,
			ID:          id,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			IsStreaming: i < len(chunks)-1,
		})
		if a.chunkDelay > 0 && i < len(chunks)-1 {
			time.Sleep(a.chunkDelay)
		}
	}

	send(protocol.Message{Type: protocol.KindStatus, State: protocol.StateIdle})
	send(protocol.Message{
		Type:             protocol.KindCompletionStats,
		Duration:         time.Since(start).Seconds(),
		PromptTokens:     len(strings.Fields(prompt)),
		CompletionTokens: len(strings.Fields(text)),
	})
}

// replyFor returns the scripted reply whose match is contained in the
// prompt, or an echo.
func (a *agent) replyFor(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, r := range a.scenario.Replies {
		if r.Match != "" && strings.Contains(lower, strings.ToLower(r.Match)) {
			return r.Content
		}
	}
	return fmt.Sprintf("Echo: %s", prompt)
}

// chunkText splits text into pieces of at most size bytes, keeping at least
// one chunk for empty text so a terminal message is always sent.
func chunkText(text string, size int) []string {
	if text == "" {
		return []string{""}
	}
	var chunks []string
	for len(text) > size {
		chunks = append(chunks, text[:size])
		text = text[size:]
	}
	return append(chunks, text)
}

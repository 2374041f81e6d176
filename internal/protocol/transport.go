// ABOUTME: Transport implementations carrying protocol bytes to an agent process.
// ABOUTME: Embedded subprocess stdio, direct TCP, and preconnected net.Conn variants.

package protocol

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
)

// Transport kinds.
const (
	TransportKindEmbedded = "embedded"
	TransportKindTCP      = "tcp"
)

// Transport is one live bidirectional byte channel to an agent.
type Transport interface {
	io.Reader
	io.Writer
	Close() error
	Kind() string
}

// DialFunc establishes a Transport. The Client calls it exactly once per Start.
type DialFunc func(ctx context.Context) (Transport, error)

// Embedded returns a dialer that spawns command as a subprocess and speaks
// over its stdin/stdout pipes. Stderr is inherited from the parent.
func Embedded(command string, args ...string) DialFunc {
	return func(ctx context.Context) (Transport, error) {
		cmd := exec.Command(command, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("opening stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("opening stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("starting agent process %q: %w", command, err)
		}
		return &stdioTransport{cmd: cmd, stdin: stdin, stdout: stdout}, nil
	}
}

// TCP returns a dialer that connects to an independently running agent server.
func TCP(addr string) DialFunc {
	return func(ctx context.Context) (Transport, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", addr, err)
		}
		return &connTransport{conn: conn}, nil
	}
}

// Conn returns a dialer that adopts an already established connection.
// Used by the manager-proxy bridge and by tests with net.Pipe.
func Conn(conn net.Conn) DialFunc {
	return func(context.Context) (Transport, error) {
		return &connTransport{conn: conn}, nil
	}
}

type stdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (t *stdioTransport) Read(p []byte) (int, error)  { return t.stdout.Read(p) }
func (t *stdioTransport) Write(p []byte) (int, error) { return t.stdin.Write(p) }
func (t *stdioTransport) Kind() string                { return TransportKindEmbedded }

// Close shuts down the pipes and kills the subprocess if it is still running.
func (t *stdioTransport) Close() error {
	_ = t.stdin.Close()
	_ = t.stdout.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	// Reap the process; the error is expected after a kill.
	_ = t.cmd.Wait()
	return nil
}

type connTransport struct {
	conn net.Conn
}

func (t *connTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *connTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *connTransport) Kind() string                { return TransportKindTCP }
func (t *connTransport) Close() error                { return t.conn.Close() }

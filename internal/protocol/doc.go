// Package protocol implements the line-delimited JSON protocol spoken to an
// external AI agent process.
//
// # Transport
//
// A Client owns exactly one Transport: an embedded subprocess reached over
// stdin/stdout pipes, or a TCP connection to an independently running agent.
// The transport is chosen by the DialFunc passed to NewClient:
//
//	client := protocol.NewClient(protocol.Embedded("my-agent", "--workspace", dir), opts)
//	client := protocol.NewClient(protocol.TCP("10.0.0.7:7777"), opts)
//
// # Framing
//
// Each message is one UTF-8 JSON object per line, newline-terminated.
// Incoming bytes accumulate in a buffer scanned for newline boundaries, so
// messages split across arbitrary read chunks are reassembled. A line that
// fails to parse is logged and dropped; it never aborts the stream.
//
// # Handshake
//
// Start establishes the transport and waits for the agent's init message
// within a configurable bound (default 5s). No init in time means
// ErrConnectTimeout; a transport that cannot be established means
// ErrTransportError.
//
// # Subscribers
//
// Multiple independent subscribers may coexist (a long-lived forwarder next
// to Ask's internal listener). Every decoded message is delivered to all
// current subscribers in registration order, matching receipt order on the
// wire.
//
// # Disconnects
//
// Process exit or socket close triggers full cleanup: the subprocess is
// killed if still running, the socket destroyed, subscribers and buffers
// cleared. In-flight Ask calls are not proactively rejected; they resolve or
// reject only via their own terminal condition or timeout.
package protocol

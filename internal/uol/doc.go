// Package uol normalizes heterogeneous event producers into one stream
// shape: a per-stream sequence number starting at 1, an ISO-8601 UTC
// timestamp with millisecond precision, a source category, an event kind,
// and the raw item as data.
//
// Wrap turns a producer channel into such a stream, pulling lazily. The
// cooperative Interrupt flag is checked between pulls: once set, a single
// synthetic interrupt event ends the stream. Interruption stops
// consumption only — commanding the agent to stop is a protocol-level
// concern.
package uol

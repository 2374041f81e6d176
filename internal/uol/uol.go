// ABOUTME: Unified observability layer normalizing heterogeneous event producers.
// ABOUTME: Wraps streams into sequenced, timestamped events with cooperative interruption.

package uol

import (
	"sync/atomic"
	"time"
)

// Source identifies the producer category of a wrapped stream.
type Source string

const (
	SourceAgent   Source = "agent"
	SourceProcess Source = "process"
	SourceSocket  Source = "socket"
	SourcePoll    Source = "poll"
	SourceNetwork Source = "network"
)

// EventInterrupt is the kind of the synthetic event emitted when a wrapped
// stream is cooperatively interrupted.
const EventInterrupt = "interrupt"

// timestampLayout renders ISO-8601 with millisecond precision in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Event is one normalized observability event. Seq is monotonic per wrapped
// stream, starting at 1, and has no meaning across streams.
type Event struct {
	Seq       uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
	Source    Source `json:"source"`
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Kinder lets raw items report their own event kind.
type Kinder interface {
	EventKind() string
}

// Counter is a monotonically increasing sequence counter starting at 1,
// private to one wrapped stream.
type Counter struct {
	n atomic.Uint64
}

// NewCounter creates a fresh counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Next returns the next sequence number.
func (c *Counter) Next() uint64 {
	return c.n.Add(1)
}

// Normalize produces one Event from a raw item: the next sequence number,
// the current timestamp, the item's event kind (or "unknown"), and the raw
// item itself as data.
func Normalize(c *Counter, source Source, raw any) Event {
	return Event{
		Seq:       c.Next(),
		Timestamp: now(),
		Source:    source,
		Event:     kindOf(raw),
		Data:      raw,
	}
}

func now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// kindOf extracts the event kind from a raw item.
func kindOf(raw any) string {
	switch v := raw.(type) {
	case Kinder:
		if k := v.EventKind(); k != "" {
			return k
		}
	case map[string]any:
		if k, ok := v["event"].(string); ok && k != "" {
			return k
		}
	}
	return "unknown"
}

// Interrupt is a cooperative interruption flag checked between successive
// pulls of a wrapped stream. Setting it affects consumption only; upstream
// side effects are not undone, and stopping agent-side work takes a
// protocol-level interrupt command instead.
type Interrupt struct {
	flag atomic.Bool
}

// NewInterrupt creates an unset flag.
func NewInterrupt() *Interrupt {
	return &Interrupt{}
}

// Set requests interruption.
func (i *Interrupt) Set() {
	i.flag.Store(true)
}

// Interrupted reports whether interruption was requested.
func (i *Interrupt) Interrupted() bool {
	return i.flag.Load()
}

// Wrap turns a producer channel into a lazy sequence of normalized events.
// The output is finite if the source is finite and closes on completion.
// When intr is set, one final interrupt event is emitted and no further
// items are pulled. intr may be nil.
func Wrap(source Source, in <-chan any, intr *Interrupt) <-chan Event {
	out := make(chan Event)
	ctr := NewCounter()

	go func() {
		defer close(out)
		for {
			if intr != nil && intr.Interrupted() {
				out <- Event{
					Seq:       ctr.Next(),
					Timestamp: now(),
					Source:    source,
					Event:     EventInterrupt,
				}
				return
			}
			raw, ok := <-in
			if !ok {
				return
			}
			out <- Normalize(ctr, source, raw)
		}
	}()

	return out
}

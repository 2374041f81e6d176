// ABOUTME: Line decoder that frames newline-delimited JSON out of an unreliable byte stream.
// ABOUTME: Malformed lines are logged and dropped; they never abort the stream.

package protocol

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// LineDecoder accumulates raw bytes and dispatches one Message per complete
// newline-terminated JSON line, in receipt order. Feed may be called with
// arbitrary chunk boundaries, including mid-line splits.
type LineDecoder struct {
	buf      bytes.Buffer
	dispatch func(Message)
	logger   *slog.Logger
}

// NewLineDecoder creates a decoder dispatching each decoded message to fn.
func NewLineDecoder(fn func(Message), logger *slog.Logger) *LineDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineDecoder{dispatch: fn, logger: logger}
}

// Feed appends bytes to the internal buffer and dispatches every complete
// line found. A line that fails to parse is dropped.
func (d *LineDecoder) Feed(p []byte) {
	d.buf.Write(p)

	for {
		data := d.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return
		}

		line := make([]byte, idx)
		copy(line, data[:idx])
		d.buf.Next(idx + 1)

		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			d.logger.Warn("dropping malformed protocol line", "error", err, "line_bytes", len(line))
			continue
		}
		d.dispatch(msg)
	}
}

// Reset discards any buffered partial line.
func (d *LineDecoder) Reset() {
	d.buf.Reset()
}

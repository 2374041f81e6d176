// ABOUTME: Tests for the newline-delimited JSON line decoder.
// ABOUTME: Validates chunk-boundary reassembly, ordering, and malformed-line recovery.

package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLineDecoderDispatchOrder(t *testing.T) {
	var got []Message
	d := NewLineDecoder(func(m Message) { got = append(got, m) }, discardLogger())

	var input []byte
	for i := 0; i < 10; i++ {
		line, err := json.Marshal(Message{Type: KindInfo, Message: fmt.Sprintf("line-%d", i)})
		require.NoError(t, err)
		input = append(input, line...)
		input = append(input, '\n')
	}

	// Feed in every possible split position of the whole stream: the same N
	// dispatches must occur in original order regardless of chunk boundaries.
	for split := 0; split <= len(input); split++ {
		got = nil
		d.Reset()
		d.Feed(input[:split])
		d.Feed(input[split:])

		require.Len(t, got, 10, "split at %d", split)
		for i, m := range got {
			assert.Equal(t, fmt.Sprintf("line-%d", i), m.Message)
		}
	}
}

func TestLineDecoderByteAtATime(t *testing.T) {
	var got []Message
	d := NewLineDecoder(func(m Message) { got = append(got, m) }, discardLogger())

	input := []byte(`{"type":"status","state":"idle"}` + "\n" + `{"type":"info","message":"hi"}` + "\n")
	for _, b := range input {
		d.Feed([]byte{b})
	}

	require.Len(t, got, 2)
	assert.Equal(t, KindStatus, got[0].Type)
	assert.Equal(t, KindInfo, got[1].Type)
}

func TestLineDecoderMalformedLineRecovered(t *testing.T) {
	var got []Message
	d := NewLineDecoder(func(m Message) { got = append(got, m) }, discardLogger())

	d.Feed([]byte(`{"type":"info","message":"first"}` + "\n"))
	d.Feed([]byte("{not json at all\n"))
	d.Feed([]byte(`{"type":"info","message":"second"}` + "\n"))

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "second", got[1].Message)
}

func TestLineDecoderIgnoresBlankAndCRLF(t *testing.T) {
	var got []Message
	d := NewLineDecoder(func(m Message) { got = append(got, m) }, discardLogger())

	d.Feed([]byte("\n\r\n"))
	d.Feed([]byte(`{"type":"info","message":"crlf"}` + "\r\n"))

	require.Len(t, got, 1)
	assert.Equal(t, "crlf", got[0].Message)
}

func TestLineDecoderHoldsPartialLine(t *testing.T) {
	var got []Message
	d := NewLineDecoder(func(m Message) { got = append(got, m) }, discardLogger())

	d.Feed([]byte(`{"type":"info","mess`))
	assert.Empty(t, got, "no dispatch before the newline arrives")

	d.Feed([]byte(`age":"partial"}` + "\n"))
	require.Len(t, got, 1)
	assert.Equal(t, "partial", got[0].Message)
}

// ABOUTME: Tests for the audit sinks: JSONL append, SQLite storage, and fanout.
// ABOUTME: Recording is fire-and-forget, so assertions read the sinks back directly.

package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJSONLSinkAppendsOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path, testLogger())
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	sink.Record(ctx, Event{Kind: KindSessionOpen, SessionID: "s1", ServerID: "ai-1",
		Detail: map[string]any{"bridge_kind": "direct"}})
	sink.Record(ctx, Event{Kind: KindSessionTeardown, SessionID: "s1"})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, events, 2)

	assert.Equal(t, KindSessionOpen, events[0].Kind)
	assert.Equal(t, "s1", events[0].SessionID)
	assert.Equal(t, "direct", events[0].Detail["bridge_kind"])
	assert.NotEmpty(t, events[0].ID, "id is stamped on record")
	assert.NotEmpty(t, events[0].Timestamp)
	assert.Equal(t, KindSessionTeardown, events[1].Kind)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestJSONLSinkRecordAfterCloseIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	// Must not panic or error; the event is silently dropped.
	sink.Record(context.Background(), Event{Kind: KindSessionAttach})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSQLiteSinkStoresAndCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path, testLogger())
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	sink.Record(ctx, Event{Kind: KindSessionOpen, SessionID: "s1"})
	sink.Record(ctx, Event{Kind: KindSessionAttach, SessionID: "s1", ConnectionID: "c2"})
	sink.Record(ctx, Event{Kind: KindBridgeFallback, ServerID: "mgr-1"})

	n, err := sink.Count(ctx, KindSessionOpen)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sink.Count(ctx, KindBridgeFallback)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sink.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "empty kind counts everything")
}

func TestSQLiteSinkStampsDistinctIDs(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "audit.db"), testLogger())
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		sink.Record(ctx, Event{Kind: KindSessionRelease, SessionID: "s1"})
	}

	// Colliding ids would violate the primary key and drop rows.
	n, err := sink.Count(ctx, KindSessionRelease)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestFanoutForwardsToEverySink(t *testing.T) {
	a, err := NewSQLiteSink(filepath.Join(t.TempDir(), "a.db"), testLogger())
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteSink(filepath.Join(t.TempDir(), "b.db"), testLogger())
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	Fanout{a, b, NopSink{}}.Record(ctx, Event{Kind: KindSessionOpen})

	for _, sink := range []*SQLiteSink{a, b} {
		n, err := sink.Count(ctx, KindSessionOpen)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
}

func TestStampPreservesExplicitFields(t *testing.T) {
	ev := Event{ID: "fixed-id", Timestamp: "2026-08-01T00:00:00Z", Kind: KindSessionOpen}
	stamp(&ev)
	assert.Equal(t, "fixed-id", ev.ID)
	assert.Equal(t, "2026-08-01T00:00:00Z", ev.Timestamp)
}

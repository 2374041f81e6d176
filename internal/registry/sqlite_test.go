// ABOUTME: Tests for the SQLite-backed server-record store.
// ABOUTME: Exercises CRUD, newest-first ordering, and metadata round-trips.

package registry

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "registry.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &ServerRecord{
		Type:   TypeAI,
		Host:   "127.0.0.1",
		Port:   7777,
		Status: StatusOnline,
		Metadata: Metadata{
			Model:     "local-model",
			Transport: TransportTCP,
			WorkerID:  "w-1",
		},
	}
	require.NoError(t, s.Create(ctx, rec))
	require.NotEmpty(t, rec.ID, "missing id is generated")
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeAI, got.Type)
	assert.Equal(t, "127.0.0.1:7777", got.Addr())
	assert.Equal(t, StatusOnline, got.Status)
	assert.Equal(t, "local-model", got.Metadata.Model)
	assert.Equal(t, TransportTCP, got.Metadata.Transport)
	assert.Equal(t, "w-1", got.Metadata.WorkerID)
}

func TestSQLiteStoreMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &ServerRecord{
		Type: TypeAI,
		Host: "127.0.0.1",
		Metadata: Metadata{
			Transport:   TransportEmbedded,
			Command:     "fake-agent",
			Args:        []string{"-model", "m1", "-chunk-delay", "5ms"},
			AutoCreated: true,
		},
	}
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Metadata, got.Metadata)
}

func TestSQLiteStoreGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"oldest", "middle", "newest"} {
		rec := &ServerRecord{
			ID:        id,
			Type:      TypeAI,
			Host:      "127.0.0.1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Create(ctx, rec))
	}

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "newest", records[0].ID)
	assert.Equal(t, "middle", records[1].ID)
	assert.Equal(t, "oldest", records[2].ID)
}

func TestSQLiteStoreUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &ServerRecord{Type: TypeWorker, Host: "127.0.0.1", Status: StatusOffline}
	require.NoError(t, s.Create(ctx, rec))

	require.NoError(t, s.UpdateStatus(ctx, rec.ID, StatusDegraded))
	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, got.Status)

	require.ErrorIs(t, s.UpdateStatus(ctx, "missing", StatusOnline), ErrNotFound)
}

func TestSQLiteStoreDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &ServerRecord{Type: TypeManager, Host: "127.0.0.1"}
	require.NoError(t, s.Create(ctx, rec))

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, err := s.Get(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Delete(ctx, rec.ID), ErrNotFound)
}

func TestSQLiteStoreDefaultStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &ServerRecord{Type: TypeAI, Host: "127.0.0.1"}
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, got.Status)
}

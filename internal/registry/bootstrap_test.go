// ABOUTME: Tests for the local topology bootstrap.
// ABOUTME: Verifies seeding happens once and only when no ai records exist.

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBootstrapSeedsEmbeddedAI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boot := NewLocalBootstrap(s, "fake-agent", []string{"-model", "m1"}, "m1", testLogger())
	require.NoError(t, boot.Ensure(ctx))

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, TypeAI, rec.Type)
	assert.Equal(t, StatusOnline, rec.Status)
	assert.Equal(t, TransportEmbedded, rec.Metadata.Transport)
	assert.Equal(t, "fake-agent", rec.Metadata.Command)
	assert.Equal(t, []string{"-model", "m1"}, rec.Metadata.Args)
	assert.True(t, rec.Metadata.AutoCreated)
}

func TestLocalBootstrapIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boot := NewLocalBootstrap(s, "fake-agent", nil, "m1", testLogger())
	require.NoError(t, boot.Ensure(ctx))
	require.NoError(t, boot.Ensure(ctx))

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLocalBootstrapSkipsWhenAIExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	existing := &ServerRecord{Type: TypeAI, Host: "10.0.0.5", Port: 9000, Status: StatusOnline}
	require.NoError(t, s.Create(ctx, existing))

	boot := NewLocalBootstrap(s, "fake-agent", nil, "m1", testLogger())
	require.NoError(t, boot.Ensure(ctx))

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1, "an existing ai record suppresses seeding")
}

func TestLocalBootstrapIgnoresNonAIRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &ServerRecord{Type: TypeManager, Host: "10.0.0.1"}))
	require.NoError(t, s.Create(ctx, &ServerRecord{Type: TypeWorker, Host: "10.0.0.2"}))

	boot := NewLocalBootstrap(s, "fake-agent", nil, "m1", testLogger())
	require.NoError(t, boot.Ensure(ctx))

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3, "managers and workers alone still require a seeded ai")
}

// ABOUTME: Topology bootstrap that guarantees a minimal local setup exists.
// ABOUTME: Seeds an embedded ai record when the registry has no ai servers.

package registry

import (
	"context"
	"fmt"
	"log/slog"
)

// Bootstrap ensures a usable topology exists before chain resolution.
type Bootstrap interface {
	Ensure(ctx context.Context) error
}

// NopBootstrap performs no topology setup.
type NopBootstrap struct{}

func (NopBootstrap) Ensure(context.Context) error { return nil }

// LocalBootstrap seeds the registry with a single embedded ai server when
// no ai records exist, so a fresh installation can resolve a chain without
// any manual registration.
type LocalBootstrap struct {
	store   Store
	command string
	args    []string
	model   string
	logger  *slog.Logger
}

// NewLocalBootstrap creates a bootstrap that spawns the given agent command
// for the seeded embedded record.
func NewLocalBootstrap(store Store, command string, args []string, model string, logger *slog.Logger) *LocalBootstrap {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBootstrap{
		store:   store,
		command: command,
		args:    args,
		model:   model,
		logger:  logger.With("component", "bootstrap"),
	}
}

// Ensure creates the embedded ai record if the registry holds none.
func (b *LocalBootstrap) Ensure(ctx context.Context) error {
	records, err := b.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing servers: %w", err)
	}
	for _, rec := range records {
		if rec.Type == TypeAI {
			return nil
		}
	}

	rec := &ServerRecord{
		Type:   TypeAI,
		Host:   "127.0.0.1",
		Port:   0,
		Status: StatusOnline,
		Metadata: Metadata{
			Model:       b.model,
			Transport:   TransportEmbedded,
			Command:     b.command,
			Args:        b.args,
			AutoCreated: true,
		},
	}
	if err := b.store.Create(ctx, rec); err != nil {
		return fmt.Errorf("seeding embedded ai server: %w", err)
	}

	b.logger.Info("seeded embedded ai server", "server_id", rec.ID, "command", b.command)
	return nil
}

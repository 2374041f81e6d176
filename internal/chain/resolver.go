// ABOUTME: Chain resolver that picks a manager/worker/ai triple from the server registry.
// ABOUTME: The ai endpoint is mandatory; manager and worker are optional relay hops.

package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/candlewick/switchboard/internal/registry"
)

// ErrNoAIServers indicates the registry holds no ai-type records.
var ErrNoAIServers = errors.New("no ai servers registered")

// Selection is the manager/worker/ai triple chosen to service one request.
// AI is always present in a successful resolution; Manager and Worker may
// be nil. Selections are computed per request and never persisted.
type Selection struct {
	Manager *registry.ServerRecord
	Worker  *registry.ServerRecord
	AI      *registry.ServerRecord
}

// Resolver translates the flat server-record listing into a Selection.
type Resolver struct {
	servers   registry.Lister
	bootstrap registry.Bootstrap
	logger    *slog.Logger
}

// NewResolver creates a resolver over the given registry view. bootstrap
// may be nil to skip topology setup.
func NewResolver(servers registry.Lister, bootstrap registry.Bootstrap, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		servers:   servers,
		bootstrap: bootstrap,
		logger:    logger.With("component", "chain-resolver"),
	}
}

// Resolve ensures a minimal topology exists, then selects the chain:
// ai first (online preferred, then auto-created, then listing order),
// worker from the ai's metadata reference or the first worker, manager
// from the worker's metadata reference or the first manager.
func (r *Resolver) Resolve(ctx context.Context) (*Selection, error) {
	if r.bootstrap != nil {
		if err := r.bootstrap.Ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensuring local topology: %w", err)
		}
	}

	records, err := r.servers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}

	ai := pickAI(records)
	if ai == nil {
		return nil, ErrNoAIServers
	}

	worker := pickReferenced(records, registry.TypeWorker, ai.Metadata.WorkerID)
	var manager *registry.ServerRecord
	if worker != nil {
		manager = pickReferenced(records, registry.TypeManager, worker.Metadata.ManagerID)
	} else {
		manager = pickReferenced(records, registry.TypeManager, "")
	}

	sel := &Selection{Manager: manager, Worker: worker, AI: ai}
	r.logger.Debug("chain resolved",
		"ai_id", ai.ID,
		"worker_id", idOrNone(worker),
		"manager_id", idOrNone(manager),
	)
	return sel, nil
}

// pickAI selects the ai record: online first, then auto-created, then the
// first in listing order. The listing is newest-first, so ties are
// deterministic.
func pickAI(records []*registry.ServerRecord) *registry.ServerRecord {
	var autoCreated, first *registry.ServerRecord
	for _, rec := range records {
		if rec.Type != registry.TypeAI {
			continue
		}
		if rec.Status == registry.StatusOnline {
			return rec
		}
		if autoCreated == nil && rec.Metadata.AutoCreated {
			autoCreated = rec
		}
		if first == nil {
			first = rec
		}
	}
	if autoCreated != nil {
		return autoCreated
	}
	return first
}

// pickReferenced returns the record of the given type with the referenced
// id, falling back to the first record of that type when the reference is
// empty or dangling.
func pickReferenced(records []*registry.ServerRecord, typ registry.ServerType, refID string) *registry.ServerRecord {
	var first *registry.ServerRecord
	for _, rec := range records {
		if rec.Type != typ {
			continue
		}
		if refID != "" && rec.ID == refID {
			return rec
		}
		if first == nil {
			first = rec
		}
	}
	return first
}

func idOrNone(rec *registry.ServerRecord) string {
	if rec == nil {
		return "none"
	}
	return rec.ID
}

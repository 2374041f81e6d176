// ABOUTME: Server record model and listing interfaces for backend endpoints.
// ABOUTME: Records are owned and mutated externally; the core only reads them.

package registry

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"
)

// ErrNotFound is returned when a requested server record does not exist.
var ErrNotFound = errors.New("server record not found")

// ServerType identifies the role a registered server plays in a chain.
type ServerType string

const (
	TypeManager ServerType = "manager"
	TypeWorker  ServerType = "worker"
	TypeAI      ServerType = "ai"
)

// Status reflects the last known health of a server record.
type Status string

const (
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusDegraded Status = "degraded"
)

// Transport modes an ai record may declare in its metadata.
const (
	TransportEmbedded = "embedded" // spawn the agent as a subprocess, speak over stdio
	TransportTCP      = "tcp"      // connect to an independently running agent
)

// Metadata carries optional cross-references and connection hints.
// WorkerID/ManagerID link an ai record to its preferred worker and a
// worker record to its preferred manager.
type Metadata struct {
	WorkerID    string   `json:"worker_id,omitempty"`
	ManagerID   string   `json:"manager_id,omitempty"`
	Model       string   `json:"model,omitempty"`
	Transport   string   `json:"transport,omitempty"`
	Command     string   `json:"command,omitempty"` // embedded transport: agent binary
	Args        []string `json:"args,omitempty"`    // embedded transport: binary arguments
	AutoCreated bool     `json:"auto_created,omitempty"`
}

// ServerRecord describes one registered backend endpoint.
type ServerRecord struct {
	ID        string
	Type      ServerType
	Host      string
	Port      int
	Status    Status
	Metadata  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Addr returns the host:port dial address for the record.
func (r *ServerRecord) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Lister is the read-only view of the registry the core consumes.
// List returns records newest-first.
type Lister interface {
	List(ctx context.Context) ([]*ServerRecord, error)
}

// Store is the full record store used by the external owner and by tests.
type Store interface {
	Lister
	Get(ctx context.Context, id string) (*ServerRecord, error)
	Create(ctx context.Context, rec *ServerRecord) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
	Close() error
}

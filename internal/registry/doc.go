// Package registry holds the server records that chain resolution reads.
//
// # Ownership
//
// Records are created and mutated by external tooling; the core consumes
// them through the read-only Lister, whose List is newest-first. The full
// Store (SQLite-backed, WAL mode, schema created on open) exists for that
// tooling and for tests.
//
// # Bootstrap
//
// LocalBootstrap seeds a single auto-created embedded ai record into an
// empty registry, so a fresh installation resolves a chain without manual
// registration. NopBootstrap skips the step.
package registry

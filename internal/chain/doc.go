// Package chain selects the manager/worker/ai triple that services one
// request.
//
// # Selection
//
// Resolve consults the registry's newest-first listing after giving the
// bootstrap a chance to seed a minimal topology. The ai endpoint is
// mandatory: online records win, then auto-created ones, then listing
// order. The worker follows the ai record's metadata reference and the
// manager follows the worker's; a missing or dangling reference falls back
// to the first record of that type, and either hop may be absent entirely.
//
// A Selection is computed per request and never persisted. Callers hand it
// to bridge.Open, which decides between the manager relay and a direct
// connection.
package chain

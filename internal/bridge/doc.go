// Package bridge connects a caller to one resolved ai endpoint.
//
// # Two tiers
//
// When the chain includes a manager, Open first tries the manager-proxy
// bridge: dial the relay endpoint and write an attach frame carrying the
// worker/ai routing hints. Readiness is that first successful open. Any
// failure before readiness stays internal: Open falls back to the direct
// bridge exactly once and the caller never sees the proxy error. A direct
// failure propagates; there is no third attempt.
//
// The direct bridge owns a protocol.Client to the ai endpoint, spawning an
// embedded subprocess or dialing TCP per the record's metadata, and runs
// the full init handshake before reporting ready.
//
// # After readiness
//
// Once a bridge is ready, transport loss is reported as a synthesized
// error-kind message on the normal forwarding path; it never retroactively
// fails creation. Bridges are shut down only by the session multiplexer.
package bridge

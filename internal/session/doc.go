// Package session maps logical session ids onto live bridges.
//
// At most one bridge exists per session id. The first Acquire opens it;
// further Acquires for the same id share it, each registering its own
// forwarder and incrementing a reference count. Two callers racing to
// create the same session are collapsed into one bridge: the loser waits
// for the winner's in-flight creation to settle.
//
// Inbound messages are broadcast to every attached forwarder in attachment
// order. Release detaches one connection; the bridge is shut down when the
// count reaches zero. Lifecycle transitions are recorded through an audit
// sink, fire and forget.
package session

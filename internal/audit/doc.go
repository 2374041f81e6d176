// Package audit records session and bridge lifecycle events.
//
// Record never blocks and never fails the caller: sinks swallow and log
// their own errors. JSONLSink appends one JSON object per line, SQLiteSink
// stores events in an audit_events table, NopSink discards, and Fanout
// forwards to several sinks in order. Ids and timestamps are stamped at
// record time when absent.
package audit

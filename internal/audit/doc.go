// Package audit relays session lifecycle events (login, logout, forced
// logout, restore, order submission) to a pluggable sink.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, log, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with timestamp, type, user, role, outcome and metadata.
//
// The dispatcher never decides which events exist; the session store does.
package audit

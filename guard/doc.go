// Package guard decides whether a navigation target is reachable for the
// current session.
//
// A single [Policy] owns both the route table (which roles may open which
// page templates) and the role home table used for landing redirects, so
// the two cannot drift apart. [NewPolicy] rejects a table in which a role's
// home page is not reachable by that role.
//
// # Decisions
//
// Every check yields a [Decision]: allow, suspend while the session is
// still loading, or redirect. Redirects to the login route carry the
// originally requested location in [Decision.From].
//
// # Architecture boundaries
//
// This package knows nothing about how a session is stored. Callers pass a
// [Viewer]; the root package's SessionStore satisfies it, and
// [TokenResolver] builds one from a bearer token for HTTP use.
package guard

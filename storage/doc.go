// Package storage provides the durable client storage that backs the session
// store: the raw bearer token and the serialized decoded identity live here
// between process runs.
//
// # Backends
//
//   - [MemoryStorage]: process-local map, the default for tests and servers
//     that rebuild sessions per request.
//   - [RedisStorage]: shared storage keyed by a per-profile prefix.
//   - [FileStorage]: one file per key on an afero filesystem; what the CLI
//     uses so a login survives restarts.
//
// # What this package must NOT do
//
//   - Interpret token contents or decide whether a session is valid.
//   - Import the root package, api, or guard.
package storage

// Package api is the HTTP client for the dealer REST API (`/api/v1`).
//
// Authorization is propagated by a request interceptor that asks a
// [TokenSource] for the current bearer at request time, so logging out
// affects the next request without mutating any shared header. Response
// interceptors observe every response before it is decoded; the session
// store installs one that turns a 401 into a forced logout.
//
// Requests are single-shot: nothing here retries.
package api

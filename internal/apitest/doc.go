// Package apitest runs an in-process fake of the dealer REST API.
//
// The fake keeps users, dealers, products and purchase orders in memory,
// hashes passwords with Argon2id and issues HS256 access tokens whose
// claims match the real backend (sub, role, exp, iat) plus email. Error
// bodies use the FastAPI {"detail": ...} shape with the backend's wording,
// so client code sees the same failures it would in production.
//
// Every route is mounted under /api/v1. Use [Server.URL] as the client
// base URL.
package apitest

// Package jwt decodes dealer API access tokens into identity claims
// (sub, email, role, exp, iat) and, for local fakes, issues them.
//
// Decoding is the only source of user identity on the client: there is no
// profile round trip after login.
package jwt

package api

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestInterceptor may modify an outgoing request. Returning an error
// aborts the request.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor observes every response before its body is decoded.
// It must not consume the body.
type ResponseInterceptor func(resp *http.Response)

// TokenSource supplies the bearer token for the next request. An empty
// string means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

// BearerAuth sets "Authorization: Bearer <token>" from src on each request.
// Requests that already carry an Authorization header are left alone.
func BearerAuth(src TokenSource) RequestInterceptor {
	return func(req *http.Request) error {
		if src == nil || req.Header.Get("Authorization") != "" {
			return nil
		}
		if token := src.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return nil
	}
}

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestID stamps each request with a random UUID unless one is present.
func RequestID() RequestInterceptor {
	return func(req *http.Request) error {
		if req.Header.Get(RequestIDHeader) == "" {
			req.Header.Set(RequestIDHeader, uuid.NewString())
		}
		return nil
	}
}

// OnUnauthorized calls fn for every 401 response.
func OnUnauthorized(fn func(resp *http.Response)) ResponseInterceptor {
	return func(resp *http.Response) {
		if fn != nil && resp.StatusCode == http.StatusUnauthorized {
			fn(resp)
		}
	}
}

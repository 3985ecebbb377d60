package storage

import (
	"context"
	"errors"
	"strings"
)

// Keys written by the session store.
const (
	TokenKey = "token"
	UserKey  = "user"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("storage: backend unavailable")
	// ErrInvalidKey is returned for empty keys or keys containing path separators.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Storage is a small string key/value store. Implementations must treat
// Delete of a missing key as success.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

func validKey(key string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}
	return !strings.ContainsAny(key, `/\`) && key != "." && key != ".."
}

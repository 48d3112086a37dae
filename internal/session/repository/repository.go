// Package repository persists session key/value state (token, role, pending email, profile).
package repository

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned when a store is called with an empty key.
var ErrEmptyKey = errors.New("session store: empty key")

// Repository is the persistence adapter behind the session context.
// Get returns ok false for a missing key; err is reserved for backend failures.
type Repository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

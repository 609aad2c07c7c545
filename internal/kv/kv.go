package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("kv: key not found")
	// ErrQuotaExceeded is returned by Set when the backend refuses to grow.
	ErrQuotaExceeded = errors.New("kv: storage quota exceeded")
)

// Store is the persistent key-value storage used for the recovery snapshot
// and locally saved sessions.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

package kv

import (
	"context"
	"errors"
)

// Store is the durable key-value storage the cart persists into.
// Delete is idempotent: removing an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("key not found")

package repository

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("key not found")

// Storage is durable key-value persistence that survives restarts
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Broadcaster is implemented by storages that can notify other processes
// that a key changed
type Broadcaster interface {
	Publish(ctx context.Context, key, payload string) error
	Subscribe(ctx context.Context, key string) (<-chan string, error)
}

// IsNotFound checks if an error is a missing key
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

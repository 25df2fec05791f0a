// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/hrchat/internal/domain"
)

// ErrUserExists is returned by CreateUser when the username is taken.
var ErrUserExists = errors.New("user already exists")

// KV is a flat key-value space of JSON blobs.
type KV interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Users persists identity-service accounts.
type Users interface {
	// GetUser retrieves a user by username. Returns nil, nil when absent.
	GetUser(ctx context.Context, username string) (*domain.User, error)

	// CreateUser inserts a new user, failing with ErrUserExists on duplicates.
	CreateUser(ctx context.Context, user *domain.User) error
}

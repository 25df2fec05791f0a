package store

import (
	"context"
	"sync"

	"github.com/ashureev/hrchat/internal/domain"
)

// Memory is an in-process store, used for tests and ephemeral runs.
type Memory struct {
	mu    sync.RWMutex
	kv    map[string][]byte
	users map[string]domain.User
}

var (
	_ KV    = (*Memory)(nil)
	_ Users = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kv:    make(map[string][]byte),
		users: make(map[string]domain.User),
	}
}

// Get returns a copy of the value under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = append([]byte(nil), value...)
	return nil
}

// Remove deletes key.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }
func (m *Memory) Close() error                 { return nil }

// GetUser retrieves a user by username.
func (m *Memory) GetUser(_ context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// CreateUser inserts a new user.
func (m *Memory) CreateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Username]; exists {
		return ErrUserExists
	}
	m.users[user.Username] = *user
	return nil
}

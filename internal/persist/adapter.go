// Package persist stores per-identity chat collections on top of a key-value store.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ashureev/hrchat/internal/domain"
	"github.com/ashureev/hrchat/internal/store"
)

const collectionKeyPrefix = "chatHistory_"

// CollectionKey derives the storage key for an identity's sessions.
func CollectionKey(identity string) string {
	return collectionKeyPrefix + identity
}

// Adapter serializes session collections into a store.KV.
type Adapter struct {
	kv     store.KV
	logger *slog.Logger
}

// NewAdapter creates an adapter over kv.
func NewAdapter(kv store.KV, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{kv: kv, logger: logger}
}

// Save stores the full collection under the identity's key.
func (a *Adapter) Save(ctx context.Context, identity string, c domain.Collection) error {
	if c == nil {
		c = domain.Collection{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	if err := a.kv.Set(ctx, CollectionKey(identity), data); err != nil {
		return fmt.Errorf("save collection for %s: %w", identity, err)
	}
	return nil
}

// Load returns the identity's saved collection. Missing, unreadable, or corrupt
// data yields an empty collection.
func (a *Adapter) Load(ctx context.Context, identity string) domain.Collection {
	data, ok, err := a.kv.Get(ctx, CollectionKey(identity))
	if err != nil {
		a.logger.Warn("failed to read saved sessions, starting empty", "user", identity, "error", err)
		return domain.Collection{}
	}
	if !ok {
		return domain.Collection{}
	}

	var c domain.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		a.logger.Warn("discarding corrupt saved sessions", "user", identity, "error", err)
		return domain.Collection{}
	}
	if c == nil {
		c = domain.Collection{}
	}
	return c
}

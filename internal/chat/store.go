// Package chat implements the client-side chat session state machine: the
// per-identity session store, the question submission pipeline, and search.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ashureev/hrchat/internal/domain"
)

// Loader reads an identity's persisted sessions.
type Loader interface {
	Load(ctx context.Context, identity string) domain.Collection
}

// SnapshotWriter persists full-collection snapshots asynchronously.
type SnapshotWriter interface {
	Enqueue(identity string, c domain.Collection)
	Flush(ctx context.Context) error
}

// View is an immutable copy of the store state.
type View struct {
	Identity string
	Sessions domain.Collection
	Active   int
	ActiveID domain.SessionID
}

// Store owns the session collection of the current identity and the active
// pointer. All mutations run to completion under a single lock.
type Store struct {
	loader Loader
	writer SnapshotWriter
	logger *slog.Logger

	mu       sync.Mutex
	identity string
	sessions domain.Collection
	active   int

	listenersMu sync.RWMutex
	listeners   map[int]func(View)
	nextID      int
}

// NewStore creates an empty store with no identity.
func NewStore(loader Loader, writer SnapshotWriter, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		loader:    loader,
		writer:    writer,
		logger:    logger,
		sessions:  domain.Collection{},
		active:    domain.NoSelection,
		listeners: make(map[int]func(View)),
	}
}

// Subscribe registers fn to receive a view after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(View)) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Identity returns the identity whose sessions are loaded, or "".
func (s *Store) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// ActiveID returns the stable identity of the active session, or "".
func (s *Store) ActiveID() domain.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == domain.NoSelection {
		return ""
	}
	return s.sessions[s.active].ID
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// IndexOf resolves a stable session identity to its current position.
func (s *Store) IndexOf(id domain.SessionID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOfLocked(id)
}

// LoadForIdentity swaps in the persisted sessions for identity and clears the
// selection. Pending writes for the previous identity are flushed first.
// Mutations wait for the whole flush-load-swap, so nothing appended meanwhile
// is missed by the load and then overwritten.
func (s *Store) LoadForIdentity(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: empty identity", domain.ErrValidation)
	}

	s.mu.Lock()
	if err := s.writer.Flush(ctx); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("flush previous sessions: %w", err)
	}
	loaded := s.loader.Load(ctx, identity)

	s.identity = identity
	s.sessions = loaded
	s.active = domain.NoSelection
	v := s.viewLocked()
	s.mu.Unlock()

	s.logger.Info("sessions loaded", "user", identity, "sessions", len(loaded))
	s.notify(v)
	return nil
}

// Clear flushes pending writes and drops the in-memory sessions. Stored data is kept.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.writer.Flush(ctx); err != nil {
		return fmt.Errorf("flush sessions: %w", err)
	}

	s.mu.Lock()
	s.identity = ""
	s.sessions = domain.Collection{}
	s.active = domain.NoSelection
	v := s.viewLocked()
	s.mu.Unlock()

	s.notify(v)
	return nil
}

// CreateSession inserts an empty session at position 0 and selects it.
func (s *Store) CreateSession() (int, error) {
	return s.mutate(func() (int, error) {
		if s.identity == "" {
			return 0, domain.ErrAuthRequired
		}
		s.insertFrontLocked(domain.NewSession())
		return 0, nil
	})
}

// SelectSession points the active pointer at index.
func (s *Store) SelectSession(index int) error {
	_, err := s.mutate(func() (int, error) {
		if err := s.checkSessionLocked(index); err != nil {
			return 0, err
		}
		s.active = index
		return index, nil
	})
	return err
}

// SelectByID selects the session with the given stable identity.
func (s *Store) SelectByID(id domain.SessionID) (int, error) {
	return s.mutate(func() (int, error) {
		i, err := s.indexOfLocked(id)
		if err != nil {
			return 0, err
		}
		s.active = i
		return i, nil
	})
}

// DeleteSession removes the session at index and adjusts the active pointer.
func (s *Store) DeleteSession(index int) error {
	_, err := s.mutate(func() (int, error) {
		if err := s.checkSessionLocked(index); err != nil {
			return 0, err
		}
		s.deleteLocked(index)
		return index, nil
	})
	return err
}

// DeleteByID removes the session with the given stable identity.
func (s *Store) DeleteByID(id domain.SessionID) error {
	_, err := s.mutate(func() (int, error) {
		i, err := s.indexOfLocked(id)
		if err != nil {
			return 0, err
		}
		s.deleteLocked(i)
		return i, nil
	})
	return err
}

// AppendEntry appends e to the active session, creating and selecting a new
// session first when none is selected. It returns the session index.
func (s *Store) AppendEntry(e domain.Entry) (int, error) {
	return s.mutate(func() (int, error) {
		if s.identity == "" {
			return 0, domain.ErrAuthRequired
		}
		return s.appendLocked(s.active, e), nil
	})
}

// AppendFor appends e to the session id owned by identity. When id is empty or no
// longer exists, a new session is created at position 0 and selected. It fails with
// ErrAuthRequired when identity is no longer the loaded one, so an answer that
// arrives after logout never lands in another identity's sessions.
func (s *Store) AppendFor(identity string, id domain.SessionID, e domain.Entry) (int, error) {
	return s.mutate(func() (int, error) {
		if s.identity == "" || s.identity != identity {
			return 0, domain.ErrAuthRequired
		}
		target := domain.NoSelection
		if id != "" {
			target = s.sessions.IndexOf(id)
		}
		return s.appendLocked(target, e), nil
	})
}

// RateEntry sets the rating of one entry.
func (s *Store) RateEntry(sessionIndex, entryIndex, rating int) error {
	_, err := s.mutate(func() (int, error) {
		return sessionIndex, s.rateLocked(sessionIndex, entryIndex, rating)
	})
	return err
}

// RateByID sets the rating of one entry in the session with the given identity.
func (s *Store) RateByID(id domain.SessionID, entryIndex, rating int) error {
	_, err := s.mutate(func() (int, error) {
		if !domain.ValidRating(rating) {
			return 0, fmt.Errorf("%w: %d", domain.ErrInvalidRating, rating)
		}
		i, err := s.indexOfLocked(id)
		if err != nil {
			return 0, err
		}
		return i, s.rateLocked(i, entryIndex, rating)
	})
	return err
}

// mutate runs fn under the lock. On success the new state is enqueued for
// persistence (still under the lock, so snapshots are enqueued in mutation order)
// and broadcast to subscribers.
func (s *Store) mutate(fn func() (int, error)) (int, error) {
	s.mu.Lock()
	idx, err := fn()
	if err != nil {
		s.mu.Unlock()
		return idx, err
	}
	if s.identity != "" {
		s.writer.Enqueue(s.identity, s.sessions.Clone())
	}
	v := s.viewLocked()
	s.mu.Unlock()

	s.notify(v)
	return idx, nil
}

func (s *Store) notify(v View) {
	s.listenersMu.RLock()
	fns := make([]func(View), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (s *Store) viewLocked() View {
	v := View{
		Identity: s.identity,
		Sessions: s.sessions.Clone(),
		Active:   s.active,
	}
	if s.active != domain.NoSelection {
		v.ActiveID = s.sessions[s.active].ID
	}
	return v
}

func (s *Store) checkSessionLocked(index int) error {
	if index < 0 || index >= len(s.sessions) {
		return fmt.Errorf("%w: session %d of %d", domain.ErrOutOfRange, index, len(s.sessions))
	}
	return nil
}

func (s *Store) indexOfLocked(id domain.SessionID) (int, error) {
	i := s.sessions.IndexOf(id)
	if i < 0 {
		return 0, fmt.Errorf("%w: session %s", domain.ErrOutOfRange, id)
	}
	return i, nil
}

func (s *Store) insertFrontLocked(sess domain.Session) {
	s.sessions = append(domain.Collection{sess}, s.sessions...)
	s.active = 0
}

func (s *Store) deleteLocked(index int) {
	s.sessions = append(s.sessions[:index:index], s.sessions[index+1:]...)
	switch {
	case s.active == index:
		s.active = domain.NoSelection
	case index < s.active:
		s.active--
	}
}

func (s *Store) appendLocked(target int, e domain.Entry) int {
	if target == domain.NoSelection {
		s.insertFrontLocked(domain.NewSession())
		target = 0
	}
	s.sessions[target].Entries = append(s.sessions[target].Entries, e.Clone())
	return target
}

func (s *Store) rateLocked(sessionIndex, entryIndex, rating int) error {
	if !domain.ValidRating(rating) {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRating, rating)
	}
	if err := s.checkSessionLocked(sessionIndex); err != nil {
		return err
	}
	entries := s.sessions[sessionIndex].Entries
	if entryIndex < 0 || entryIndex >= len(entries) {
		return fmt.Errorf("%w: entry %d of %d", domain.ErrOutOfRange, entryIndex, len(entries))
	}
	entries[entryIndex].Rating = rating
	return nil
}

// Package app wires the chat core into one root state object for the
// presentation layer.
package app

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ashureev/hrchat/internal/chat"
	"github.com/ashureev/hrchat/internal/domain"
	"github.com/ashureev/hrchat/internal/identity"
	"github.com/ashureev/hrchat/internal/persist"
	"github.com/ashureev/hrchat/internal/store"
)

// Preference keys.
const (
	DarkModeKey  = "hr_dark"
	CollapsedKey = "hr_collapsed"
)

// Deps are the collaborators an App is built from.
type Deps struct {
	KV           store.KV
	Identity     identity.Service
	Answers      chat.Answerer
	Sink         chat.EventSink // optional
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Preferences are per-device display settings.
type Preferences struct {
	Dark      bool `json:"dark"`
	Collapsed bool `json:"collapsed"`
}

// App is the root application state.
type App struct {
	kv     store.KV
	writer *persist.Writer
	logger *slog.Logger

	Gate     *identity.Gate
	Store    *chat.Store
	Pipeline *chat.Pipeline

	mu        sync.RWMutex
	listeners map[int]func()
	nextID    int
}

// New builds the application. Close must be called to flush pending writes.
func New(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	adapter := persist.NewAdapter(d.KV, logger)
	writer := persist.NewWriter(adapter, d.WriteTimeout, logger)

	a := &App{
		kv:        d.KV,
		writer:    writer,
		logger:    logger,
		listeners: make(map[int]func()),
	}
	a.Store = chat.NewStore(adapter, writer, logger)
	a.Pipeline = chat.NewPipeline(a.Store, d.Answers, d.Sink, logger,
		chat.WithStateListener(func(chat.State) { a.changed() }))
	a.Gate = identity.NewGate(d.Identity, a.Store, d.KV, logger)

	a.Store.Subscribe(func(chat.View) { a.changed() })
	return a
}

// Start restores the remembered identity, if any.
func (a *App) Start(ctx context.Context) error {
	who, err := a.Gate.Restore(ctx)
	if err != nil {
		return err
	}
	if who != "" {
		a.changed()
	}
	return nil
}

// Close flushes pending snapshot writes and stops the writer.
func (a *App) Close() error {
	return a.writer.Close()
}

// Subscribe registers fn to be called after any state change. The returned
// function removes the subscription.
func (a *App) Subscribe(fn func()) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *App) changed() {
	a.mu.RLock()
	fns := make([]func(), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Login authenticates and loads the identity's sessions.
func (a *App) Login(ctx context.Context, username, password string) error {
	return a.Gate.Login(ctx, username, password)
}

// Signup registers a new account.
func (a *App) Signup(ctx context.Context, username, password, confirm string) error {
	return a.Gate.Signup(ctx, username, password, confirm)
}

// Logout clears the identity and its in-memory sessions.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Gate.Logout(ctx); err != nil {
		return err
	}
	a.Pipeline.SetDraft("")
	a.changed()
	return nil
}

// Preferences returns the stored display settings.
func (a *App) Preferences(ctx context.Context) Preferences {
	return Preferences{
		Dark:      a.boolPref(ctx, DarkModeKey),
		Collapsed: a.boolPref(ctx, CollapsedKey),
	}
}

// SetPreferences stores the display settings.
func (a *App) SetPreferences(ctx context.Context, p Preferences) error {
	if err := a.kv.Set(ctx, DarkModeKey, []byte(strconv.FormatBool(p.Dark))); err != nil {
		return err
	}
	if err := a.kv.Set(ctx, CollapsedKey, []byte(strconv.FormatBool(p.Collapsed))); err != nil {
		return err
	}
	a.changed()
	return nil
}

func (a *App) boolPref(ctx context.Context, key string) bool {
	raw, ok, err := a.kv.Get(ctx, key)
	if err != nil {
		a.logger.Warn("failed to read preference", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	v, err := strconv.ParseBool(string(raw))
	return err == nil && v
}

// SessionView is one sidebar row.
type SessionView struct {
	ID      domain.SessionID `json:"id"`
	Index   int              `json:"index"`
	Title   string           `json:"title"`
	Entries []domain.Entry   `json:"entries"`
	Active  bool             `json:"active"`
}

// View is the full presentation state.
type View struct {
	Identity    string           `json:"identity"`
	State       chat.State       `json:"state"`
	Draft       string           `json:"draft"`
	Query       string           `json:"query"`
	Active      int              `json:"active"`
	ActiveID    domain.SessionID `json:"active_id,omitempty"`
	Sessions    []SessionView    `json:"sessions"`
	Preferences Preferences      `json:"preferences"`
}

// View returns the current state with sessions filtered by query.
func (a *App) View(ctx context.Context, query string) View {
	snap := a.Store.Snapshot()
	matches := chat.Filter(snap.Sessions, query)

	rows := make([]SessionView, 0, len(matches))
	for _, m := range matches {
		entries := m.Session.Entries
		if entries == nil {
			entries = []domain.Entry{}
		}
		rows = append(rows, SessionView{
			ID:      m.Session.ID,
			Index:   m.Index,
			Title:   title(m.Index, m.Session),
			Entries: entries,
			Active:  m.Index == snap.Active,
		})
	}

	return View{
		Identity:    snap.Identity,
		State:       a.Pipeline.State(),
		Draft:       a.Pipeline.Draft(),
		Query:       query,
		Active:      snap.Active,
		ActiveID:    snap.ActiveID,
		Sessions:    rows,
		Preferences: a.Preferences(ctx),
	}
}

const titleMaxRunes = 20

// title is the start of the session's first question, or "Chat N" for a
// session without entries.
func title(index int, s domain.Session) string {
	if len(s.Entries) == 0 || s.Entries[0].Question == "" {
		return "Chat " + strconv.Itoa(index+1)
	}
	r := []rune(s.Entries[0].Question)
	if len(r) > titleMaxRunes {
		r = r[:titleMaxRunes]
	}
	return string(r)
}

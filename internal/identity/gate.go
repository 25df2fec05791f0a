package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/hrchat/internal/domain"
	"github.com/ashureev/hrchat/internal/store"
)

// RememberedUserKey is the preference key holding the last signed-in identity.
const RememberedUserKey = "hr_user"

// Sessions is the session store the gate drives on identity changes. It owns
// the current identity.
type Sessions interface {
	Identity() string
	LoadForIdentity(ctx context.Context, identity string) error
	Clear(ctx context.Context) error
}

// Gate holds the current identity and mediates calls to the identity service.
type Gate struct {
	service  Service
	sessions Sessions
	prefs    store.KV
	logger   *slog.Logger

	opMu sync.Mutex // serializes login/logout so session swaps never interleave
}

// NewGate creates a gate with no identity. prefs may be nil, in which case the
// identity is not remembered across restarts.
func NewGate(service Service, sessions Sessions, prefs store.KV, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{service: service, sessions: sessions, prefs: prefs, logger: logger}
}

// Identity returns the current identity, or "".
func (g *Gate) Identity() string {
	return g.sessions.Identity()
}

// Login authenticates and, on success, switches to username's sessions.
// On failure the current identity is left untouched.
func (g *Gate) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("%w: username and password required", domain.ErrValidation)
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	if err := g.service.Authenticate(ctx, username, password); err != nil {
		g.logger.Info("login rejected", "user", username, "error", err)
		return err
	}
	if err := g.switchTo(ctx, username); err != nil {
		return err
	}
	g.remember(ctx, username)
	g.logger.Info("login succeeded", "user", username)
	return nil
}

// Signup registers a new account. A password/confirm mismatch fails locally
// without contacting the service. Signup does not sign the user in.
func (g *Gate) Signup(ctx context.Context, username, password, confirm string) error {
	if password != confirm {
		return domain.ErrMismatch
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return fmt.Errorf("%w: username and password required", domain.ErrValidation)
	}
	if !domain.ValidUsername(username) {
		return &ReasonError{Kind: domain.ErrValidation, Reason: "Invalid username"}
	}

	if err := g.service.Register(ctx, username, password); err != nil {
		g.logger.Info("signup rejected", "user", username, "error", err)
		return err
	}
	g.logger.Info("signup succeeded", "user", username)
	return nil
}

// Logout clears the identity and evicts its sessions from memory.
func (g *Gate) Logout(ctx context.Context) error {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	prev := g.Identity()
	if err := g.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}

	g.forget(ctx)
	if prev != "" {
		g.logger.Info("logged out", "user", prev)
	}
	return nil
}

// Restore re-establishes the remembered identity, if any, without contacting
// the identity service. It returns the restored identity or "".
func (g *Gate) Restore(ctx context.Context) (string, error) {
	if g.prefs == nil {
		return "", nil
	}
	raw, ok, err := g.prefs.Get(ctx, RememberedUserKey)
	if err != nil || !ok {
		if err != nil {
			g.logger.Warn("failed to read remembered user", "error", err)
		}
		return "", nil
	}
	username := string(raw)
	if !domain.ValidUsername(username) {
		return "", nil
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()
	if err := g.switchTo(ctx, username); err != nil {
		return "", err
	}
	g.logger.Info("restored remembered user", "user", username)
	return username, nil
}

func (g *Gate) switchTo(ctx context.Context, username string) error {
	if err := g.sessions.LoadForIdentity(ctx, username); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	return nil
}

func (g *Gate) remember(ctx context.Context, username string) {
	if g.prefs == nil {
		return
	}
	if err := g.prefs.Set(ctx, RememberedUserKey, []byte(username)); err != nil {
		g.logger.Warn("failed to remember user", "user", username, "error", err)
	}
}

func (g *Gate) forget(ctx context.Context) {
	if g.prefs == nil {
		return
	}
	if err := g.prefs.Remove(ctx, RememberedUserKey); err != nil {
		g.logger.Warn("failed to forget user", "error", err)
	}
}

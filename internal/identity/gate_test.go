package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/hrchat/internal/domain"
	"github.com/ashureev/hrchat/internal/store"
)

type fakeService struct {
	mu       sync.Mutex
	accounts map[string]string
	calls    int
}

func newFakeService() *fakeService {
	return &fakeService{accounts: make(map[string]string)}
}

func (f *fakeService) Authenticate(_ context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	stored, ok := f.accounts[username]
	if !ok {
		return domain.ErrNotFound
	}
	if stored != password {
		return domain.ErrUnauthorized
	}
	return nil
}

func (f *fakeService) Register(_ context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.accounts[username]; ok {
		return domain.ErrConflict
	}
	f.accounts[username] = password
	return nil
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSessions struct {
	current string
	loaded  []string
	cleared int
}

func (f *fakeSessions) Identity() string { return f.current }

func (f *fakeSessions) LoadForIdentity(_ context.Context, identity string) error {
	f.current = identity
	f.loaded = append(f.loaded, identity)
	return nil
}

func (f *fakeSessions) Clear(context.Context) error {
	f.current = ""
	f.cleared++
	return nil
}

func newTestGate(t *testing.T) (*Gate, *fakeService, *fakeSessions, *store.Memory) {
	t.Helper()
	svc := newFakeService()
	sess := &fakeSessions{}
	prefs := store.NewMemory()
	return NewGate(svc, sess, prefs, nil), svc, sess, prefs
}

func TestGate_SignupThenLogin(t *testing.T) {
	g, _, sess, prefs := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, g.Signup(ctx, "alice", "pw", "pw"))
	assert.Equal(t, "", g.Identity(), "signup does not sign in")

	require.NoError(t, g.Login(ctx, "alice", "pw"))
	assert.Equal(t, "alice", g.Identity())
	assert.Equal(t, []string{"alice"}, sess.loaded)

	raw, ok, err := prefs.Get(ctx, RememberedUserKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", string(raw))
}

func TestGate_SignupTwiceConflicts(t *testing.T) {
	g, _, _, _ := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, g.Signup(ctx, "alice", "pw", "pw"))
	err := g.Signup(ctx, "alice", "pw2", "pw2")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestGate_SignupMismatchSkipsService(t *testing.T) {
	g, svc, _, _ := newTestGate(t)

	err := g.Signup(context.Background(), "alice", "a", "b")
	assert.ErrorIs(t, err, domain.ErrMismatch)
	assert.Equal(t, 0, svc.callCount())
}

func TestGate_LocalValidation(t *testing.T) {
	g, svc, _, _ := newTestGate(t)
	ctx := context.Background()

	assert.ErrorIs(t, g.Login(ctx, "", "pw"), domain.ErrValidation)
	assert.ErrorIs(t, g.Login(ctx, "alice", ""), domain.ErrValidation)
	assert.ErrorIs(t, g.Signup(ctx, "  ", "pw", "pw"), domain.ErrValidation)
	assert.ErrorIs(t, g.Signup(ctx, "../etc", "pw", "pw"), domain.ErrValidation)
	assert.Equal(t, 0, svc.callCount())
}

func TestGate_LoginFailureKeepsIdentity(t *testing.T) {
	g, _, sess, _ := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.Signup(ctx, "alice", "pw", "pw"))
	require.NoError(t, g.Login(ctx, "alice", "pw"))

	err := g.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, "alice", g.Identity())

	err = g.Login(ctx, "bob", "pw")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "alice", g.Identity())
	assert.Equal(t, []string{"alice"}, sess.loaded)
}

func TestGate_LogoutAndRestore(t *testing.T) {
	g, svc, sess, prefs := newTestGate(t)
	ctx := context.Background()
	require.NoError(t, g.Signup(ctx, "alice", "pw", "pw"))
	require.NoError(t, g.Login(ctx, "alice", "pw"))

	// A fresh gate over the same preferences picks the identity back up.
	restored := NewGate(svc, &fakeSessions{}, prefs, nil)
	calls := svc.callCount()
	who, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", who)
	assert.Equal(t, "alice", restored.Identity())
	assert.Equal(t, calls, svc.callCount(), "restore does not contact the service")

	require.NoError(t, g.Logout(ctx))
	assert.Equal(t, "", g.Identity())
	assert.Equal(t, 1, sess.cleared)

	who, err = NewGate(svc, &fakeSessions{}, prefs, nil).Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", who)
}

func TestGate_RestoreWithoutPrefs(t *testing.T) {
	g := NewGate(newFakeService(), &fakeSessions{}, nil, nil)
	who, err := g.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", who)
}

func TestGate_IdentityFollowsSessions(t *testing.T) {
	g, _, sess, _ := newTestGate(t)
	require.NoError(t, sess.LoadForIdentity(context.Background(), "carol"))
	assert.Equal(t, "carol", g.Identity())

	require.NoError(t, sess.Clear(context.Background()))
	assert.Equal(t, "", g.Identity())
}

package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/hrchat/internal/domain"
	"github.com/ashureev/hrchat/internal/persist"
	"github.com/ashureev/hrchat/internal/store"
)

type stubIdentity struct{}

func (stubIdentity) Authenticate(_ context.Context, username, password string) error {
	if password != "pw" {
		return domain.ErrUnauthorized
	}
	return nil
}

func (stubIdentity) Register(context.Context, string, string) error { return nil }

type stubAnswers struct{ fail bool }

func (s stubAnswers) Ask(_ context.Context, q string) (domain.Answer, error) {
	if s.fail {
		return domain.Answer{}, errors.New("down")
	}
	return domain.Answer{Text: "A: " + q, Links: []domain.Link{{Title: "Handbook", URL: "http://x/h.pdf"}}}, nil
}

func newTestApp(t *testing.T, kv store.KV) *App {
	t.Helper()
	a := New(Deps{KV: kv, Identity: stubIdentity{}, Answers: stubAnswers{}})
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestApp_AskPersistsAcrossRestart(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	a := New(Deps{KV: kv, Identity: stubIdentity{}, Answers: stubAnswers{}})
	require.NoError(t, a.Login(ctx, "alice", "pw"))
	_, err := a.Pipeline.Submit(ctx, "How many PTO days?")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	raw, ok, err := kv.Get(ctx, persist.CollectionKey("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), "How many PTO days?")

	b := newTestApp(t, kv)
	require.NoError(t, b.Start(ctx))
	v := b.View(ctx, "")
	assert.Equal(t, "alice", v.Identity)
	require.Len(t, v.Sessions, 1)
	assert.Equal(t, "How many PTO days?", v.Sessions[0].Title)
	assert.Equal(t, domain.NoSelection, v.Active)
}

func TestApp_ViewFiltersAndTitles(t *testing.T) {
	a := newTestApp(t, store.NewMemory())
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, "alice", "pw"))

	_, err := a.Pipeline.Submit(ctx, "What is the dental coverage for dependents?")
	require.NoError(t, err)
	_, err = a.Pipeline.NewSession()
	require.NoError(t, err)
	_, err = a.Pipeline.Submit(ctx, "PTO")
	require.NoError(t, err)
	_, err = a.Pipeline.NewSession()
	require.NoError(t, err)

	v := a.View(ctx, "")
	require.Len(t, v.Sessions, 3)
	assert.Equal(t, "Chat 1", v.Sessions[0].Title)
	assert.True(t, v.Sessions[0].Active)
	assert.Equal(t, "PTO", v.Sessions[1].Title)
	assert.Equal(t, "What is the dental c", v.Sessions[2].Title)

	v = a.View(ctx, "DENTAL")
	require.Len(t, v.Sessions, 1)
	assert.Equal(t, 2, v.Sessions[0].Index)
	assert.False(t, v.Sessions[0].Active)
}

func TestApp_LogoutClearsState(t *testing.T) {
	a := newTestApp(t, store.NewMemory())
	ctx := context.Background()
	require.NoError(t, a.Login(ctx, "alice", "pw"))
	a.Pipeline.SetDraft("half typed")

	require.NoError(t, a.Logout(ctx))
	v := a.View(ctx, "")
	assert.Equal(t, "", v.Identity)
	assert.Empty(t, v.Sessions)
	assert.Equal(t, "", v.Draft)

	_, err := a.Pipeline.NewSession()
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestApp_Preferences(t *testing.T) {
	kv := store.NewMemory()
	a := newTestApp(t, kv)
	ctx := context.Background()

	assert.Equal(t, Preferences{}, a.Preferences(ctx))
	require.NoError(t, a.SetPreferences(ctx, Preferences{Dark: true}))
	assert.Equal(t, Preferences{Dark: true}, a.Preferences(ctx))

	raw, ok, err := kv.Get(ctx, DarkModeKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "true", string(raw))
}

func TestApp_SubscribeFiresOnChange(t *testing.T) {
	a := newTestApp(t, store.NewMemory())
	ctx := context.Background()

	var n atomic.Int32
	unsubscribe := a.Subscribe(func() { n.Add(1) })
	require.NoError(t, a.Login(ctx, "alice", "pw"))
	assert.Positive(t, n.Load())

	unsubscribe()
	before := n.Load()
	_, err := a.Pipeline.NewSession()
	require.NoError(t, err)
	assert.Equal(t, before, n.Load())
}

func TestApp_GateAndStoreShareIdentity(t *testing.T) {
	a := newTestApp(t, store.NewMemory())
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, "alice", "pw"))
	assert.Equal(t, "alice", a.Gate.Identity())
	assert.Equal(t, a.Store.Identity(), a.Gate.Identity())

	require.NoError(t, a.Logout(ctx))
	assert.Equal(t, "", a.Gate.Identity())
}

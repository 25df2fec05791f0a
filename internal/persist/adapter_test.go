package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/hrchat/internal/domain"
	"github.com/ashureev/hrchat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCollection() domain.Collection {
	ts := time.Date(2025, 3, 4, 9, 30, 0, 123000000, time.UTC)
	return domain.Collection{
		{ID: domain.NewSessionID(), Entries: []domain.Entry{
			{Question: "How many vacation days?", Answer: "Vacation policy is 20 days.", Rating: 4, Timestamp: ts, Links: []domain.Link{}},
			{Question: "Parental leave?", Answer: "See the handbook.", Timestamp: ts.Add(time.Minute), Links: []domain.Link{
				{Title: "Handbook", URL: "https://hr.example.com/handbook.pdf"},
			}},
		}},
		{ID: domain.NewSessionID()},
		{ID: domain.NewSessionID(), Entries: []domain.Entry{
			{Question: "Payroll date?", Answer: "Error connecting to server.", Timestamp: ts},
		}},
	}
}

func TestAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(store.NewMemory(), nil)

	want := sampleCollection()
	require.NoError(t, a.Save(ctx, "alice", want))

	got := a.Load(ctx, "alice")
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Entries, got[i].Entries, "session %d", i)
		assert.NotEmpty(t, got[i].ID)
	}
	assert.NotNil(t, got[0].Entries[0].Links, "empty links survive as []")
	assert.Nil(t, got[2].Entries[0].Links, "fallback entries have no links")
}

func TestAdapter_PerIdentityScoping(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	a := NewAdapter(kv, nil)

	require.NoError(t, a.Save(ctx, "alice", sampleCollection()))
	assert.Empty(t, a.Load(ctx, "bob"))

	_, ok, err := kv.Get(ctx, "chatHistory_alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdapter_CorruptDataIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	a := NewAdapter(kv, nil)

	for _, raw := range []string{`{not json`, `{"question":"x"}`, `[[{"rating":"five"}]]`, `null`} {
		require.NoError(t, kv.Set(ctx, CollectionKey("alice"), []byte(raw)))
		got := a.Load(ctx, "alice")
		assert.NotNil(t, got, "input %q", raw)
		assert.Empty(t, got, "input %q", raw)
	}
}

type failingKV struct{ store.KV }

func (failingKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk unreadable")
}

func TestAdapter_ReadErrorIsEmpty(t *testing.T) {
	a := NewAdapter(failingKV{store.NewMemory()}, nil)
	assert.Empty(t, a.Load(context.Background(), "alice"))
}

func TestAdapter_SavesEmptyCollectionAsArray(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, NewAdapter(kv, nil).Save(ctx, "alice", nil))

	raw, ok, err := kv.Get(ctx, CollectionKey("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(raw))
}

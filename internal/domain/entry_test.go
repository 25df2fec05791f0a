package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryJSON_LinksPresence(t *testing.T) {
	ts := time.Date(2025, 2, 3, 4, 5, 6, 7000000, time.UTC)

	success, err := json.Marshal(Entry{Question: "q", Answer: "a", Timestamp: ts, Links: []Link{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"q","answer":"a","rating":0,"timestamp":"2025-02-03T04:05:06.007Z","links":[]}`, string(success))

	fallback, err := json.Marshal(Entry{Question: "q", Answer: "a", Timestamp: ts})
	require.NoError(t, err)
	assert.NotContains(t, string(fallback), "links")

	var back Entry
	require.NoError(t, json.Unmarshal(success, &back))
	assert.NotNil(t, back.Links)
	require.NoError(t, json.Unmarshal(fallback, &back))
	assert.Nil(t, back.Links)
}

func TestEntryJSON_ReadsOriginalLayout(t *testing.T) {
	raw := `[[{"question":"How many vacation days?","answer":"Vacation policy is 20 days.","rating":3,
		"timestamp":"2024-11-05T10:15:30.000Z",
		"links":[{"file_title":"Leave Policy","attachment_url":"https://hr.example.com/leave.pdf"}]}],[]]`

	var c Collection
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Len(t, c, 2)
	assert.NotEmpty(t, c[0].ID)
	assert.NotEqual(t, c[0].ID, c[1].ID)
	assert.Nil(t, c[1].Entries)

	e := c[0].Entries[0]
	assert.Equal(t, 3, e.Rating)
	assert.Equal(t, []Link{{Title: "Leave Policy", URL: "https://hr.example.com/leave.pdf"}}, e.Links)
	assert.True(t, e.Timestamp.Equal(time.Date(2024, 11, 5, 10, 15, 30, 0, time.UTC)))

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.True(t, json.Valid(out))
	assert.Contains(t, string(out), `],[]]`)
}

func TestValidRating(t *testing.T) {
	for r := 0; r <= MaxRating; r++ {
		assert.True(t, ValidRating(r))
	}
	assert.False(t, ValidRating(-1))
	assert.False(t, ValidRating(MaxRating+1))
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("alice"))
	assert.False(t, ValidUsername(""))
	assert.False(t, ValidUsername("  "))
	assert.False(t, ValidUsername("../etc"))
	assert.False(t, ValidUsername(`a\b`))
}

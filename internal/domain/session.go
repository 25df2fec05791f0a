package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// NoSelection is the active pointer value when no session is selected.
const NoSelection = -1

// SessionID is the stable identity of a session. It lives only in memory and is
// reassigned every time a collection is loaded.
type SessionID string

// NewSessionID returns a fresh random session identity.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// Session is one conversation thread. Entries are append-only.
type Session struct {
	ID      SessionID
	Entries []Entry
}

// NewSession creates an empty session with a fresh identity.
func NewSession() Session {
	return Session{ID: NewSessionID()}
}

// MarshalJSON encodes a session as a bare array of entries.
func (s Session) MarshalJSON() ([]byte, error) {
	entries := s.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes a bare array of entries and assigns a fresh identity.
func (s *Session) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	s.ID = NewSessionID()
	s.Entries = nil
	if len(entries) > 0 {
		s.Entries = entries
	}
	return nil
}

// Clone returns a deep copy of the session, keeping its identity.
func (s Session) Clone() Session {
	out := Session{ID: s.ID}
	if s.Entries != nil {
		out.Entries = make([]Entry, len(s.Entries))
		for i, e := range s.Entries {
			out.Entries[i] = e.Clone()
		}
	}
	return out
}

// Collection is the ordered list of sessions for one identity, most recent first.
type Collection []Session

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i, s := range c {
		out[i] = s.Clone()
	}
	return out
}

// IndexOf returns the position of the session with the given identity, or -1.
func (c Collection) IndexOf(id SessionID) int {
	for i, s := range c {
		if s.ID == id {
			return i
		}
	}
	return -1
}

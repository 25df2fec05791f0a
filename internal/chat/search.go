package chat

import (
	"strings"

	"github.com/ashureev/hrchat/internal/domain"
	"golang.org/x/text/cases"
)

// Match is a session selected by Filter, with its position in the unfiltered
// collection.
type Match struct {
	Index   int
	Session domain.Session
}

// Filter returns, in order, the sessions with at least one entry whose question
// or answer contains query, ignoring case. An empty query matches every session.
// The collection is not modified.
func Filter(c domain.Collection, query string) []Match {
	out := make([]Match, 0, len(c))
	if query == "" {
		for i, s := range c {
			out = append(out, Match{Index: i, Session: s})
		}
		return out
	}

	fold := cases.Fold()
	needle := fold.String(query)
	for i, s := range c {
		if sessionContains(s, needle, fold) {
			out = append(out, Match{Index: i, Session: s})
		}
	}
	return out
}

func sessionContains(s domain.Session, needle string, fold cases.Caser) bool {
	for _, e := range s.Entries {
		if strings.Contains(fold.String(e.Question), needle) ||
			strings.Contains(fold.String(e.Answer), needle) {
			return true
		}
	}
	return false
}

// IDs returns the stable session identities of matches, in order.
func IDs(matches []Match) []domain.SessionID {
	ids := make([]domain.SessionID, len(matches))
	for i, m := range matches {
		ids[i] = m.Session.ID
	}
	return ids
}

// Package domain contains core domain types for the HR chat client.
package domain

import (
	"encoding/json"
	"time"
)

// MaxRating is the highest feedback value an entry accepts. Zero means unrated.
const MaxRating = 5

// Link is a reference document attached to an answer.
type Link struct {
	Title string `json:"file_title"`
	URL   string `json:"attachment_url"`
}

// Entry is one question/answer exchange.
//
// Links is non-nil for answers returned by the answer service (possibly empty) and
// nil for locally synthesized fallback entries.
type Entry struct {
	Question  string
	Answer    string
	Rating    int
	Timestamp time.Time
	Links     []Link
}

type entryJSON struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
	Links     *[]Link   `json:"links,omitempty"`
}

// MarshalJSON keeps an empty links list as [] and omits the field for nil links.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		Question:  e.Question,
		Answer:    e.Answer,
		Rating:    e.Rating,
		Timestamp: e.Timestamp,
	}
	if e.Links != nil {
		links := e.Links
		out.Links = &links
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Entry{
		Question:  in.Question,
		Answer:    in.Answer,
		Rating:    in.Rating,
		Timestamp: in.Timestamp,
	}
	if in.Links != nil {
		e.Links = *in.Links
		if e.Links == nil {
			e.Links = []Link{}
		}
	}
	return nil
}

// ValidRating reports whether r is an accepted feedback value.
func ValidRating(r int) bool {
	return r >= 0 && r <= MaxRating
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	if e.Links != nil {
		e.Links = append([]Link{}, e.Links...)
	}
	return e
}

// Answer is the answer service's reply to one question.
type Answer struct {
	Text  string
	Links []Link
}

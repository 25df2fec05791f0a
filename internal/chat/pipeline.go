package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/hrchat/internal/domain"
)

// FallbackAnswer is the answer text of entries synthesized when the answer
// service call fails.
const FallbackAnswer = "Error connecting to server."

// Answerer is the answer-generation service.
type Answerer interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
}

// EventSink receives fire-and-forget records for the durable chat log.
type EventSink interface {
	Log(record any)
}

// State is the submission pipeline state.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
)

// Outcome tells how a submission completed.
type Outcome string

const (
	OutcomeFulfilled Outcome = "fulfilled"
	OutcomeFallback  Outcome = "fallback"
)

// Result describes a completed submission.
type Result struct {
	Entry        domain.Entry
	SessionIndex int
	SessionID    domain.SessionID
	Outcome      Outcome
	Err          error // answer service error behind a fallback
}

// ChatRecord is the log record written after every round trip.
type ChatRecord struct {
	Type      string           `json:"type"`
	User      string           `json:"user"`
	SessionID domain.SessionID `json:"session_id,omitempty"`
	Question  string           `json:"question"`
	Answer    string           `json:"answer"`
	Links     []domain.Link    `json:"links,omitempty"`
	Outcome   Outcome          `json:"outcome"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// RatingRecord is the log record written for entry feedback.
type RatingRecord struct {
	Type       string           `json:"type"`
	User       string           `json:"user"`
	SessionID  domain.SessionID `json:"session_id"`
	EntryIndex int              `json:"entry_index"`
	Rating     int              `json:"rating"`
	Timestamp  time.Time        `json:"timestamp"`
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithStateListener registers fn to be called on every Idle/Pending transition.
func WithStateListener(fn func(State)) PipelineOption {
	return func(p *Pipeline) { p.onState = fn }
}

// Pipeline runs one question/answer round trip at a time.
type Pipeline struct {
	store   *Store
	answers Answerer
	sink    EventSink
	logger  *slog.Logger
	now     func() time.Time
	onState func(State)

	busy atomic.Bool

	draftMu sync.Mutex
	draft   string
}

// NewPipeline wires a pipeline to the store and its collaborators.
// sink may be nil.
func NewPipeline(store *Store, answers Answerer, sink EventSink, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		store:   store,
		answers: answers,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State reports whether a submission is in flight.
func (p *Pipeline) State() State {
	if p.busy.Load() {
		return StatePending
	}
	return StateIdle
}

// Draft returns the current question input.
func (p *Pipeline) Draft() string {
	p.draftMu.Lock()
	defer p.draftMu.Unlock()
	return p.draft
}

// SetDraft replaces the question input.
func (p *Pipeline) SetDraft(q string) {
	p.draftMu.Lock()
	p.draft = q
	p.draftMu.Unlock()
}

// Submit asks question and appends the resulting entry to the session that was
// active when the call started. Answer service failures produce a fallback entry
// rather than an error. A call made while another submission is pending returns
// ErrBusy and changes nothing.
func (p *Pipeline) Submit(ctx context.Context, question string) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, fmt.Errorf("%w: question is empty", domain.ErrValidation)
	}
	identity := p.store.Identity()
	if identity == "" {
		return Result{}, domain.ErrAuthRequired
	}
	if !p.busy.CompareAndSwap(false, true) {
		return Result{}, domain.ErrBusy
	}
	p.setState(StatePending)
	defer func() {
		p.SetDraft("")
		p.busy.Store(false)
		p.setState(StateIdle)
	}()

	timestamp := p.now().UTC().Truncate(time.Millisecond)
	target := p.store.ActiveID()

	res := Result{Outcome: OutcomeFulfilled}
	ans, err := p.answers.Ask(ctx, question)
	if err != nil {
		p.logger.Warn("answer service failed, using fallback", "user", identity, "error", err)
		res.Outcome = OutcomeFallback
		res.Err = err
		res.Entry = domain.Entry{
			Question:  question,
			Answer:    FallbackAnswer,
			Timestamp: timestamp,
		}
	} else {
		links := ans.Links
		if links == nil {
			links = []domain.Link{}
		}
		res.Entry = domain.Entry{
			Question:  question,
			Answer:    ans.Text,
			Timestamp: timestamp,
			Links:     links,
		}
	}

	idx, err := p.store.AppendFor(identity, target, res.Entry)
	if err != nil {
		if errors.Is(err, domain.ErrAuthRequired) {
			p.logger.Warn("identity changed while answer was pending, discarding entry", "user", identity)
		}
		return res, err
	}
	res.SessionIndex = idx
	if v := p.store.Snapshot(); idx < len(v.Sessions) {
		res.SessionID = v.Sessions[idx].ID
	}

	p.logChat(identity, res)
	return res, nil
}

// Rate records feedback for one entry of a session and logs it.
func (p *Pipeline) Rate(id domain.SessionID, entryIndex, rating int) error {
	if err := p.store.RateByID(id, entryIndex, rating); err != nil {
		return err
	}
	p.log(RatingRecord{
		Type:       "rating",
		User:       p.store.Identity(),
		SessionID:  id,
		EntryIndex: entryIndex,
		Rating:     rating,
		Timestamp:  p.now().UTC(),
	})
	return nil
}

// NewSession creates and selects an empty session and clears the draft.
func (p *Pipeline) NewSession() (int, error) {
	idx, err := p.store.CreateSession()
	if err != nil {
		return idx, err
	}
	p.SetDraft("")
	return idx, nil
}

func (p *Pipeline) logChat(identity string, res Result) {
	rec := ChatRecord{
		Type:      "chat",
		User:      identity,
		SessionID: res.SessionID,
		Question:  res.Entry.Question,
		Answer:    res.Entry.Answer,
		Links:     res.Entry.Links,
		Outcome:   res.Outcome,
		Timestamp: res.Entry.Timestamp,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	p.log(rec)
}

func (p *Pipeline) log(record any) {
	if p.sink != nil {
		p.sink.Log(record)
	}
}

func (p *Pipeline) setState(s State) {
	if p.onState != nil {
		p.onState(s)
	}
}

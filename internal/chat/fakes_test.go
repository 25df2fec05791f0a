package chat

import (
	"context"
	"sync"

	"github.com/ashureev/hrchat/internal/domain"
)

type fakeLoader struct {
	mu    sync.Mutex
	saved map[string]domain.Collection
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{saved: make(map[string]domain.Collection)}
}

func (f *fakeLoader) Load(_ context.Context, identity string) domain.Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.saved[identity]; ok {
		return c.Clone()
	}
	return domain.Collection{}
}

// fakeWriter applies snapshots synchronously to the loader so that what a
// test enqueues is what a later Load returns.
type fakeWriter struct {
	loader  *fakeLoader
	mu      sync.Mutex
	writes  int
	flushes int
}

func (f *fakeWriter) Enqueue(identity string, c domain.Collection) {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()

	f.loader.mu.Lock()
	f.loader.saved[identity] = c
	f.loader.mu.Unlock()
}

func (f *fakeWriter) Flush(context.Context) error {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
	return nil
}

func (f *fakeWriter) count() (writes, flushes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes, f.flushes
}

func newTestStore() (*Store, *fakeLoader, *fakeWriter) {
	loader := newFakeLoader()
	writer := &fakeWriter{loader: loader}
	return NewStore(loader, writer, nil), loader, writer
}

type fakeAnswerer struct {
	answer  domain.Answer
	err     error
	started chan struct{}
	release chan struct{}

	mu        sync.Mutex
	questions []string
}

func (f *fakeAnswerer) Ask(ctx context.Context, question string) (domain.Answer, error) {
	f.mu.Lock()
	f.questions = append(f.questions, question)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.Answer{}, ctx.Err()
		}
	}
	return f.answer, f.err
}

func (f *fakeAnswerer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.questions)
}

type fakeSink struct {
	mu      sync.Mutex
	records []any
}

func (f *fakeSink) Log(record any) {
	f.mu.Lock()
	f.records = append(f.records, record)
	f.mu.Unlock()
}

func (f *fakeSink) all() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.records...)
}

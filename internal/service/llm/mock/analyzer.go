// Package mock provides an in-memory analyzer for tests and offline runs.
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"speech-to-data/internal/service/llm"
)

// Call records one Analyze invocation.
type Call struct {
	Prompt     string
	ContextIDs []string
}

// Analyzer streams Fragments for every prompt. If FailAfter is non-negative,
// the stream returns Err after that many fragments. If OpenErr is set,
// Analyze itself fails.
type Analyzer struct {
	Fragments []string
	Err       error
	FailAfter int
	OpenErr   error
	// Delay is applied before every fragment.
	Delay time.Duration
	// Block, when non-nil, holds every stream open until it is closed.
	Block chan struct{}

	mu    sync.Mutex
	calls []Call
}

// New returns an analyzer that echoes a short canned answer.
func New(fragments ...string) *Analyzer {
	if len(fragments) == 0 {
		fragments = []string{"{\"resourceType\": \"Bundle\"", ", \"entry\": []}"}
	}
	return &Analyzer{Fragments: fragments, FailAfter: -1}
}

func (a *Analyzer) Analyze(ctx context.Context, prompt string, contextIDs []string) (llm.Stream, error) {
	a.mu.Lock()
	a.calls = append(a.calls, Call{Prompt: prompt, ContextIDs: append([]string(nil), contextIDs...)})
	a.mu.Unlock()

	if a.OpenErr != nil {
		return nil, a.OpenErr
	}
	return &stream{ctx: ctx, a: a}, nil
}

// Calls returns every recorded invocation.
func (a *Analyzer) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// LastPrompt returns the most recent prompt, or "".
func (a *Analyzer) LastPrompt() string {
	calls := a.Calls()
	if len(calls) == 0 {
		return ""
	}
	return calls[len(calls)-1].Prompt
}

type stream struct {
	ctx  context.Context
	a    *Analyzer
	next int
}

func (s *stream) Recv() (string, error) {
	if s.a.Block != nil {
		select {
		case <-s.a.Block:
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	if s.a.Delay > 0 {
		select {
		case <-time.After(s.a.Delay):
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	if s.a.FailAfter >= 0 && s.next >= s.a.FailAfter {
		return "", s.a.Err
	}
	if s.next >= len(s.a.Fragments) {
		return "", io.EOF
	}
	f := s.a.Fragments[s.next]
	s.next++
	return f, nil
}

func (s *stream) Close() error { return nil }

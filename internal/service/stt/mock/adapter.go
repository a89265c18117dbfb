// Package mock provides a scripted transcriber for running the pipeline
// without a speech model or cloud credentials.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultPhrases are cycled through when no script is given. They include the
// default analysis triggers so a mock run exercises the analyzer end to end.
var DefaultPhrases = []string{
	"Start analysis",
	"Patient is a 54 year old male",
	"complaining of chest pain for two hours",
	"blood pressure 150 over 95",
	"Stop analysis",
}

// Result is one scripted response.
type Result struct {
	Text string
	Err  error
}

// Transcriber implements stt.Transcriber with scripted results.
// Each call consumes the next result; the script repeats when exhausted.
type Transcriber struct {
	mu      sync.Mutex
	script  []Result
	next    int
	delay   time.Duration
	calls   int
	samples int
}

// New creates a transcriber that cycles through phrases.
func New(phrases ...string) *Transcriber {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	script := make([]Result, len(phrases))
	for i, p := range phrases {
		script[i] = Result{Text: p}
	}
	return NewScript(script...)
}

// NewScript creates a transcriber that returns the given results in order.
func NewScript(results ...Result) *Transcriber {
	return &Transcriber{script: results}
}

// WithDelay simulates model latency on every call.
func (t *Transcriber) WithDelay(d time.Duration) *Transcriber {
	t.delay = d
	return t
}

func (t *Transcriber) Name() string { return "mock" }

func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, _ string) (string, error) {
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.samples += len(samples)
	if len(t.script) == 0 {
		return "", nil
	}
	r := t.script[t.next%len(t.script)]
	t.next++
	return strings.TrimSpace(r.Text), r.Err
}

// Calls returns how many times Transcribe was invoked.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Samples returns the total number of samples received.
func (t *Transcriber) Samples() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.samples
}

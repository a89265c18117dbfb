// Package segment turns the raw chunk stream into a rolling transcript by
// deciding phrase boundaries from the timing of drain cycles.
package segment

import (
	"fmt"
	"sync"
)

// PhraseID names the transcript line at index within a session. Every
// update to the same open line carries the same id.
func PhraseID(sessionID string, index int) string {
	return fmt.Sprintf("%s-phrase-%d", sessionID, index+1)
}

// TranscriptLog is the ordered list of phrase texts. The last element is
// open and gets replaced until a pause closes it.
type TranscriptLog struct {
	mu    sync.RWMutex
	lines []string
}

// NewTranscriptLog returns a log holding a single empty open element.
func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{lines: []string{""}}
}

// Replace overwrites the open element and returns its index.
func (l *TranscriptLog) Replace(text string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines[len(l.lines)-1] = text
	return len(l.lines) - 1
}

// Append closes the open element and opens a new one holding text.
func (l *TranscriptLog) Append(text string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, text)
	return len(l.lines) - 1
}

// Lines returns a copy of the log.
func (l *TranscriptLog) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

func (l *TranscriptLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.lines)
}

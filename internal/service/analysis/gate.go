// Package analysis runs collected documents through the analysis backend
// under a single-flight gate.
package analysis

import (
	"errors"
	"sync"
)

var (
	// ErrBusy is returned while another analysis holds the gate.
	ErrBusy = errors.New("a previous analysis is still being processed")
	// ErrClosed is returned once the dispatcher stopped accepting work.
	ErrClosed = errors.New("dispatcher is closed")
)

// Gate admits at most one analysis at a time and numbers them.
// Ids start at 1, increase by one per admission and are never reused.
type Gate struct {
	mu   sync.Mutex
	busy bool
	last uint64
}

func NewGate() *Gate {
	return &Gate{}
}

// Acquire sets the gate and returns the next id, or ErrBusy.
func (g *Gate) Acquire() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return 0, ErrBusy
	}
	g.busy = true
	g.last++
	return g.last, nil
}

// Release clears the gate.
func (g *Gate) Release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// Busy reports whether an analysis holds the gate.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// LastID returns the most recently assigned id, 0 if none.
func (g *Gate) LastID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

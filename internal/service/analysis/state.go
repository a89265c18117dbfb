package analysis

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of an analysis task.
type State int

const (
	// StatePending - Task created, gate held, not yet talking to the backend.
	StatePending State = iota
	// StateInFlight - Prompt sent, response streaming.
	StateInFlight
	// StateCompleted - Full response recorded. Terminal.
	StateCompleted
	// StateFailed - Error recorded. Terminal.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateInFlight:
		return "IN_FLIGHT"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for COMPLETED and FAILED.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

var ErrInvalidTransition = errors.New("invalid analysis state transition")

// Lifecycle manages the state machine for a single task.
// Thread-safe for concurrent access.
//
//	PENDING → IN_FLIGHT → COMPLETED
//	   │          │
//	   └──────────┴──→ FAILED
//
// Terminal states are never left.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StatePending}
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Start moves PENDING to IN_FLIGHT.
func (l *Lifecycle) Start() error {
	return l.transition(StateInFlight, StatePending)
}

// Complete moves IN_FLIGHT to COMPLETED.
func (l *Lifecycle) Complete() error {
	return l.transition(StateCompleted, StateInFlight)
}

// Fail moves any non-terminal state to FAILED.
func (l *Lifecycle) Fail() error {
	return l.transition(StateFailed, StatePending, StateInFlight)
}

func (l *Lifecycle) transition(to State, from ...State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range from {
		if l.state == f {
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, l.state, to)
}

package analysis

import "sync"

// Kind distinguishes a final analysis from a temporary snapshot check.
type Kind string

const (
	KindFinal     Kind = "final"
	KindTemporary Kind = "temporary"
)

// Result is what a finished task produced.
type Result struct {
	Response   string
	Summary    string
	RecordPath string
}

// Handle tracks one dispatched task.
type Handle struct {
	id   uint64
	kind Kind
	lc   *Lifecycle
	done chan struct{}

	mu     sync.Mutex
	err    error
	result Result
}

func newHandle(id uint64, kind Kind) *Handle {
	return &Handle{id: id, kind: kind, lc: NewLifecycle(), done: make(chan struct{})}
}

func (h *Handle) ID() uint64   { return h.id }
func (h *Handle) Kind() Kind   { return h.kind }
func (h *Handle) State() State { return h.lc.State() }

// Done is closed after the task released the gate.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the task error once Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Result returns the task output once Done is closed.
func (h *Handle) Result() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

func (h *Handle) finish(r Result, err error) {
	h.mu.Lock()
	h.result = r
	h.err = err
	h.mu.Unlock()
}

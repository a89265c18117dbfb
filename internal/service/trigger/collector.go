package trigger

import (
	"errors"
	"strings"
	"sync"

	"speech-to-data/internal/config"
	"speech-to-data/internal/observability/metrics"
	"speech-to-data/internal/service/analysis"
)

// State of the collector.
type State int

const (
	StateIdle State = iota
	StateCollecting
)

func (s State) String() string {
	if s == StateCollecting {
		return "COLLECTING"
	}
	return "IDLE"
}

// Kind identifies a collector notice. Every rejection has its own kind.
type Kind string

const (
	KindStarted        Kind = "started"
	KindAlreadyStarted Kind = "already_started"
	KindNothingRunning Kind = "nothing_running"
	KindBusy           Kind = "busy"
	KindDispatched     Kind = "dispatched"
	KindDiscarded      Kind = "discarded"
	KindRetained       Kind = "retained"
	KindTempCheck      Kind = "temp_check"
	KindTempCheckIdle  Kind = "temp_check_idle"
	KindDispatchFailed Kind = "dispatch_failed"
)

// Event is a notice produced while handling one line.
type Event struct {
	Kind Kind
	// AnalysisID is set for KindDispatched and KindTempCheck.
	AnalysisID uint64
	// Document is the text handed to the dispatcher, or dropped on discard.
	Document string
	Err      error
}

// Message is the operator-facing text of e.
func (e Event) Message() string {
	switch e.Kind {
	case KindStarted:
		return "Recording started"
	case KindAlreadyStarted:
		return "Recording has already been started"
	case KindNothingRunning:
		return "No recording is currently running"
	case KindBusy:
		return "A previous analysis is still being processed"
	case KindDispatched:
		return "Recording stopped"
	case KindDiscarded:
		return "Collected text discarded"
	case KindRetained:
		return "Collected text kept; send the stop phrase again once the analysis finishes"
	case KindTempCheck:
		return "Temporary check requested"
	case KindTempCheckIdle:
		return "No recording is currently running, nothing to check"
	case KindDispatchFailed:
		return "Analysis could not be dispatched"
	default:
		return string(e.Kind)
	}
}

// Dispatcher hands a frozen document to the analysis backend.
// It returns analysis.ErrBusy while another analysis holds the gate.
type Dispatcher interface {
	TryDispatch(document string, kind analysis.Kind) (*analysis.Handle, error)
}

// Triggers are the phrases the collector reacts to. An empty TempCheck
// disables temporary checks.
type Triggers struct {
	Start     string
	Stop      string
	TempCheck string
}

// Collector is the Idle/Collecting state machine over the line stream.
type Collector struct {
	mu       sync.Mutex
	triggers Triggers
	policy   string
	dispatch Dispatcher
	state    State
	doc      strings.Builder
	m        *metrics.Metrics
}

// NewCollector creates an idle collector. policy is config.BusyPolicyRetain
// or config.BusyPolicyDiscard; anything else is treated as retain.
func NewCollector(t Triggers, policy string, d Dispatcher, m *metrics.Metrics) *Collector {
	if policy != config.BusyPolicyDiscard {
		policy = config.BusyPolicyRetain
	}
	return &Collector{triggers: t, policy: policy, dispatch: d, m: m}
}

// State returns the current collector state.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the document collected so far.
func (c *Collector) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.String()
}

// OnLine feeds one input line, without its trailing newline, and returns
// the notices it produced in order. Start is evaluated before stop.
func (c *Collector) OnLine(line string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var events []Event
	emit := func(e Event) {
		events = append(events, e)
		if c.m != nil {
			c.m.RecordNotice(string(e.Kind))
		}
	}
	if c.m != nil {
		c.m.RecordLine()
	}

	isStart := Matches(line, c.triggers.Start)
	isStop := Matches(line, c.triggers.Stop)
	isTemp := c.triggers.TempCheck != "" && Matches(line, c.triggers.TempCheck)
	appended := false

	if isStart {
		if c.state == StateCollecting {
			emit(Event{Kind: KindAlreadyStarted})
		} else {
			c.state = StateCollecting
			c.doc.Reset()
			emit(Event{Kind: KindStarted})
		}
	}

	if isStop {
		if c.state != StateCollecting {
			emit(Event{Kind: KindNothingRunning})
		} else {
			c.append(line)
			appended = true
			doc := c.doc.String()
			h, err := c.dispatch.TryDispatch(doc, analysis.KindFinal)
			if err == nil {
				c.state = StateIdle
				c.doc.Reset()
				emit(Event{Kind: KindDispatched, AnalysisID: handleID(h), Document: doc})
			} else {
				if errors.Is(err, analysis.ErrBusy) {
					emit(Event{Kind: KindBusy, Err: err})
				} else {
					emit(Event{Kind: KindDispatchFailed, Err: err})
				}
				if c.policy == config.BusyPolicyDiscard {
					c.state = StateIdle
					c.doc.Reset()
					emit(Event{Kind: KindDiscarded, Document: doc})
				} else {
					emit(Event{Kind: KindRetained, Document: doc})
				}
			}
		}
	}

	if isTemp {
		if c.state != StateCollecting {
			emit(Event{Kind: KindTempCheckIdle})
		} else {
			if !appended {
				c.append(line)
				appended = true
			}
			snapshot := c.doc.String()
			h, err := c.dispatch.TryDispatch(snapshot, analysis.KindTemporary)
			switch {
			case err == nil:
				emit(Event{Kind: KindTempCheck, AnalysisID: handleID(h), Document: snapshot})
			case errors.Is(err, analysis.ErrBusy):
				emit(Event{Kind: KindBusy, Err: err})
			default:
				emit(Event{Kind: KindDispatchFailed, Err: err})
			}
		}
	}

	if c.state == StateCollecting && !appended {
		c.append(line)
	}
	return events
}

func (c *Collector) append(line string) {
	c.doc.WriteString(line)
	c.doc.WriteByte('\n')
}

func handleID(h *analysis.Handle) uint64 {
	if h == nil {
		return 0
	}
	return h.ID()
}

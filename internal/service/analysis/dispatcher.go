package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"speech-to-data/internal/models"
	"speech-to-data/internal/observability/logging"
	"speech-to-data/internal/observability/metrics"
	"speech-to-data/internal/service/llm"
	"speech-to-data/internal/sink"
)

// Config describes the backend and the prompts.
type Config struct {
	RunID            string
	Model            string
	Endpoint         string
	KnowledgeBaseIDs []string
	Prompts          Prompts
	// Summarize requests a short follow-up summary of final analyses.
	Summarize bool
	// Timeout bounds a single task's backend calls. Zero means no bound.
	Timeout time.Duration
}

// Options wires optional collaborators.
type Options struct {
	Metrics *metrics.Metrics
	// Notify receives operator banners such as "Analysis[3] Started".
	Notify func(string)
	// OnResult is called from the task goroutine after the gate is released
	// and before the handle's Done channel closes.
	OnResult func(models.AnalysisResult)
}

// Dispatcher launches analysis tasks behind a Gate.
type Dispatcher struct {
	cfg      Config
	gate     *Gate
	analyzer llm.Analyzer
	sink     *sink.FileSink
	opts     Options
	logger   zerolog.Logger

	wg     sync.WaitGroup
	closed atomic.Bool

	completed atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates a dispatcher sharing gate with its callers.
func NewDispatcher(cfg Config, gate *Gate, a llm.Analyzer, s *sink.FileSink, opts Options) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		gate:     gate,
		analyzer: a,
		sink:     s,
		opts:     opts,
		logger:   logging.WithComponent("analysis"),
	}
}

// TryDispatch atomically takes the gate, assigns the next id and starts the
// task in its own goroutine. It returns ErrBusy if the gate is held.
func (d *Dispatcher) TryDispatch(document string, kind Kind) (*Handle, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	id, err := d.gate.Acquire()
	if err != nil {
		return nil, err
	}

	h := newHandle(id, kind)
	d.wg.Add(1)
	go d.run(h, document)
	return h, nil
}

// Wait blocks until every launched task finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new tasks. In-flight tasks keep running.
func (d *Dispatcher) Close() {
	d.closed.Store(true)
}

// Status is a point-in-time view for status endpoints.
type Status struct {
	InFlight  bool
	LastID    uint64
	Completed uint64
	Failed    uint64
}

func (d *Dispatcher) Status() Status {
	return Status{
		InFlight:  d.gate.Busy(),
		LastID:    d.gate.LastID(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
	}
}

func (d *Dispatcher) run(h *Handle, document string) {
	defer d.wg.Done()
	defer close(h.done)
	release := sync.OnceFunc(d.gate.Release)
	defer release()

	start := time.Now()
	logger := logging.WithAnalysis(d.cfg.RunID, h.id, string(h.kind))
	d.notify(fmt.Sprintf("Analysis[%d] Started ------------------->>>", h.id))
	if d.opts.Metrics != nil {
		d.opts.Metrics.RecordAnalysisStart(string(h.kind))
	}

	result, err := d.execute(h, document, logger)

	if err != nil {
		_ = h.lc.Fail()
		d.failed.Add(1)
		logger.Error().Err(err).Str("record", result.RecordPath).Msg("Analysis failed")
		d.notify(fmt.Sprintf("[ERROR] Analysis[%d] failed: %v", h.id, err))
	} else {
		_ = h.lc.Complete()
		d.completed.Add(1)
		logger.Info().Str("record", result.RecordPath).Int("responseBytes", len(result.Response)).Msg("Analysis completed")
	}
	h.finish(result, err)

	elapsed := time.Since(start)
	if d.opts.Metrics != nil {
		d.opts.Metrics.RecordAnalysisEnd(string(h.kind), err, elapsed.Seconds())
	}
	d.notify(fmt.Sprintf("Analysis[%d] Finished <<<-------------------", h.id))

	// The record is closed and the state terminal; result delivery must
	// not hold the gate.
	release()
	if d.opts.OnResult != nil {
		d.opts.OnResult(d.event(h, result, err, elapsed))
	}
}

func (d *Dispatcher) execute(h *Handle, document string, logger zerolog.Logger) (Result, error) {
	var result Result

	ctx := context.Background()
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	rec, err := d.sink.Open(h.id, h.kind == KindTemporary)
	if err != nil {
		return result, err
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("Failed to close results file")
		}
	}()
	result.RecordPath = rec.Path()

	prompt := d.cfg.Prompts.Build(h.kind, document)
	if err := errors.Join(
		rec.WriteHeader(sink.Header{Model: d.cfg.Model, Endpoint: d.cfg.Endpoint, RunID: d.cfg.RunID}),
		rec.WritePrompt(prompt),
	); err != nil {
		logger.Warn().Err(err).Msg("Failed to write analysis header")
	}

	if err := h.lc.Start(); err != nil {
		return result, err
	}

	var ids []string
	if h.kind == KindFinal {
		ids = d.cfg.KnowledgeBaseIDs
	}
	response, err := d.stream(ctx, prompt, ids)
	result.Response = response
	if err != nil {
		_ = rec.WriteFailure(response, err)
		return result, err
	}
	if response == "" {
		_ = rec.WriteWarning("No textual content found in response")
	}
	_ = rec.WriteResponse(response)

	if d.cfg.Summarize && h.kind == KindFinal && response != "" {
		summary, serr := llm.Complete(ctx, d.analyzer, d.cfg.Prompts.BuildSummary(response), nil)
		if serr != nil {
			logger.Warn().Err(serr).Msg("Summary generation failed")
			_ = rec.WriteSummaryError(serr)
		} else {
			result.Summary = summary
			_ = rec.WriteSummary(summary)
		}
	}
	return result, nil
}

func (d *Dispatcher) stream(ctx context.Context, prompt string, ids []string) (string, error) {
	s, err := d.analyzer.Analyze(ctx, prompt, ids)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return llm.Collect(s, func(string) {
		if d.opts.Metrics != nil {
			d.opts.Metrics.RecordFragment()
		}
	})
}

func (d *Dispatcher) event(h *Handle, r Result, err error, elapsed time.Duration) models.AnalysisResult {
	ev := models.AnalysisResult{
		EventType:  models.EventAnalysisResult,
		RunID:      d.cfg.RunID,
		AnalysisID: h.id,
		Kind:       string(h.kind),
		Model:      d.cfg.Model,
		Status:     "completed",
		Response:   r.Response,
		Summary:    r.Summary,
		RecordPath: r.RecordPath,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().UnixMilli(),
	}
	if err != nil {
		ev.Status = "failed"
		ev.Error = err.Error()
	}
	return ev
}

func (d *Dispatcher) notify(msg string) {
	if d.opts.Notify != nil {
		d.opts.Notify(msg)
	}
}

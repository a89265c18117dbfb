package segment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"speech-to-data/internal/audio"
	"speech-to-data/internal/models"
	"speech-to-data/internal/observability/logging"
	"speech-to-data/internal/observability/metrics"
	"speech-to-data/internal/service/stt"
)

// Config holds the segmentation parameters.
type Config struct {
	SessionID     string
	SampleRateHz  int
	Language      string
	PhraseTimeout time.Duration
	PollInterval  time.Duration
	// MinAudio is the shortest buffer handed to the transcriber; shorter
	// buffers are zero-padded.
	MinAudio time.Duration
}

// TranscriptUpdate is the result of one cycle that drained audio.
type TranscriptUpdate struct {
	PhraseID string
	Index    int
	// Text is this cycle's transcription; empty if the transcriber failed.
	Text string
	// Lines is a snapshot of the full transcript log after the update.
	Lines []string
	// PhraseComplete is set when the previous element was closed by a pause
	// and Text opened a new one.
	PhraseComplete bool
	At             time.Time
	Err            error
}

// Event converts the update for publishing.
func (u *TranscriptUpdate) Event(sessionID string) models.TranscriptUpdate {
	return models.TranscriptUpdate{
		EventType: models.EventTranscriptUpdate,
		SessionID: sessionID,
		PhraseID:  u.PhraseID,
		Index:     u.Index,
		Text:      u.Text,
		NewPhrase: u.PhraseComplete,
		Timestamp: u.At.UnixMilli(),
	}
}

// Engine drains the chunk queue and maintains the transcript log.
// Process is not safe for concurrent use; Run calls it from one goroutine.
type Engine struct {
	cfg        Config
	queue      *audio.ChunkQueue
	stt        stt.Transcriber
	log        *TranscriptLog
	phraseID   string
	lastPhrase time.Time
	minSamples int
	m          *metrics.Metrics
	logger     zerolog.Logger
}

// NewEngine creates an engine reading from q. m may be nil.
func NewEngine(cfg Config, q *audio.ChunkQueue, t stt.Transcriber, m *metrics.Metrics) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &Engine{
		cfg:        cfg,
		queue:      q,
		stt:        t,
		log:        NewTranscriptLog(),
		minSamples: audio.SamplesFor(cfg.MinAudio, cfg.SampleRateHz),
		m:          m,
		logger:     logging.WithComponent("segment"),
	}
}

// Transcript returns a snapshot of the transcript log.
func (e *Engine) Transcript() []string {
	return e.log.Lines()
}

// Process runs one cycle at time now. It returns false when the queue was
// empty and nothing happened.
func (e *Engine) Process(ctx context.Context, now time.Time) (*TranscriptUpdate, bool) {
	chunks := e.queue.Drain()
	if len(chunks) == 0 {
		return nil, false
	}

	complete := !e.lastPhrase.IsZero() && now.Sub(e.lastPhrase) > e.cfg.PhraseTimeout
	e.lastPhrase = now

	samples := audio.Normalize(audio.Concat(chunks))
	samples = audio.PadToMin(samples, e.minSamples)

	text, err := e.stt.Transcribe(ctx, samples, e.cfg.Language)
	if err != nil {
		e.logger.Warn().Err(err).Int("samples", len(samples)).Msg("Transcription failed, using empty text")
		text = ""
	}

	opened := complete || e.phraseID == ""
	var idx int
	if complete {
		idx = e.log.Append(text)
	} else {
		idx = e.log.Replace(text)
	}
	e.phraseID = PhraseID(e.cfg.SessionID, idx)
	if e.m != nil {
		e.m.RecordPhraseUpdate(opened)
	}

	e.logger.Debug().
		Str("phraseId", e.phraseID).
		Int("chunks", len(chunks)).
		Int("index", idx).
		Bool("phraseComplete", complete).
		Msg("Segmentation cycle")

	return &TranscriptUpdate{
		PhraseID:       e.phraseID,
		Index:          idx,
		Text:           text,
		Lines:          e.log.Lines(),
		PhraseComplete: complete,
		At:             now,
		Err:            err,
	}, true
}

// Run polls on the configured cadence and whenever the queue signals,
// passing every update to emit. Audio still queued when ctx ends is
// processed once more before returning.
func (e *Engine) Run(ctx context.Context, emit func(*TranscriptUpdate)) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	cycle := func(ctx context.Context) {
		if u, ok := e.Process(ctx, time.Now()); ok && emit != nil {
			emit(u)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if e.queue.Len() > 0 {
				cycle(context.WithoutCancel(ctx))
			}
			return nil
		case <-e.queue.Ready():
			cycle(ctx)
		case <-ticker.C:
			cycle(ctx)
		}
	}
}

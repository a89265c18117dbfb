package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"speech-to-data/internal/audio"
	"speech-to-data/internal/observability/logging"
	"speech-to-data/internal/observability/metrics"
)

// Config controls how a Source frames, gates and paces its input.
type Config struct {
	SampleRateHz  int
	FrameDuration time.Duration
	// EnergyThreshold below zero calibrates from the first CalibrationWindow
	// of input.
	EnergyThreshold int
	RecordTimeout   time.Duration
	PhraseTimeout   time.Duration
	// Realtime paces reads to one frame per FrameDuration.
	Realtime bool
}

// Source reads 16-bit little-endian mono PCM, raw or wrapped in a WAV header,
// and pushes voiced phrases onto a ChunkQueue.
type Source struct {
	cfg    Config
	r      *bufio.Reader
	closer io.Closer
	m      *metrics.Metrics
	logger zerolog.Logger
}

// NewSource wraps r. m may be nil.
func NewSource(r io.Reader, cfg Config, m *metrics.Metrics) *Source {
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 100 * time.Millisecond
	}
	s := &Source{
		cfg:    cfg,
		r:      bufio.NewReader(r),
		m:      m,
		logger: logging.WithComponent("capture"),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Open returns a Source over a file, or over stdin when path is "-" or "".
func Open(path string, cfg Config, m *metrics.Metrics) (*Source, error) {
	if path == "" || path == "-" {
		return NewSource(os.Stdin, cfg, m), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio input: %w", err)
	}
	return NewSource(f, cfg, m), nil
}

// Close releases the underlying reader if it is closable.
func (s *Source) Close() error {
	if s.closer == nil || s.closer == os.Stdin {
		return nil
	}
	return s.closer.Close()
}

// Run streams frames until EOF, a read error or ctx is done. Audio still
// buffered in the gate at EOF is pushed before returning nil.
func (s *Source) Run(ctx context.Context, q *audio.ChunkQueue) error {
	rate, err := s.detectFormat()
	if err != nil {
		return err
	}
	frameSamples := audio.SamplesFor(s.cfg.FrameDuration, rate)
	if frameSamples <= 0 {
		return fmt.Errorf("frame duration %v too short for %d Hz", s.cfg.FrameDuration, rate)
	}
	frame := make([]byte, frameSamples*audio.BytesPerSample)

	var tick <-chan time.Time
	if s.cfg.Realtime {
		ticker := time.NewTicker(s.cfg.FrameDuration)
		defer ticker.Stop()
		tick = ticker.C
	}

	threshold := s.cfg.EnergyThreshold
	if threshold < 0 {
		threshold, err = s.calibrate(ctx, frame, tick)
		if err != nil {
			return err
		}
	}
	gate := NewEnergyGate(threshold, rate, s.cfg.RecordTimeout, s.cfg.PhraseTimeout, frameSamples)

	s.logger.Info().
		Int("sampleRateHz", rate).
		Int("frameSamples", frameSamples).
		Int("energyThreshold", threshold).
		Bool("realtime", s.cfg.Realtime).
		Msg("Capture started")

	var frames, pushed int
	for {
		n, rerr := s.readFrame(ctx, frame, tick)
		if n > 0 {
			frames++
			chunk := make([]byte, n)
			copy(chunk, frame[:n])
			if out, reason := gate.Feed(chunk); out != nil {
				s.push(q, out, reason)
				pushed++
			}
		}
		if rerr == io.EOF {
			if out := gate.Flush(); out != nil {
				s.push(q, out, FlushEOF)
				pushed++
			}
			s.logger.Info().Int("frames", frames).Int("phrases", pushed).Msg("Capture finished")
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func (s *Source) push(q *audio.ChunkQueue, b []byte, reason string) {
	q.Push(b)
	if s.m != nil {
		s.m.RecordCaptureFlush(reason)
	}
	s.logger.Debug().Int("bytes", len(b)).Str("reason", reason).Msg("Phrase captured")
}

// detectFormat consumes a WAV header if present and returns the sample rate.
func (s *Source) detectFormat() (int, error) {
	magic, err := s.r.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read audio input: %w", err)
	}
	if string(magic) != "RIFF" {
		return s.cfg.SampleRateHz, nil
	}
	f, err := audio.ReadWAVHeader(s.r)
	if err != nil {
		return 0, err
	}
	if int(f.SampleRate) != s.cfg.SampleRateHz {
		s.logger.Warn().
			Uint32("wavSampleRate", f.SampleRate).
			Int("configuredSampleRate", s.cfg.SampleRateHz).
			Msg("WAV sample rate differs from configuration, using the file's rate")
	}
	return int(f.SampleRate), nil
}

// calibrate listens to ambient input for CalibrationWindow and returns the
// derived threshold. Those frames are not forwarded.
func (s *Source) calibrate(ctx context.Context, frame []byte, tick <-chan time.Time) (int, error) {
	s.logger.Info().Dur("window", CalibrationWindow).Msg("Adjusting for ambient noise")
	want := int(CalibrationWindow / s.cfg.FrameDuration)
	var noise [][]byte
	for i := 0; i < want; i++ {
		n, err := s.readFrame(ctx, frame, tick)
		if n > 0 {
			noise = append(noise, append([]byte(nil), frame[:n]...))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	threshold, ok := Calibrate(noise)
	if !ok {
		threshold = 1000
		s.logger.Warn().Int("energyThreshold", threshold).Msg("No noise samples collected, using default energy threshold")
		return threshold, nil
	}
	s.logger.Info().Int("energyThreshold", threshold).Msg("Adjusted energy threshold")
	return threshold, nil
}

// readFrame fills frame, waiting for the pacing tick first. A short final
// frame is returned with io.EOF.
func (s *Source) readFrame(ctx context.Context, frame []byte, tick <-chan time.Time) (int, error) {
	if tick != nil {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-tick:
		}
	} else if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err := io.ReadFull(s.r, frame)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		// Drop a dangling odd byte.
		return n - n%audio.BytesPerSample, io.EOF
	default:
		return n, fmt.Errorf("read audio input: %w", err)
	}
}

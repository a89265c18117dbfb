// Package capture turns a raw PCM stream into voiced chunks on a ChunkQueue.
package capture

import (
	"math"
	"time"

	"speech-to-data/internal/audio"
)

// Flush reasons reported to metrics.
const (
	FlushFull    = "record_timeout"
	FlushSilence = "silence"
	FlushEOF     = "eof"
)

// EnergyGate buffers voiced audio and releases it in phrases.
//
// A frame louder than the threshold is voice. Quiet frames are kept only once
// a phrase has started, and count towards its trailing silence. The buffer is
// released when it spans the record timeout or when the trailing silence
// spans the phrase timeout.
type EnergyGate struct {
	threshold  float64
	maxSamples int
	maxSilence int

	buf     []byte
	silence int
}

// NewEnergyGate sizes a gate for frames of frameSamples samples.
func NewEnergyGate(threshold int, sampleRate int, recordTimeout, phraseTimeout time.Duration, frameSamples int) *EnergyGate {
	if frameSamples <= 0 {
		frameSamples = 1
	}
	silence := int(math.Ceil(phraseTimeout.Seconds() * float64(sampleRate) / float64(frameSamples)))
	if silence < 1 {
		silence = 1
	}
	return &EnergyGate{
		threshold:  float64(threshold),
		maxSamples: audio.SamplesFor(recordTimeout, sampleRate),
		maxSilence: silence,
	}
}

// Threshold returns the RMS level above which a frame counts as voice.
func (g *EnergyGate) Threshold() int { return int(g.threshold) }

// Feed adds one frame. It returns the buffered phrase and the flush reason
// when the frame completed one, otherwise nil and "".
func (g *EnergyGate) Feed(frame []byte) ([]byte, string) {
	if len(frame) == 0 {
		return nil, ""
	}
	if audio.RMS(audio.Int16s(frame)) > g.threshold {
		g.silence = 0
		g.buf = append(g.buf, frame...)
	} else if len(g.buf) > 0 {
		g.silence++
		g.buf = append(g.buf, frame...)
	}

	if len(g.buf) == 0 {
		return nil, ""
	}
	switch {
	case len(g.buf)/audio.BytesPerSample >= g.maxSamples:
		return g.take(), FlushFull
	case g.silence >= g.maxSilence:
		return g.take(), FlushSilence
	}
	return nil, ""
}

// Flush releases whatever is buffered, or nil.
func (g *EnergyGate) Flush() []byte {
	if len(g.buf) == 0 {
		return nil
	}
	return g.take()
}

func (g *EnergyGate) take() []byte {
	out := g.buf
	g.buf = nil
	g.silence = 0
	return out
}

// CalibrationWindow is how much ambient audio Calibrate expects.
const CalibrationWindow = 3 * time.Second

// Calibrate derives an energy threshold from ambient noise frames: 2.5 times
// their overall RMS. ok is false when there were no samples.
func Calibrate(frames [][]byte) (threshold int, ok bool) {
	var sum float64
	var n int
	for _, f := range frames {
		for _, s := range audio.Int16s(f) {
			v := float64(s)
			sum += v * v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return int(math.Sqrt(sum/float64(n)) * 2.5), true
}

package capture

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"speech-to-data/internal/audio"
)

// frameOf returns n samples of constant amplitude v.
func frameOf(n int, v int16) []byte {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(v) / 32768.0
	}
	return audio.FloatToPCM(samples)
}

func TestEnergyGate_IgnoresLeadingSilence(t *testing.T) {
	g := NewEnergyGate(1000, 1000, 2*time.Second, 300*time.Millisecond, 100)
	for i := 0; i < 10; i++ {
		if out, _ := g.Feed(frameOf(100, 10)); out != nil {
			t.Fatalf("expected nothing released for silence, got %d bytes", len(out))
		}
	}
	if g.Flush() != nil {
		t.Error("expected empty buffer after silence only")
	}
}

func TestEnergyGate_FlushOnTrailingSilence(t *testing.T) {
	// 1 kHz, 100-sample frames, 300ms phrase timeout: 3 silent frames close a phrase.
	g := NewEnergyGate(1000, 1000, 10*time.Second, 300*time.Millisecond, 100)

	g.Feed(frameOf(100, 5000))
	g.Feed(frameOf(100, 5000))
	for i := 0; i < 2; i++ {
		if out, _ := g.Feed(frameOf(100, 0)); out != nil {
			t.Fatalf("released too early after %d silent frames", i+1)
		}
	}
	out, reason := g.Feed(frameOf(100, 0))
	if reason != FlushSilence {
		t.Fatalf("expected %q, got %q", FlushSilence, reason)
	}
	if len(out) != 5*100*audio.BytesPerSample {
		t.Errorf("expected voiced plus trailing silence (1000 bytes), got %d", len(out))
	}
}

func TestEnergyGate_VoiceResetsSilence(t *testing.T) {
	g := NewEnergyGate(1000, 1000, 10*time.Second, 300*time.Millisecond, 100)
	g.Feed(frameOf(100, 5000))
	g.Feed(frameOf(100, 0))
	g.Feed(frameOf(100, 0))
	g.Feed(frameOf(100, 5000))
	g.Feed(frameOf(100, 0))
	if out, _ := g.Feed(frameOf(100, 0)); out != nil {
		t.Error("expected silence counter reset by voice")
	}
}

func TestEnergyGate_FlushOnRecordTimeout(t *testing.T) {
	// 500ms record timeout at 1 kHz is 500 samples.
	g := NewEnergyGate(1000, 1000, 500*time.Millisecond, 10*time.Second, 100)
	for i := 0; i < 4; i++ {
		if out, _ := g.Feed(frameOf(100, 5000)); out != nil {
			t.Fatalf("released too early at frame %d", i)
		}
	}
	out, reason := g.Feed(frameOf(100, 5000))
	if reason != FlushFull || len(out) != 500*audio.BytesPerSample {
		t.Errorf("expected full flush of 1000 bytes, got %q with %d", reason, len(out))
	}
}

func TestCalibrate(t *testing.T) {
	tests := []struct {
		name     string
		frames   [][]byte
		expected int
		ok       bool
	}{
		{"constant noise", [][]byte{frameOf(50, 400), frameOf(50, -400)}, 1000, true},
		{"no samples", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Calibrate(tt.frames)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.expected, tt.ok, got, ok)
			}
		})
	}
}

func drainAll(q *audio.ChunkQueue) []byte {
	return audio.Concat(q.Drain())
}

func TestSource_RawPCM(t *testing.T) {
	var in bytes.Buffer
	in.Write(frameOf(100, 5000))
	in.Write(frameOf(100, 5000))
	in.Write(frameOf(50, 5000)) // short final frame

	src := NewSource(&in, Config{
		SampleRateHz:    1000,
		FrameDuration:   100 * time.Millisecond,
		EnergyThreshold: 1000,
		RecordTimeout:   10 * time.Second,
		PhraseTimeout:   time.Second,
	}, nil)
	q := audio.NewChunkQueue(nil)

	if err := src.Run(context.Background(), q); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := len(drainAll(q)); got != 250*audio.BytesPerSample {
		t.Errorf("expected 500 bytes flushed at EOF, got %d", got)
	}
}

func TestSource_WAVUsesHeaderRate(t *testing.T) {
	pcm := append(frameOf(200, 5000), frameOf(600, 0)...)
	wav, err := audio.EncodeWAV(pcm, 2000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// 100ms frames at 2 kHz are 200 samples; 300ms of silence closes the phrase.
	src := NewSource(bytes.NewReader(wav), Config{
		SampleRateHz:    16000,
		FrameDuration:   100 * time.Millisecond,
		EnergyThreshold: 1000,
		RecordTimeout:   10 * time.Second,
		PhraseTimeout:   300 * time.Millisecond,
	}, nil)
	q := audio.NewChunkQueue(nil)
	if err := src.Run(context.Background(), q); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	chunks := q.Drain()
	if len(chunks) != 1 {
		t.Fatalf("expected one phrase, got %d", len(chunks))
	}
	if len(chunks[0]) != len(pcm) {
		t.Errorf("expected header stripped (%d bytes), got %d", len(pcm), len(chunks[0]))
	}
}

func TestSource_CalibratesWhenThresholdNegative(t *testing.T) {
	var in bytes.Buffer
	// 3s of ambient noise at 1 kHz, then a loud burst.
	for i := 0; i < 30; i++ {
		in.Write(frameOf(100, 400))
	}
	in.Write(frameOf(100, 400))
	in.Write(frameOf(100, 8000))

	src := NewSource(&in, Config{
		SampleRateHz:    1000,
		FrameDuration:   100 * time.Millisecond,
		EnergyThreshold: -1,
		RecordTimeout:   10 * time.Second,
		PhraseTimeout:   time.Second,
	}, nil)
	q := audio.NewChunkQueue(nil)
	if err := src.Run(context.Background(), q); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Ambient frames stay below the calibrated 1000 threshold.
	if got := len(drainAll(q)); got != 100*audio.BytesPerSample {
		t.Errorf("expected only the burst (200 bytes), got %d", got)
	}
}

func TestSource_RealtimeHonorsContext(t *testing.T) {
	src := NewSource(bytes.NewReader(make([]byte, 1<<20)), Config{
		SampleRateHz:    1000,
		FrameDuration:   time.Second,
		EnergyThreshold: 1000,
		RecordTimeout:   time.Second,
		PhraseTimeout:   time.Second,
		Realtime:        true,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := src.Run(ctx, audio.NewChunkQueue(nil)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

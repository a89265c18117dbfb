// Package stt defines the interface for Speech-to-Text backends.
package stt

import (
	"context"
	"time"

	"speech-to-data/internal/observability/metrics"
)

// Transcriber turns one phrase buffer into text.
//
// samples are normalized mono PCM in [-1, 1] at the configured sample rate.
// A returned error is treated by the caller as empty text for that cycle.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, language string) (string, error)
}

// Named is implemented by backends that report a provider name for metrics.
type Named interface {
	Name() string
}

// ProviderName returns t's provider name, or "custom".
func ProviderName(t Transcriber) string {
	if n, ok := t.(Named); ok {
		return n.Name()
	}
	return "custom"
}

// Func adapts a plain function to Transcriber.
type Func func(ctx context.Context, samples []float32, language string) (string, error)

func (f Func) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	return f(ctx, samples, language)
}

// Instrumented wraps t with latency and error metrics.
type Instrumented struct {
	next     Transcriber
	provider string
	m        *metrics.Metrics
}

func Instrument(t Transcriber, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: t, provider: ProviderName(t), m: m}
}

func (i *Instrumented) Name() string { return i.provider }

func (i *Instrumented) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	start := time.Now()
	text, err := i.next.Transcribe(ctx, samples, language)
	i.m.RecordTranscribe(i.provider, err, time.Since(start).Seconds())
	return text, err
}

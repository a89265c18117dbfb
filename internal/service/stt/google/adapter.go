// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"

	"speech-to-data/internal/audio"
)

// Config holds Google STT configuration.
type Config struct {
	SampleRateHz int
	// Model is an optional recognition model, e.g. "latest_short".
	Model string
}

// DefaultConfig returns the default Google STT configuration.
func DefaultConfig() Config {
	return Config{SampleRateHz: 16000}
}

// recognizer is the subset of *speech.Client used here.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Transcriber implements stt.Transcriber with synchronous Recognize calls.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Transcriber struct {
	client recognizer
	cfg    Config
}

// New creates a Google transcriber.
func New(ctx context.Context, cfg Config) (*Transcriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Transcriber{client: c, cfg: cfg}, nil
}

func (t *Transcriber) Name() string { return "google" }

// Transcribe sends one phrase buffer as LINEAR16 content.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	resp, err := t.client.Recognize(ctx, t.request(samples, language))
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}

	var parts []string
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		if s := strings.TrimSpace(r.GetAlternatives()[0].GetTranscript()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

func (t *Transcriber) request(samples []float32, language string) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(t.cfg.SampleRateHz),
			LanguageCode:    languageCode(language),
			Model:           t.cfg.Model,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: audio.FloatToPCM(samples),
			},
		},
	}
}

// Close releases the underlying client.
func (t *Transcriber) Close() error {
	return t.client.Close()
}

// languageCode maps bare ISO codes to the BCP-47 tags Google expects.
func languageCode(lang string) string {
	switch strings.ToLower(lang) {
	case "", "en":
		return "en-US"
	case "es":
		return "es-ES"
	case "de":
		return "de-DE"
	case "fr":
		return "fr-FR"
	case "it":
		return "it-IT"
	default:
		return lang
	}
}

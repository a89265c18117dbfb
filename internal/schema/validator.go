// Package schema checks outgoing events before they are published.
package schema

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"speech-to-data/internal/models"
	"speech-to-data/internal/observability/logging"
)

var (
	ErrUnknownEvent = errors.New("unknown event type")
	ErrInvalidEvent = errors.New("invalid event")
)

type Validator struct {
	logger zerolog.Logger
}

func New() *Validator {
	return &Validator{logger: logging.WithComponent("schema")}
}

// Validate returns an error wrapping ErrInvalidEvent listing every violated
// field, or ErrUnknownEvent for types it does not know.
func (v *Validator) Validate(event any) error {
	var problems []error
	switch ev := event.(type) {
	case models.TranscriptUpdate:
		problems = transcriptProblems(ev)
	case *models.TranscriptUpdate:
		if ev == nil {
			return fmt.Errorf("%w: nil transcript update", ErrInvalidEvent)
		}
		problems = transcriptProblems(*ev)
	case models.AnalysisResult:
		problems = analysisProblems(ev)
	case *models.AnalysisResult:
		if ev == nil {
			return fmt.Errorf("%w: nil analysis result", ErrInvalidEvent)
		}
		problems = analysisProblems(*ev)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}

	if len(problems) > 0 {
		err := fmt.Errorf("%w: %w", ErrInvalidEvent, errors.Join(problems...))
		v.logger.Warn().Err(err).Msg("Schema validation failed")
		return err
	}
	v.logger.Debug().Interface("event", event).Msg("Schema validated")
	return nil
}

func transcriptProblems(ev models.TranscriptUpdate) []error {
	var p []error
	if ev.EventType != models.EventTranscriptUpdate {
		p = append(p, fmt.Errorf("eventType %q, want %q", ev.EventType, models.EventTranscriptUpdate))
	}
	if ev.SessionID == "" {
		p = append(p, errors.New("sessionId is required"))
	}
	if ev.PhraseID == "" {
		p = append(p, errors.New("phraseId is required"))
	}
	if ev.Index < 0 {
		p = append(p, fmt.Errorf("index must not be negative, got %d", ev.Index))
	}
	if ev.Timestamp <= 0 {
		p = append(p, errors.New("timestamp is required"))
	}
	return p
}

func analysisProblems(ev models.AnalysisResult) []error {
	var p []error
	if ev.EventType != models.EventAnalysisResult {
		p = append(p, fmt.Errorf("eventType %q, want %q", ev.EventType, models.EventAnalysisResult))
	}
	if ev.RunID == "" {
		p = append(p, errors.New("runId is required"))
	}
	if ev.AnalysisID == 0 {
		p = append(p, errors.New("analysisId starts at 1"))
	}
	if ev.Kind != "final" && ev.Kind != "temporary" {
		p = append(p, fmt.Errorf("unknown kind %q", ev.Kind))
	}
	switch ev.Status {
	case "completed":
	case "failed":
		if ev.Error == "" {
			p = append(p, errors.New("failed result needs an error"))
		}
	default:
		p = append(p, fmt.Errorf("unknown status %q", ev.Status))
	}
	if ev.Timestamp <= 0 {
		p = append(p, errors.New("timestamp is required"))
	}
	return p
}

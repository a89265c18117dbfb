package schema

import (
	"errors"
	"testing"

	"speech-to-data/internal/models"
)

func validTranscript() models.TranscriptUpdate {
	return models.TranscriptUpdate{
		EventType: models.EventTranscriptUpdate,
		SessionID: "sess-1",
		PhraseID:  "sess-1-phrase-1",
		Text:      "hello",
		Timestamp: 1700000000000,
	}
}

func validAnalysis() models.AnalysisResult {
	return models.AnalysisResult{
		EventType:  models.EventAnalysisResult,
		RunID:      "run-1",
		AnalysisID: 1,
		Kind:       "final",
		Status:     "completed",
		Timestamp:  1700000000000,
	}
}

func TestValidate(t *testing.T) {
	v := New()

	emptyText := validTranscript()
	emptyText.Text = ""
	noSession := validTranscript()
	noSession.SessionID = ""
	failedNoErr := validAnalysis()
	failedNoErr.Status = "failed"
	zeroID := validAnalysis()
	zeroID.AnalysisID = 0
	badKind := validAnalysis()
	badKind.Kind = "draft"
	tr := validTranscript()

	tests := []struct {
		name    string
		event   any
		wantErr error
	}{
		{"valid transcript", validTranscript(), nil},
		{"transcript pointer", &tr, nil},
		{"empty text allowed", emptyText, nil},
		{"missing session", noSession, ErrInvalidEvent},
		{"valid analysis", validAnalysis(), nil},
		{"failed without error", failedNoErr, ErrInvalidEvent},
		{"zero analysis id", zeroID, ErrInvalidEvent},
		{"unknown kind", badKind, ErrInvalidEvent},
		{"nil pointer", (*models.AnalysisResult)(nil), ErrInvalidEvent},
		{"unknown type", map[string]string{"a": "b"}, ErrUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// Package models defines the events published by the pipeline.
package models

const (
	EventTranscriptUpdate = "transcript.update"
	EventAnalysisResult   = "analysis.result"
)

// TranscriptUpdate is emitted after every segmentation cycle that drained audio.
type TranscriptUpdate struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	PhraseID  string `json:"phraseId"`
	// Index of the transcript log element this text belongs to.
	Index int `json:"index"`
	Text  string `json:"text"`
	// NewPhrase is set when the previous element was closed by a pause.
	NewPhrase bool  `json:"newPhrase"`
	Timestamp int64 `json:"timestamp"`
}

// AnalysisResult is emitted when an analysis task finishes.
type AnalysisResult struct {
	EventType  string `json:"eventType"`
	RunID      string `json:"runId"`
	AnalysisID uint64 `json:"analysisId"`
	Kind       string `json:"kind"`
	Model      string `json:"model"`
	Status     string `json:"status"`
	Response   string `json:"response,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Error      string `json:"error,omitempty"`
	RecordPath string `json:"recordPath"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  int64  `json:"timestamp"`
}

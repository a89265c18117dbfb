package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"speech-to-data/internal/service/llm"
)

type capturedRequest struct {
	Path string
	Body map[string]json.RawMessage
}

func sseServer(t *testing.T, fragments []string, captured chan<- capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]json.RawMessage
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		captured <- capturedRequest{Path: r.URL.Path, Body: body}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range fragments {
			chunk := map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion.chunk",
				"created": 0,
				"model":   "test-model",
				"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": f}}},
			}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestAnalyze_StreamsFragmentsWithKnowledgeBases(t *testing.T) {
	captured := make(chan capturedRequest, 1)
	srv := sseServer(t, []string{"Hello", ", ", "world"}, captured)
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL + "/api/", APIKey: "key", Model: "test-model"}, nil)
	s, err := a.Analyze(context.Background(), "analyze this", []string{"#Treatment_Protocols"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	defer s.Close()

	var fragments []string
	text, err := llm.Collect(s, func(f string) { fragments = append(fragments, f) })
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if text != "Hello, world" {
		t.Errorf("expected 'Hello, world', got %q", text)
	}
	if len(fragments) != 3 {
		t.Errorf("expected 3 fragments, got %d", len(fragments))
	}

	req := <-captured
	if req.Path != "/api/chat/completions" {
		t.Errorf("expected /api/chat/completions, got %s", req.Path)
	}
	var ids []string
	if err := json.Unmarshal(req.Body["knowledge_base_ids"], &ids); err != nil || len(ids) != 1 || ids[0] != "#Treatment_Protocols" {
		t.Errorf("expected knowledge_base_ids [#Treatment_Protocols], got %s", req.Body["knowledge_base_ids"])
	}
	var stream bool
	_ = json.Unmarshal(req.Body["stream"], &stream)
	if !stream {
		t.Error("expected stream=true in request")
	}
}

func TestAnalyze_NoKnowledgeBases(t *testing.T) {
	captured := make(chan capturedRequest, 1)
	srv := sseServer(t, []string{"ok"}, captured)
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "key", Model: "m"}, nil)
	text, err := llm.Complete(context.Background(), a, "summarize", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ok" {
		t.Errorf("expected 'ok', got %q", text)
	}
	req := <-captured
	if _, ok := req.Body["knowledge_base_ids"]; ok {
		t.Error("expected no knowledge_base_ids field")
	}
}

func TestAnalyze_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "key", Model: "m"}, nil)
	if _, err := a.Analyze(context.Background(), "p", nil); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestWithKnowledgeBases(t *testing.T) {
	out, err := withKnowledgeBases([]byte(`{"model":"m"}`), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fields map[string]any
	_ = json.Unmarshal(out, &fields)
	if fields["model"] != "m" {
		t.Errorf("expected model preserved, got %v", fields["model"])
	}
	ids, _ := fields["knowledge_base_ids"].([]any)
	if len(ids) != 2 {
		t.Errorf("expected 2 ids, got %v", fields["knowledge_base_ids"])
	}

	if _, err := withKnowledgeBases([]byte("not json"), []string{"a"}); err == nil {
		t.Error("expected error for invalid body")
	}
}

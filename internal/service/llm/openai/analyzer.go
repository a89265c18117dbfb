// Package openai implements llm.Analyzer against an OpenAI-compatible chat
// completions endpoint such as OpenWebUI.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"speech-to-data/internal/service/llm"
)

const systemPrompt = "You are a helpful assistant."

// Config holds the backend connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Analyzer streams chat completions. Knowledge base ids are sent in the
// request body as "knowledge_base_ids", which OpenWebUI understands.
type Analyzer struct {
	client *openai.Client
	model  string
}

// New creates an analyzer. transport may be nil for http.DefaultTransport.
func New(cfg Config, transport http.RoundTripper) *Analyzer {
	if transport == nil {
		transport = http.DefaultTransport
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Transport: &knowledgeTransport{next: transport}}
	return &Analyzer{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
	}
}

// Analyze starts a streamed completion for prompt.
func (a *Analyzer) Analyze(ctx context.Context, prompt string, contextIDs []string) (llm.Stream, error) {
	if len(contextIDs) > 0 {
		ctx = context.WithValue(ctx, knowledgeKey{}, contextIDs)
	}
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	}
	s, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create chat completion stream: %w", err)
	}
	return &stream{s: s}, nil
}

type stream struct {
	s *openai.ChatCompletionStream
}

// Recv returns the next content delta. io.EOF is passed through unwrapped.
func (s *stream) Recv() (string, error) {
	resp, err := s.s.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *stream) Close() error {
	return s.s.Close()
}

type knowledgeKey struct{}

// knowledgeTransport adds knowledge_base_ids to chat completion bodies.
type knowledgeTransport struct {
	next http.RoundTripper
}

func (t *knowledgeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ids, _ := req.Context().Value(knowledgeKey{}).([]string)
	if len(ids) == 0 || req.Body == nil || req.Method != http.MethodPost ||
		!strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return t.next.RoundTrip(req)
	}

	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	body, err := withKnowledgeBases(raw, ids)
	if err != nil {
		return nil, err
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return t.next.RoundTrip(out)
}

func withKnowledgeBases(raw []byte, ids []string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	enc, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	fields["knowledge_base_ids"] = enc
	return json.Marshal(fields)
}

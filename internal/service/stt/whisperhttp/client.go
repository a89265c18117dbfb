// Package whisperhttp transcribes phrase buffers through a whisper.cpp
// compatible HTTP server (POST /inference with a multipart WAV file).
package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"speech-to-data/internal/audio"
)

// Config contains transcription client configuration.
type Config struct {
	Endpoint       string
	APIKey         string
	SampleRateHz   int
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Client implements stt.Transcriber against a whisper server.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new transcription HTTP client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint cannot be empty")
	}
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 16000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

func (c *Client) Name() string { return "whisper-http" }

// Transcribe encodes samples as WAV and posts them, retrying server errors
// with exponential backoff. 4xx responses are not retried.
func (c *Client) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	wav, err := audio.EncodeWAV(audio.FloatToPCM(samples), c.cfg.SampleRateHz)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries)), ctx)

	var out string
	op := func() error {
		text, err := c.doRequest(ctx, wav, language)
		if err != nil {
			return err
		}
		out = text
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, wav []byte, language string) (string, error) {
	body, contentType, err := multipartBody(wav, language)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create multipart request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", backoff.Permanent(fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to parse response JSON: %w", err))
	}
	if parsed.Error != "" {
		return "", backoff.Permanent(fmt.Errorf("server error: %s", parsed.Error))
	}
	return strings.TrimSpace(parsed.Text), nil
}

func multipartBody(wav []byte, language string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", "phrase.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"response_format": "json",
		"temperature":     "0.0",
	}
	if language != "" {
		fields["language"] = language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

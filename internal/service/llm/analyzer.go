// Package llm defines the streaming analysis backend.
package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Stream yields response fragments in order. Recv returns io.EOF once the
// response is complete; any other error ends the stream early.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Analyzer sends a prompt to the backend and streams back the answer.
// contextIDs name knowledge bases the backend should consult.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, contextIDs []string) (Stream, error)
}

// Collect drains s, calling onFragment for every non-empty fragment. It
// returns the text received so far together with the first non-EOF error.
func Collect(s Stream, onFragment func(string)) (string, error) {
	var sb strings.Builder
	for {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		if frag == "" {
			continue
		}
		sb.WriteString(frag)
		if onFragment != nil {
			onFragment(frag)
		}
	}
}

// Complete runs one prompt to completion.
func Complete(ctx context.Context, a Analyzer, prompt string, contextIDs []string) (string, error) {
	s, err := a.Analyze(ctx, prompt, contextIDs)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return Collect(s, nil)
}

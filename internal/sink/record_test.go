package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestFileName(t *testing.T) {
	if got := FileName(3, false); got != "results_analysis3.txt" {
		t.Errorf("expected results_analysis3.txt, got %s", got)
	}
	if got := FileName(4, true); got != "tmp_results_analysis4.txt" {
		t.Errorf("expected tmp_results_analysis4.txt, got %s", got)
	}
}

func TestRecord_SuccessLayout(t *testing.T) {
	s, err := NewFileSink(t.TempDir(), "run1")
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	r, err := s.Open(1, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = r.WriteHeader(Header{Model: "m1", Endpoint: "http://llm", RunID: "run1"})
	_ = r.WritePrompt("collect\ntext")
	_ = r.WriteResponse("answer")
	_ = r.WriteSummary("short")
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := "Using model: m1\nEndpoint: http://llm\nRun: run1\n" +
		"Prompt: collect\ntext\n" +
		"\n\nFull response received:\nanswer\n" +
		"\nShort summary of response:\nshort\n"
	if got := readFile(t, r.Path()); got != want {
		t.Errorf("unexpected record:\n%q\nwant:\n%q", got, want)
	}
}

func TestRecord_FailureLayout(t *testing.T) {
	s, _ := NewFileSink(t.TempDir(), "run1")
	r, _ := s.Open(7, true)
	_ = r.WritePrompt("p")
	_ = r.WriteFailure("half an ans", errors.New("stream reset"))
	_ = r.Close()

	got := readFile(t, r.Path())
	if filepath.Base(r.Path()) != "tmp_results_analysis7.txt" {
		t.Errorf("unexpected file name %s", r.Path())
	}
	if !strings.Contains(got, "Partial response received:\nhalf an ans\n") {
		t.Errorf("expected partial response in record, got %q", got)
	}
	if !strings.HasSuffix(got, "[ERROR] Analysis[7] failed: stream reset\n") {
		t.Errorf("expected error line at end, got %q", got)
	}
	if strings.Contains(got, "Full response received") {
		t.Error("failed record must not claim a full response")
	}
}

func TestOpen_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "results_analysis1.txt")
	if err := os.WriteFile(existing, []byte("previous run"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, _ := NewFileSink(dir, "abc123")
	r, err := s.Open(1, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = r.WritePrompt("new")
	_ = r.Close()

	if filepath.Base(r.Path()) != "results_analysis1_abc123.txt" {
		t.Errorf("expected suffixed name, got %s", r.Path())
	}
	if got := readFile(t, existing); got != "previous run" {
		t.Errorf("existing record was modified: %q", got)
	}

	// Both names taken: fail rather than overwrite.
	if _, err := s.Open(1, false); err == nil {
		t.Error("expected error when every candidate name exists")
	}
}

func TestRecord_WriteAfterClose(t *testing.T) {
	s, _ := NewFileSink(t.TempDir(), "run")
	r, _ := s.Open(2, false)
	_ = r.Close()
	if err := r.WritePrompt("late"); !errors.Is(err, ErrRecordClosed) {
		t.Errorf("expected ErrRecordClosed, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("expected idempotent close, got %v", err)
	}
}

func TestRecords_ConcurrentWritesDoNotInterleave(t *testing.T) {
	s, _ := NewFileSink(t.TempDir(), "run")
	const n = 8

	var wg sync.WaitGroup
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.Open(uint64(i+1), false)
			if err != nil {
				t.Errorf("Open %d failed: %v", i+1, err)
				return
			}
			_ = r.WritePrompt(fmt.Sprintf("prompt-%d", i+1))
			for j := 0; j < 50; j++ {
				_ = r.WriteWarning(fmt.Sprintf("line-%d", i+1))
			}
			_ = r.Close()
			paths[i] = r.Path()
		}(i)
	}
	wg.Wait()

	for i, p := range paths {
		got := readFile(t, p)
		own := fmt.Sprintf("line-%d\n", i+1)
		if strings.Count(got, own) != 50 {
			t.Errorf("record %d: expected 50 own lines, got %d", i+1, strings.Count(got, own))
		}
		if strings.Count(got, "[WARN]") != 50 {
			t.Errorf("record %d: found foreign lines", i+1)
		}
	}
}

// Package sink writes one durable result record per analysis.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var ErrRecordClosed = errors.New("record is closed")

// Header identifies the backend a record was produced with.
type Header struct {
	Model    string
	Endpoint string
	RunID    string
}

// FileSink creates record files in a directory.
type FileSink struct {
	dir   string
	runID string
}

// NewFileSink creates the directory if needed. runID disambiguates file
// names left over from previous runs.
func NewFileSink(dir, runID string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir %s: %w", dir, err)
	}
	return &FileSink{dir: dir, runID: runID}, nil
}

// FileName returns the base record name for an analysis id.
func FileName(id uint64, temporary bool) string {
	if temporary {
		return fmt.Sprintf("tmp_results_analysis%d.txt", id)
	}
	return fmt.Sprintf("results_analysis%d.txt", id)
}

// Open creates a new record for id. Existing files are never overwritten:
// if the base name is taken, the run id is added as a suffix.
func (s *FileSink) Open(id uint64, temporary bool) (*Record, error) {
	base := FileName(id, temporary)
	path := filepath.Join(s.dir, base)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		ext := filepath.Ext(base)
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", base[:len(base)-len(ext)], s.runID, ext))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open results file %s: %w", path, err)
	}
	return &Record{id: id, path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Record is an append-only result file. Sections are written in order:
// header, prompt, then response or error.
type Record struct {
	mu     sync.Mutex
	id     uint64
	path   string
	f      *os.File
	w      *bufio.Writer
	closed bool
}

func (r *Record) Path() string { return r.path }

func (r *Record) WriteHeader(h Header) error {
	return r.printf("Using model: %s\nEndpoint: %s\nRun: %s\n", h.Model, h.Endpoint, h.RunID)
}

func (r *Record) WritePrompt(prompt string) error {
	return r.printf("Prompt: %s\n", prompt)
}

// WriteResponse writes the complete response body.
func (r *Record) WriteResponse(text string) error {
	return r.printf("\n\nFull response received:\n%s\n", text)
}

// WriteFailure writes whatever arrived before err, then the error line.
func (r *Record) WriteFailure(partial string, err error) error {
	if partial != "" {
		if e := r.printf("\n\nPartial response received:\n%s\n", partial); e != nil {
			return e
		}
	}
	return r.printf("\n[ERROR] Analysis[%d] failed: %v\n", r.id, err)
}

// WriteWarning adds a [WARN] line.
func (r *Record) WriteWarning(msg string) error {
	return r.printf("\n[WARN] %s\n", msg)
}

func (r *Record) WriteSummary(summary string) error {
	return r.printf("\nShort summary of response:\n%s\n", summary)
}

func (r *Record) WriteSummaryError(err error) error {
	return r.printf("\n[ERROR] Summary generation failed: %v\n", err)
}

// Close flushes and closes the file. Closing twice is a no-op.
func (r *Record) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	ferr := r.w.Flush()
	cerr := r.f.Close()
	if ferr != nil {
		return fmt.Errorf("flush %s: %w", r.path, ferr)
	}
	return cerr
}

func (r *Record) printf(format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecordClosed
	}
	if _, err := fmt.Fprintf(r.w, format, args...); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	return nil
}

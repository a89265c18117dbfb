package segment

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

const clearScreen = "\033[2J\033[H"

// TimestampLayout prefixes pipe-mode lines when timestamps are enabled.
const TimestampLayout = "2006-01-02 15:04:05"

// Printer renders transcript updates for a terminal or a downstream pipe.
//
// In pipe mode only the fresh text of each cycle is written, one line per
// update, and empty text is skipped. Otherwise the whole log is redrawn.
type Printer struct {
	mu        sync.Mutex
	w         *bufio.Writer
	pipe      bool
	timestamp bool
}

func NewPrinter(w io.Writer, pipe, timestamp bool) *Printer {
	return &Printer{w: bufio.NewWriter(w), pipe: pipe, timestamp: timestamp}
}

// Print writes u and flushes.
func (p *Printer) Print(u *TranscriptUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pipe {
		if u.Text == "" {
			return nil
		}
		if p.timestamp {
			fmt.Fprintf(p.w, "[%s] ", u.At.Format(TimestampLayout))
		}
		fmt.Fprintln(p.w, u.Text)
		return p.w.Flush()
	}

	p.w.WriteString(clearScreen)
	for _, line := range u.Lines {
		fmt.Fprintln(p.w, line)
	}
	return p.w.Flush()
}

// Final writes the complete transcript once the pipeline has stopped.
// Pipe mode already emitted every line and writes nothing.
func (p *Printer) Final(lines []string) error {
	if p.pipe {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, "\n\nTranscription:")
	for _, line := range lines {
		fmt.Fprintln(p.w, line)
	}
	return p.w.Flush()
}

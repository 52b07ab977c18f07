package workspace

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Progress prints a running "label: done/total" counter on one terminal
// line. It prints nothing when the writer is not a terminal, and a nil
// *Progress is a valid no-op. Safe for concurrent use.
type Progress struct {
	mu      sync.Mutex
	w       io.Writer
	label   string
	enabled bool
	total   int
	done    int
}

// NewProgress creates a counter writing to w.
func NewProgress(w io.Writer, label string) *Progress {
	return &Progress{w: w, label: label, enabled: isTerminal(w)}
}

// Start resets the counter for total items.
func (p *Progress) Start(total int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.done = 0
}

// Increment counts one more item and redraws the line.
func (p *Progress) Increment() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if p.enabled {
		fmt.Fprintf(p.w, "\r%s: %06d/%06d", p.label, p.done, p.total)
	}
}

// Done returns the number of items counted.
func (p *Progress) Done() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish ends the progress line.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled && p.total > 0 {
		fmt.Fprintf(p.w, "\r%s: %06d/%06d complete\n", p.label, p.done, p.total)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

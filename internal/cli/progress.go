package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// progressPrinter shows job progress lines. On a terminal the current line
// is redrawn in place; otherwise every update is its own line.
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	dirty bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	p := &progressPrinter{w: w}
	if f, ok := w.(*os.File); ok {
		p.tty = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *progressPrinter) Update(job, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tty {
		fmt.Fprintf(p.w, "\r\033[K[%s] %s", job, line)
		p.dirty = true
		return
	}
	fmt.Fprintf(p.w, "[%s] %s\n", job, line)
}

// Finish ends a line left open by a terminal redraw.
func (p *progressPrinter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
}

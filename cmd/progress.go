package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// progressPrinter renders a single-line percentage bar that the scan
// engine drives through its progress callback.
type progressPrinter struct {
	out     io.Writer
	mu      sync.Mutex
	percent int
	done    bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func (p *progressPrinter) Update(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || percent < p.percent {
		return
	}
	p.percent = percent
	p.print()
}

func (p *progressPrinter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 60))
}

func (p *progressPrinter) print() {
	const width = 30
	filled := p.percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	fmt.Fprintf(p.out, "\r[%s] %3d%%", bar, p.percent)
}

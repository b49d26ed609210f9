package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/archstudio/intake/internal/pipeline"
)

const (
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiReset  = "\033[0m"
)

// progressPrinter writes one line per progress report.
type progressPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	colorize bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, colorize: shouldColorize(w)}
}

func (p *progressPrinter) Report(pr pipeline.Progress) {
	line := fmt.Sprintf("%-12s %5.1f%%  %s", pr.Stage, pr.Percent, pr.Message)
	if p.colorize {
		switch pr.Level {
		case "warn":
			line = ansiYellow + line + ansiReset
		case "error":
			line = ansiRed + line + ansiReset
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

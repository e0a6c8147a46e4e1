package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"demoforge/internal/api"
	"demoforge/internal/logging"
	"demoforge/internal/progress"
)

// progressPrinter renders snapshots as a single updating line on terminals
// and as sampled plain lines elsewhere.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	sampler *logging.ProgressSampler
	open    bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{
		out:     out,
		tty:     shouldColorize(out),
		sampler: logging.NewProgressSampler(0.25),
	}
}

func (p *progressPrinter) Print(snap progress.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := formatSnapshot(snap)
	if p.tty {
		fmt.Fprintf(p.out, "\r\x1b[K%s", line)
		p.open = true
		if snap.Terminal() {
			fmt.Fprintln(p.out)
			p.open = false
		}
		return
	}
	if snap.Terminal() || p.sampler.ShouldLog(snap.Fraction, snap.Stage) {
		fmt.Fprintln(p.out, line)
	}
}

// Finish terminates a pending terminal line.
func (p *progressPrinter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
	}
}

func formatSnapshot(snap progress.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%4s] %-10s", api.FormatPercent(snap.Fraction), snap.Stage)
	if snap.Total > 0 {
		fmt.Fprintf(&b, " %d/%d", snap.Current, snap.Total)
	}
	if msg := strings.TrimSpace(snap.Message); msg != "" {
		b.WriteString(" ")
		b.WriteString(msg)
	}
	if snap.CacheHit {
		b.WriteString(" (cached)")
	}
	if snap.Error != "" {
		b.WriteString(": ")
		b.WriteString(snap.Error)
	}
	return b.String()
}

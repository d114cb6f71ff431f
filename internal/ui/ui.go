// Package ui prints pulsar's human-facing CLI output to stderr. The graph
// itself is never rendered here; this is validation verdicts and cache
// maintenance reports only.
package ui

import (
	"fmt"
	"os"
	"time"
)

// ANSI color codes.
const (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"
	green = "\033[32m"
	red   = "\033[31m"
)

// Printer writes formatted status lines to stderr.
type Printer struct{}

// New creates a Printer.
func New() *Printer {
	return &Printer{}
}

// Error prints a generic error line.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(os.Stderr, red+bold+"error: "+reset+"%s\n", msg)
}

// Info prints a dim informational line.
func (p *Printer) Info(msg string) {
	fmt.Fprintf(os.Stderr, dim+"%s"+reset+"\n", msg)
}

// WorkspaceConfigured confirms the workspace config loaded.
func (p *Printer) WorkspaceConfigured(name string) {
	fmt.Fprintf(os.Stderr, green+"✓ workspace %q"+reset+" configured\n", name)
}

// WorkspaceBroken reports an unreadable or invalid workspace config.
func (p *Printer) WorkspaceBroken(err error) {
	fmt.Fprintf(os.Stderr, red+bold+"✗ workspace config"+reset+" — %v\n", err)
}

// GraphValid reports a successful validation and the graph size.
func (p *Printer) GraphValid(projects, edges int) {
	fmt.Fprintf(os.Stderr, green+bold+"✓ graph valid"+reset+" — %d project(s), %d dependency edge(s), no cycles\n", projects, edges)
}

// GraphInvalid reports a failed graph build.
func (p *Printer) GraphInvalid(err error) {
	fmt.Fprintf(os.Stderr, red+bold+"✗ graph"+reset+" — %v\n", err)
}

// CacheStatus reports snapshot cache entry count, payload size, and the
// newest entry time. A zero newest means the cache is empty.
func (p *Printer) CacheStatus(entries int, sizeBytes int64, newest time.Time) {
	fmt.Fprintln(os.Stderr, dim+"snapshot cache:"+reset)
	fmt.Fprintf(os.Stderr, "  entries: %d\n", entries)
	fmt.Fprintf(os.Stderr, "  size:    %s\n", FormatBytes(sizeBytes))
	if !newest.IsZero() {
		fmt.Fprintf(os.Stderr, "  newest:  %s\n", newest.Format(time.RFC3339))
	}
}

// CacheCleared confirms the cache was emptied.
func (p *Printer) CacheCleared() {
	fmt.Fprintln(os.Stderr, green+"✓ cache cleared"+reset)
}

// FormatBytes renders a byte count in a compact human unit.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Package progress prints per-task progress lines while a submission runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/checkpoint"
)

// Reporter prints one line per finished task and keeps running totals.
type Reporter struct {
	writer    io.Writer
	startTime time.Time
	now       func() time.Time
	mu        sync.Mutex
	isCI      bool

	succeeded int
	failed    int
	skipped   int
}

// Config holds configuration for a Reporter.
type Config struct {
	Writer io.Writer
	IsCI   bool // Disables the bar prefix in CI logs
}

// NewReporter creates a Reporter.
func NewReporter(cfg Config) *Reporter {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	if !cfg.IsCI {
		cfg.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}
	return &Reporter{
		writer:    cfg.Writer,
		startTime: time.Now(),
		now:       time.Now,
		isCI:      cfg.IsCI,
	}
}

// Task records a finished task and prints its line. detail is the output
// path on success and the error message on failure.
func (r *Reporter) Task(job int, label string, status checkpoint.Status, detail string, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch status {
	case checkpoint.StatusSucceeded:
		r.succeeded++
	case checkpoint.StatusFailed:
		r.failed++
	case checkpoint.StatusSkipped:
		r.skipped++
	}

	line := fmt.Sprintf("%s job %d %s [%s]", symbol(status), job, label, status)
	if took > 0 {
		line += " " + formatDuration(took)
	}
	if detail != "" {
		line += " - " + detail
	}
	if !r.isCI {
		line = fmt.Sprintf("%s %s", r.counter(), line)
	}
	fmt.Fprintln(r.writer, line)
}

// Counts returns the running totals.
func (r *Reporter) Counts() (succeeded, failed, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded, r.failed, r.skipped
}

// Elapsed returns the time since the reporter was created.
func (r *Reporter) Elapsed() time.Duration {
	return r.now().Sub(r.startTime)
}

// PrintResumeInfo prints what a resumed checkpoint already holds.
func (r *Reporter) PrintResumeInfo(state *checkpoint.State) {
	if state == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	succeeded := len(state.TasksWithStatus(checkpoint.StatusSucceeded))
	failed := len(state.TasksWithStatus(checkpoint.StatusFailed))
	pending := len(state.TasksWithStatus(checkpoint.StatusPending)) + len(state.TasksWithStatus(checkpoint.StatusRunning))

	rule := strings.Repeat("─", 57)
	fmt.Fprintln(r.writer, rule)
	fmt.Fprintf(r.writer, "Resuming: %s\n", state.OperationID)
	fmt.Fprintln(r.writer, rule)
	fmt.Fprintf(r.writer, "  Succeeded:  %d tasks ✓\n", succeeded)
	fmt.Fprintf(r.writer, "  Pending:    %d tasks ⟲\n", pending)
	fmt.Fprintf(r.writer, "  Failed:     %d tasks ✗\n", failed)
	fmt.Fprintf(r.writer, "  Progress:   %.1f%%\n", state.Progress()*100)
	fmt.Fprintln(r.writer, rule)
}

func (r *Reporter) counter() string {
	return fmt.Sprintf("[✓ %d | ✗ %d | ⊘ %d | %s]",
		r.succeeded, r.failed, r.skipped, formatDuration(r.now().Sub(r.startTime)))
}

func symbol(status checkpoint.Status) string {
	switch status {
	case checkpoint.StatusRunning:
		return "▶"
	case checkpoint.StatusSucceeded:
		return "✓"
	case checkpoint.StatusFailed:
		return "✗"
	case checkpoint.StatusSkipped:
		return "⊘"
	default:
		return "⟲"
	}
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/checkpoint"
	"github.com/felixgeelhaar/hirs-avhrr/internal/collo"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
)

// TaskResult is the outcome of one context.
type TaskResult struct {
	Context   collo.Context     `json:"context" yaml:"context"`
	Job       int               `json:"job" yaml:"job"`
	Status    checkpoint.Status `json:"status" yaml:"status"`
	Output    string            `json:"output,omitempty" yaml:"output,omitempty"`
	Attempts  int               `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty" yaml:"duration,omitempty"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`

	err error
}

// Err returns the task error, nil unless Status is failed.
func (t TaskResult) Err() error { return t.err }

func (t *TaskResult) fail(err error) {
	t.Status = checkpoint.StatusFailed
	t.err = err
	t.Error = err.Error()
	t.ErrorKind = errors.KindOf(err).String()
}

// IntervalResult summarises one interval of a submission.
type IntervalResult struct {
	Interval granule.Interval `json:"interval" yaml:"interval"`
	Contexts int              `json:"contexts" yaml:"contexts"`
	First    *collo.Context   `json:"first,omitempty" yaml:"first,omitempty"`
	Last     *collo.Context   `json:"last,omitempty" yaml:"last,omitempty"`
	Tasks    []TaskResult     `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Err      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary is the result of a submission.
type Summary struct {
	RunID     string           `json:"run_id" yaml:"run_id"`
	Satellite string           `json:"satellite" yaml:"satellite"`
	DryRun    bool             `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	StartedAt time.Time        `json:"started_at" yaml:"started_at"`
	Duration  time.Duration    `json:"duration" yaml:"duration"`
	LogFile   string           `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Intervals []IntervalResult `json:"intervals" yaml:"intervals"`

	Found     int            `json:"found" yaml:"found"`
	Succeeded int            `json:"succeeded" yaml:"succeeded"`
	Failed    int            `json:"failed" yaml:"failed"`
	Skipped   int            `json:"skipped" yaml:"skipped"`
	Retries   int            `json:"retries" yaml:"retries"`
	ByKind    map[string]int `json:"failures_by_kind,omitempty" yaml:"failures_by_kind,omitempty"`
}

func (s *Summary) add(res IntervalResult) {
	s.Intervals = append(s.Intervals, res)
	s.Found += res.Contexts
	for _, t := range res.Tasks {
		if t.Attempts > 1 {
			s.Retries += t.Attempts - 1
		}
		switch t.Status {
		case checkpoint.StatusSucceeded:
			s.Succeeded++
		case checkpoint.StatusSkipped:
			s.Skipped++
		case checkpoint.StatusFailed:
			s.Failed++
			s.ByKind[t.ErrorKind]++
		}
	}
}

// Contexts returns every context found, in submission order.
func (s *Summary) Contexts() []collo.Context {
	var out []collo.Context
	for _, iv := range s.Intervals {
		for _, t := range iv.Tasks {
			out = append(out, t.Context)
		}
	}
	return out
}

// OK reports whether nothing failed.
func (s *Summary) OK() bool {
	if s.Failed > 0 {
		return false
	}
	for _, iv := range s.Intervals {
		if iv.Err != "" {
			return false
		}
	}
	return true
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s, %d interval(s), %d context(s)", s.RunID, s.Satellite, len(s.Intervals), s.Found)
	if s.DryRun {
		b.WriteString(" (dry run)")
		return b.String()
	}
	fmt.Fprintf(&b, "; %d succeeded, %d failed, %d skipped, %d retries", s.Succeeded, s.Failed, s.Skipped, s.Retries)
	for _, k := range sortedKinds(s.ByKind) {
		fmt.Fprintf(&b, "\n  %s: %d", k, s.ByKind[k])
	}
	return b.String()
}

package batch

import (
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
)

// Options describe one submission.
type Options struct {
	Satellite string
	Interval  granule.Interval
	// Monthly splits Interval into calendar months, each submitted in turn.
	Monthly bool

	Jobs int
	// Resume skips contexts that succeeded in an earlier run of the same
	// submission.
	Resume bool
	// DryRun finds and lists contexts without running them.
	DryRun bool

	RetryAttempts uint64
	RetryBase     time.Duration
	RetryMax      time.Duration

	WorkDir       string
	CheckpointDir string
	LogDir        string
}

// OptionsFromConfig fills the tuning fields from the run configuration.
// Satellite and Interval are left for the caller.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Jobs:          cfg.Batch.Jobs,
		RetryAttempts: cfg.Batch.RetryAttempts,
		RetryBase:     cfg.Batch.RetryBase,
		RetryMax:      cfg.Batch.RetryMax,
		WorkDir:       cfg.WorkDir,
		CheckpointDir: cfg.Batch.CheckpointDir,
		LogDir:        cfg.Batch.LogDir,
	}
}

// Intervals returns the intervals the submission covers.
func (o Options) Intervals() ([]granule.Interval, error) {
	if !o.Monthly {
		return []granule.Interval{o.Interval}, nil
	}
	return granule.MonthlyIntervals(o.Interval.Left, o.Interval.Right)
}

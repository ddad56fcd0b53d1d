// Package batch submits every context of an interval to the task runner
// with bounded parallelism, retrying inputs that are not ready yet.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/hirs-avhrr/internal/checkpoint"
	"github.com/felixgeelhaar/hirs-avhrr/internal/collo"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
	"github.com/felixgeelhaar/hirs-avhrr/internal/log"
	"github.com/felixgeelhaar/hirs-avhrr/internal/metrics"
	"github.com/felixgeelhaar/hirs-avhrr/internal/telemetry"
)

const stampLayout = "200601021504"

// Finder discovers contexts; *collo.Finder implements it.
type Finder interface {
	FindContexts(ctx context.Context, interval granule.Interval, satellite string) ([]collo.Context, error)
}

// TaskRunner runs one context in a working directory; *collo.Runner
// implements it.
type TaskRunner interface {
	RunIn(ctx context.Context, c collo.Context, workdir string) (collo.Output, error)
}

// Driver runs submissions. It is safe to reuse for consecutive
// submissions but not for concurrent ones.
type Driver struct {
	finder   Finder
	runner   TaskRunner
	opts     Options
	logger   *log.Logger
	metrics  *metrics.Metrics
	progress func(TaskResult)
	now      func() time.Time
	newID    func() string
}

// New returns a driver for opts.
func New(finder Finder, runner TaskRunner, opts Options) *Driver {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	return &Driver{
		finder: finder,
		runner: runner,
		opts:   opts,
		logger: log.Discard(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// WithLogger sets the logger.
func (d *Driver) WithLogger(l *log.Logger) *Driver {
	if l != nil {
		d.logger = l.With("component", "batch")
	}
	return d
}

// WithMetrics sets the metrics sink.
func (d *Driver) WithMetrics(m *metrics.Metrics) *Driver {
	d.metrics = m
	return d
}

// WithProgress registers fn to be called after every finished task. Calls
// are serialised.
func (d *Driver) WithProgress(fn func(TaskResult)) *Driver {
	d.progress = fn
	return d
}

// Submit processes every interval of the submission in order. A failing
// interval is logged and does not stop the ones after it. The returned error
// aggregates every interval and task failure.
func (d *Driver) Submit(ctx context.Context) (*Summary, error) {
	intervals, err := d.opts.Intervals()
	if err != nil {
		return nil, errors.NewConfigInvalidError("submission interval", err)
	}

	started := d.now()
	summary := &Summary{
		RunID:     d.newID(),
		Satellite: d.opts.Satellite,
		DryRun:    d.opts.DryRun,
		StartedAt: started.UTC(),
		ByKind:    map[string]int{},
	}
	logger := d.logger.With("run_id", summary.RunID, "satellite", d.opts.Satellite)

	if !d.opts.DryRun && len(intervals) > 0 {
		summary.LogFile = filepath.Join(d.opts.LogDir, fmt.Sprintf("hirs_avhrr_%s_s%s_e%s_c%s.log",
			d.opts.Satellite,
			intervals[0].Left.UTC().Format(stampLayout),
			intervals[len(intervals)-1].Right.UTC().Format(stampLayout),
			started.UTC().Format("20060102150405")))
	}

	logger.Info("submitting intervals", "intervals", len(intervals), "jobs", d.opts.Jobs, "dry_run", d.opts.DryRun)

	var errs error
	nextJob := 1
	for _, interval := range intervals {
		if err := ctx.Err(); err != nil {
			multierr.AppendInto(&errs, err)
			break
		}

		res, err := d.submitInterval(ctx, interval, summary, nextJob, logger)
		nextJob += res.Contexts
		summary.add(res)
		if err != nil {
			logger.WithError(err).Warn("interval finished with errors", "interval", interval.String())
			multierr.AppendInto(&errs, err)
		}
	}

	summary.Duration = d.now().Sub(started)
	logger.Info("submission finished",
		"found", summary.Found,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", summary.Duration.String())
	return summary, errs
}

func (d *Driver) submitInterval(ctx context.Context, interval granule.Interval, summary *Summary, firstJob int, logger *log.Logger) (IntervalResult, error) {
	res := IntervalResult{Interval: interval}
	logger = logger.With("interval", interval.String())
	logger.Info("submitting interval")
	ctx, span := telemetry.StartIntervalSpan(ctx, d.opts.Satellite, interval.Left, interval.Right)
	defer span.End()

	contexts, err := d.finder.FindContexts(ctx, interval, d.opts.Satellite)
	if err != nil {
		res.Err = err.Error()
		return res, err
	}
	collo.SortContexts(contexts)
	res.Contexts = len(contexts)
	logger.Info("contexts in interval", "count", len(contexts))
	if len(contexts) == 0 {
		return res, nil
	}
	res.First, res.Last = &contexts[0], &contexts[len(contexts)-1]
	logger.Info("context range", "first", res.First.String(), "last", res.Last.String())

	if d.opts.DryRun {
		res.Tasks = make([]TaskResult, len(contexts))
		for i, c := range contexts {
			res.Tasks[i] = TaskResult{Context: c, Job: firstJob + i, Status: checkpoint.StatusPending}
		}
		return res, nil
	}

	if err := d.appendSubmissionLog(summary.LogFile, res, firstJob); err != nil {
		logger.WithError(err).Warn("writing submission log failed", "path", summary.LogFile)
	}

	ckpt := checkpoint.NewManager(d.opts.CheckpointDir)
	opID := operationID(d.opts.Satellite, interval)
	state := checkpoint.NewState(opID)
	if d.opts.Resume {
		loaded, existed, err := ckpt.LoadOrNew(opID)
		if err != nil {
			return res, err
		}
		state = loaded
		if existed {
			logger.Info("resuming from checkpoint",
				"checkpoint", opID,
				"succeeded", len(state.TasksWithStatus(checkpoint.StatusSucceeded)))
		}
	}
	state.RunID = summary.RunID
	state.SetMetadata("satellite", d.opts.Satellite)
	state.SetMetadata("interval", interval.String())
	for _, c := range contexts {
		state.Register(c.Key())
	}

	var (
		mu   sync.Mutex
		errs error
	)
	res.Tasks = make([]TaskResult, len(contexts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Jobs)
	for i, c := range contexts {
		job := firstJob + i

		if d.opts.Resume && state.Succeeded(c.Key()) {
			task, _ := state.Task(c.Key())
			tr := TaskResult{Context: c, Job: job, Status: checkpoint.StatusSkipped, Output: task.Output}
			res.Tasks[i] = tr
			d.finishTask(&mu, tr)
			continue
		}

		g.Go(func() error {
			tr := d.runTask(gctx, c, job, state, logger)
			res.Tasks[i] = tr
			if err := ckpt.Save(state); err != nil {
				logger.WithError(err).Warn("saving checkpoint failed")
			}
			d.finishTask(&mu, tr)
			if tr.err != nil {
				mu.Lock()
				multierr.AppendInto(&errs, tr.err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ckpt.Save(state); err != nil {
		logger.WithError(err).Warn("saving checkpoint failed")
	}
	if state.IsComplete() {
		logger.Info("interval complete", "checkpoint", filepath.Join(ckpt.Dir(), opID+".json"))
	}
	if err := ctx.Err(); err != nil {
		multierr.AppendInto(&errs, err)
	}
	if errs != nil {
		res.Err = errs.Error()
		telemetry.RecordError(span, errs)
	}
	return res, errs
}

func (d *Driver) finishTask(mu *sync.Mutex, tr TaskResult) {
	outcome, kind := metrics.OutcomeSucceeded, ""
	switch tr.Status {
	case checkpoint.StatusSkipped:
		outcome = metrics.OutcomeSkipped
	case checkpoint.StatusFailed:
		outcome, kind = metrics.OutcomeFailed, tr.ErrorKind
	}
	d.metrics.RecordTask(tr.Context.Satellite, outcome, kind)

	if d.progress == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	d.progress(tr)
}

// runTask runs c, retrying while its inputs are not ready.
func (d *Driver) runTask(ctx context.Context, c collo.Context, job int, state *checkpoint.State, logger *log.Logger) TaskResult {
	tr := TaskResult{Context: c, Job: job}
	workdir := filepath.Join(d.opts.WorkDir, c.Key())
	logger = logger.With("granule", c.Granule.Format(time.RFC3339), "job", job)

	backoff, err := d.backoff()
	if err != nil {
		tr.fail(errors.NewConfigInvalidError("retry backoff", err))
		state.Finish(c.Key(), "", tr.err)
		return tr
	}

	started := d.now()
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		tr.Attempts++
		if tr.Attempts > 1 {
			d.metrics.RecordRetry(c.Satellite)
		}
		state.Start(c.Key())

		out, err := d.runner.RunIn(ctx, c, workdir)
		if err != nil {
			if errors.IsRetryable(err) {
				logger.Info("inputs not ready, will retry", "attempt", tr.Attempts, "error", err.Error())
				return retry.RetryableError(err)
			}
			return err
		}
		tr.Output = out.Path
		return nil
	})
	tr.Duration = d.now().Sub(started)

	if err != nil {
		tr.fail(err)
		state.Finish(c.Key(), "", err)
		return tr
	}
	tr.Status = checkpoint.StatusSucceeded
	state.Finish(c.Key(), tr.Output, nil)
	return tr
}

func (d *Driver) backoff() (retry.Backoff, error) {
	base := d.opts.RetryBase
	if base <= 0 {
		base = time.Millisecond
	}
	b, err := retry.NewExponential(base)
	if err != nil {
		return nil, err
	}
	b = retry.WithJitterPercent(10, b)
	if d.opts.RetryMax > 0 {
		b = retry.WithCappedDuration(d.opts.RetryMax, b)
	}
	return retry.WithMaxRetries(d.opts.RetryAttempts, b), nil
}

// appendSubmissionLog records the context range and job numbers of one
// interval.
func (d *Driver) appendSubmissionLog(path string, res IntervalResult, firstJob int) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "contexts: [%s, %s]; job numbers: {%d..%d}\n",
		res.First, res.Last, firstJob, firstJob+res.Contexts-1)
	return multierr.Combine(werr, f.Close())
}

// operationID names the checkpoint of one satellite interval.
func operationID(satellite string, interval granule.Interval) string {
	return fmt.Sprintf("hirs_avhrr_%s_s%s_e%s",
		satellite,
		interval.Left.UTC().Format(stampLayout),
		interval.Right.UTC().Format(stampLayout))
}

// sortedKinds returns the keys of m in order.
func sortedKinds(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

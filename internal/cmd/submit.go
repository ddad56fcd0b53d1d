package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hirs-avhrr/internal/batch"
	"github.com/felixgeelhaar/hirs-avhrr/internal/checkpoint"
	"github.com/felixgeelhaar/hirs-avhrr/internal/progress"
	"github.com/felixgeelhaar/hirs-avhrr/internal/ux"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Collocate every context of an interval",
	Long: `Find every context in [start, end] and run them with bounded parallelism.

Inputs that are not ready yet are retried with exponential backoff; other
failures are recorded and the remaining contexts keep running. Progress is
checkpointed per interval so an interrupted submission can be resumed.

With --monthly the interval is split into calendar months that are
submitted one after another; a failing month does not stop the next one.

Examples:
  hirs-avhrr submit --satellite metop-b --start 2017-07-01 --end 2017-08-01
  hirs-avhrr submit --satellite noaa-19 --start 2012-01-01 --end 2013-01-01 --monthly --jobs 8
  hirs-avhrr submit --satellite metop-b --start 2017-07-01 --end 2017-08-01 --resume
  hirs-avhrr submit --satellite metop-b --start 2017-07-01 --end 2017-08-01 --dry-run
  hirs-avhrr submit --satellite metop-b --start 2017-07-01 --end 2017-08-01 --listen :9100`,
	RunE: runSubmit,
}

var (
	submitSatellite string
	submitStart     string
	submitEnd       string
	submitMonthly   bool
	submitJobs      int
	submitResume    bool
	submitDryRun    bool
	submitFormat    string
	submitQuiet     bool
	submitListen    string
)

func init() {
	submitCmd.Flags().StringVar(&submitSatellite, "satellite", "", "satellite name, e.g. metop-b")
	submitCmd.Flags().StringVar(&submitStart, "start", "", "interval start (RFC 3339 or YYYY-MM-DD)")
	submitCmd.Flags().StringVar(&submitEnd, "end", "", "exclusive interval end (RFC 3339 or YYYY-MM-DD)")
	submitCmd.Flags().BoolVar(&submitMonthly, "monthly", false, "split the interval into calendar months")
	submitCmd.Flags().IntVarP(&submitJobs, "jobs", "j", 0, "parallel tasks (default batch.jobs from the configuration)")
	submitCmd.Flags().BoolVar(&submitResume, "resume", false, "skip contexts that succeeded in an earlier run")
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "list contexts without running them")
	submitCmd.Flags().StringVar(&submitFormat, "format", "text", "summary format: text, json, yaml")
	submitCmd.Flags().BoolVarP(&submitQuiet, "quiet", "q", false, "do not print a line per finished task")
	submitCmd.Flags().StringVar(&submitListen, "listen", "", "serve /metrics and /health probes on this address while running, e.g. :9100")
	_ = submitCmd.MarkFlagRequired("satellite")
	_ = submitCmd.MarkFlagRequired("start")
	_ = submitCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(submitCmd)
}

// submitReport renders a batch summary for the text format.
type submitReport struct {
	*batch.Summary
}

// RenderText implements ux.TextRenderer.
func (r submitReport) RenderText(w io.Writer) error {
	s := r.Summary
	fmt.Fprintln(w)
	title := "Submission summary"
	if s.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, ux.TitleStyle.Render(title))
	fmt.Fprintln(w, ux.Field("Run", s.RunID))
	fmt.Fprintln(w, ux.Field("Satellite", s.Satellite))
	fmt.Fprintln(w, ux.Field("Intervals", len(s.Intervals)))
	fmt.Fprintln(w, ux.Field("Contexts", s.Found))

	if s.DryRun {
		for _, iv := range s.Intervals {
			for _, t := range iv.Tasks {
				fmt.Fprintf(w, "  job %d  %s\n", t.Job, t.Context.Granule.Format(time.RFC3339))
			}
		}
		return nil
	}

	fmt.Fprintln(w, ux.Field("Succeeded", ux.Count(s.Succeeded, true)))
	fmt.Fprintln(w, ux.Field("Failed", ux.Count(s.Failed, false)))
	fmt.Fprintln(w, ux.Field("Skipped", s.Skipped))
	fmt.Fprintln(w, ux.Field("Retries", s.Retries))
	fmt.Fprintln(w, ux.Field("Duration", progress.FormatDuration(s.Duration)))
	if s.LogFile != "" {
		fmt.Fprintln(w, ux.Field("Log", s.LogFile))
	}

	if s.Failed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ux.FailureStyle.Render("Failed contexts:"))
		for _, iv := range s.Intervals {
			for _, t := range iv.Tasks {
				if t.Status != checkpoint.StatusFailed {
					continue
				}
				fmt.Fprintf(w, "  ✗ job %d %s [%s] %s\n", t.Job, t.Context.Granule.Format(time.RFC3339), t.ErrorKind, firstLine(t.Error))
			}
		}
	}
	for _, iv := range s.Intervals {
		if iv.Err != "" && iv.Contexts == 0 {
			fmt.Fprintln(w, ux.WarningStyle.Render(fmt.Sprintf("  ! %s: %s", iv.Interval, firstLine(iv.Err))))
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func runSubmit(cmd *cobra.Command, args []string) error {
	formatter, err := formatterFor(cmd, submitFormat)
	if err != nil {
		return err
	}
	interval, err := parseInterval(submitStart, submitEnd)
	if err != nil {
		return err
	}
	p, err := newPipeline(cmd, submitSatellite)
	if err != nil {
		return err
	}
	defer p.close()

	opts := batch.OptionsFromConfig(p.cfg)
	opts.Satellite = p.satellite
	opts.Interval = interval
	opts.Monthly = submitMonthly
	opts.Resume = submitResume
	opts.DryRun = submitDryRun
	if submitJobs > 0 {
		opts.Jobs = submitJobs
	}
	if !opts.DryRun {
		if err := ux.EnsureDirs(opts.WorkDir, opts.CheckpointDir, opts.LogDir); err != nil {
			return ux.FormatError(err, "preparing directories")
		}
	}

	if submitListen != "" && !opts.DryRun {
		stop, err := p.serve(submitListen)
		if err != nil {
			return err
		}
		defer stop()
	}

	driver := batch.New(p.finder, p.runner, opts).
		WithLogger(p.logger).
		WithMetrics(p.metrics)
	if !submitQuiet && !opts.DryRun {
		reporter := progress.NewReporter(progress.Config{Writer: cmd.ErrOrStderr()})
		driver.WithProgress(func(tr batch.TaskResult) {
			detail := tr.Output
			if tr.Status == checkpoint.StatusFailed {
				detail = firstLine(tr.Error)
			}
			reporter.Task(tr.Job, tr.Context.String(), tr.Status, detail, tr.Duration)
		})
	}

	summary, runErr := driver.Submit(cmd.Context())
	if summary != nil {
		var out any = summary
		if submitFormat == "text" || submitFormat == "" {
			out = submitReport{summary}
		}
		if err := formatter.Format(out); err != nil {
			return err
		}
	}
	return runErr
}

package collo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/hirs-avhrr/internal/catalog"
	"github.com/felixgeelhaar/hirs-avhrr/internal/compress"
	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/exec"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
	"github.com/felixgeelhaar/hirs-avhrr/internal/log"
	"github.com/felixgeelhaar/hirs-avhrr/internal/metrics"
	"github.com/felixgeelhaar/hirs-avhrr/internal/telemetry"
)

// Output naming styles.
const (
	StyleColloc = "colloc"
	StyleCollo  = "collo"
)

// OutputName is the binding name of the single task output.
const OutputName = "out"

// Output attribute keys.
const (
	AttrBegin = "begin"
	AttrEnd   = "end"
)

// Inputs are the two files one collocation consumes.
type Inputs struct {
	HIR1B catalog.File
	PTMSX catalog.File
}

// Map returns the inputs keyed by binding name.
func (in Inputs) Map() map[string]catalog.File {
	return map[string]catalog.File{
		config.FileTypeHIR1B: in.HIR1B,
		config.FileTypePTMSX: in.PTMSX,
	}
}

// Output is the product of a successful run.
type Output struct {
	Name  string            `json:"name" yaml:"name"`
	Path  string            `json:"path" yaml:"path"`
	Attrs map[string]string `json:"attrs" yaml:"attrs"`
	// Manifest is the saved run manifest, empty when manifests are off.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`
}

// Options tune a Runner.
type Options struct {
	// WorkDir is where Run writes its output.
	WorkDir       string
	OutputStyle   string
	Compression   compress.Codec
	SymlinkInputs bool
	// TaskTimeout bounds one subprocess run; zero means no limit.
	TaskTimeout time.Duration
	// ManifestDir receives run manifests; empty disables them.
	ManifestDir string
}

// OptionsFromConfig derives runner options from the run configuration.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	codec, err := compress.ParseCodec(cfg.Compression)
	if err != nil {
		return Options{}, errors.NewConfigInvalidError(err.Error(), nil)
	}
	return Options{
		WorkDir:       cfg.WorkDir,
		OutputStyle:   cfg.OutputStyle,
		Compression:   codec,
		SymlinkInputs: cfg.SymlinkInputs,
		TaskTimeout:   cfg.TaskTimeout,
		ManifestDir:   cfg.Batch.ManifestDir,
	}, nil
}

// Runner turns one context into one collocation output. Every call to Run
// starts from StatePending; nothing but the output and its manifest is
// persisted. A Runner is safe for concurrent use as long as concurrent runs
// use distinct working directories.
type Runner struct {
	catalog  catalog.Catalog
	locator  Locator
	executor exec.Runner
	opts     Options
	logger   *log.Logger
	metrics  *metrics.Metrics
	observer Observer
}

// NewRunner returns a runner that executes subprocesses locally.
func NewRunner(cat catalog.Catalog, loc Locator, opts Options) *Runner {
	if opts.OutputStyle == "" {
		opts.OutputStyle = StyleColloc
	}
	if opts.Compression == "" {
		opts.Compression = compress.None
	}
	return &Runner{
		catalog:  cat,
		locator:  loc,
		executor: exec.LocalRunner{},
		opts:     opts,
		logger:   log.Discard(),
	}
}

// WithExecutor replaces the subprocess runner.
func (r *Runner) WithExecutor(e exec.Runner) *Runner {
	r.executor = e
	return r
}

// WithLogger sets the logger.
func (r *Runner) WithLogger(l *log.Logger) *Runner {
	if l != nil {
		r.logger = l.With("component", "runner")
	}
	return r
}

// WithMetrics sets the metrics sink.
func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner {
	r.metrics = m
	return r
}

// WithObserver registers fn to receive state transitions.
func (r *Runner) WithObserver(fn Observer) *Runner {
	r.observer = fn
	return r
}

// Options returns the runner's options.
func (r *Runner) Options() Options {
	return r.opts
}

// BuildInputs resolves the HIR1B and PTMSX files for c. Errors carry
// KindNotFound when the catalog has no entry and KindNotReady when the
// entry exists but the file is not usable yet.
func (r *Runner) BuildInputs(ctx context.Context, c Context) (Inputs, error) {
	hirs, err := r.catalog.File(ctx, catalog.SensorHIRS, c.Satellite, config.FileTypeHIR1B, c.Granule)
	if err != nil {
		return Inputs{}, err
	}
	ptmsx, err := r.catalog.File(ctx, catalog.SensorAVHRR, c.Satellite, config.FileTypePTMSX, c.Granule)
	if err != nil {
		return Inputs{}, err
	}
	return Inputs{HIR1B: hirs, PTMSX: ptmsx}, nil
}

// OutputFileName returns the uncompressed output file name for c.
func (r *Runner) OutputFileName(c Context, in Inputs) (string, error) {
	info, err := granule.ParseFilename(in.HIR1B.Path)
	if err != nil {
		return "", err
	}
	switch r.opts.OutputStyle {
	case StyleCollo:
		return fmt.Sprintf("hirs.avhrr.%s.%s.collo", c.Satellite, info.Stamp()), nil
	default:
		return fmt.Sprintf("colloc.hirs.avhrr.%s.%s.v%s.hdf", c.Satellite, info.Stamp(), c.ColloVersion), nil
	}
}

// Run executes the collocation for c in the configured working directory.
func (r *Runner) Run(ctx context.Context, c Context) (Output, error) {
	return r.RunIn(ctx, c, r.opts.WorkDir)
}

// RunIn executes the collocation for c with workdir as the subprocess
// working directory and output location.
func (r *Runner) RunIn(ctx context.Context, c Context, workdir string) (Output, error) {
	logger := r.logger.With("satellite", c.Satellite, "granule", c.Granule.Format(time.RFC3339))
	r.enter(c, StatePending)
	ctx, span := telemetry.StartTaskSpan(ctx, c.Satellite, c.Granule, c.Key())
	defer span.End()

	out, err := r.run(ctx, c, workdir, logger)
	if err != nil {
		telemetry.RecordError(span, err)
		r.enter(c, StateFailed)
		logger.WithError(err).Error("collocation failed")
		if pe, ok := errors.As(err); ok {
			r.metrics.RecordError(string(pe.Code), "runner")
		}
		return Output{}, err
	}

	telemetry.RecordSuccess(span, attribute.String("output", out.Path))
	r.enter(c, StateSucceeded)
	logger.Info("collocation succeeded", "output", out.Path)
	return out, nil
}

func (r *Runner) run(ctx context.Context, c Context, workdir string, logger *log.Logger) (Output, error) {
	in, err := r.BuildInputs(ctx, c)
	if err != nil {
		return Output{}, err
	}
	r.enter(c, StateInputsResolved)
	logger.Debug("inputs resolved", "hir1b", in.HIR1B.Path, "ptmsx", in.PTMSX.Path)

	name, err := r.OutputFileName(c, in)
	if err != nil {
		return Output{}, err
	}

	if workdir == "" {
		workdir = "."
	}
	workdir, err = filepath.Abs(workdir)
	if err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeDirectoryFailed, errors.KindIO, "resolve working directory", err)
	}
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeDirectoryFailed, errors.KindIO,
			"create working directory "+workdir, err)
	}

	outPath := filepath.Join(workdir, name)
	if err := removeStale(outPath, logger); err != nil {
		return Output{}, err
	}

	hirsArg, ptmsxArg := in.HIR1B.Path, in.PTMSX.Path
	if r.opts.SymlinkInputs {
		if hirsArg, err = linkInto(workdir, in.HIR1B.Path); err != nil {
			return Output{}, err
		}
		if ptmsxArg, err = linkInto(workdir, in.PTMSX.Path); err != nil {
			return Output{}, err
		}
	}

	exe, err := r.locator.Locate(c)
	if err != nil {
		return Output{}, err
	}

	step := exec.Step{
		ID:      c.Key(),
		Cmd:     []string{exe.Path, hirsArg, ptmsxArg, name},
		Workdir: workdir,
		Env:     exe.Env,
	}
	command := exec.CommandLine(step.Cmd)

	runCtx := ctx
	if r.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.TaskTimeout)
		defer cancel()
	}

	r.enter(c, StateSubprocessRunning)
	logger.Info("running collocation", "command", command, "workdir", workdir)
	done := r.metrics.TaskStarted()
	subCtx, sub := telemetry.StartSubprocessSpan(runCtx, exe.Path)
	result, err := r.executor.Run(subCtx, step)
	done()
	if err != nil {
		telemetry.RecordError(sub, err)
		sub.End()
		return Output{}, errors.Wrap(errors.ErrCodeExecStartFailed, errors.KindSubprocessFailure,
			"start "+exe.Path, err)
	}
	sub.SetAttributes(attribute.Int("exit_code", result.ExitCode))
	sub.End()
	r.metrics.ObserveSubprocess(c.Satellite, result.ExitCode, result.Duration)

	manifest := exec.CreateManifest(step, result)
	manifest.Context = c.Map()
	for binding, f := range in.Map() {
		if err := manifest.AddInputHash(binding, f.Path); err != nil {
			logger.Warn("hashing input failed", "input", binding, "error", err.Error())
		}
	}

	if result.ExitCode != 0 {
		r.saveManifest(manifest, logger)
		cause := result.Error
		if ctxErr := runCtx.Err(); ctxErr != nil {
			cause = ctxErr
		}
		return Output{}, errors.NewSubprocessError(exe.Path, command, result.ExitCode, cause)
	}

	if _, err := os.Stat(outPath); err != nil {
		r.saveManifest(manifest, logger)
		return Output{}, errors.NewOutputMissingError(exe.Path, outPath)
	}

	finalPath, err := compress.Compress(outPath, r.opts.Compression)
	if err != nil {
		return Output{}, err
	}
	if fi, err := os.Stat(finalPath); err == nil {
		r.metrics.RecordOutput(c.Satellite, string(r.opts.Compression), fi.Size())
	}
	if err := manifest.AddOutputHash(OutputName, finalPath); err != nil {
		logger.Warn("hashing output failed", "error", err.Error())
	}

	return Output{
		Name: OutputName,
		Path: finalPath,
		Attrs: map[string]string{
			AttrBegin: in.PTMSX.DataInterval.Left.UTC().Format(time.RFC3339),
			AttrEnd:   in.PTMSX.DataInterval.Right.UTC().Format(time.RFC3339),
		},
		Manifest: r.saveManifest(manifest, logger),
	}, nil
}

func (r *Runner) enter(c Context, s State) {
	if r.observer != nil {
		r.observer(c, s)
	}
}

func (r *Runner) saveManifest(m *exec.RunManifest, logger *log.Logger) string {
	if r.opts.ManifestDir == "" {
		return ""
	}
	path, err := exec.SaveManifest(m, r.opts.ManifestDir)
	if err != nil {
		logger.Warn("saving run manifest failed", "error", err.Error())
		return ""
	}
	return path
}

// removeStale deletes an output left by an earlier run, compressed or not.
func removeStale(outPath string, logger *log.Logger) error {
	for _, p := range compress.Variants(outPath) {
		err := os.Remove(p)
		switch {
		case err == nil:
			logger.Info("removed stale output", "path", p)
		case os.IsNotExist(err):
		default:
			return errors.Wrap(errors.ErrCodeFileWriteFailed, errors.KindIO, "remove stale output "+p, err)
		}
	}
	return nil
}

// linkInto symlinks target into dir under its base name and returns that
// name. An existing entry of the same name is replaced.
func linkInto(dir, target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFileReadFailed, errors.KindIO, "resolve "+target, err)
	}
	name := filepath.Base(abs)
	link := filepath.Join(dir, name)
	if link == abs {
		return name, nil
	}
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, errors.KindIO, "replace link "+link, err)
	}
	if err := os.Symlink(abs, link); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, errors.KindIO, "link input "+abs, err)
	}
	return name, nil
}

package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hirs-avhrr/internal/catalog"
	"github.com/felixgeelhaar/hirs-avhrr/internal/collo"
	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	pipeerrors "github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/log"
	"github.com/felixgeelhaar/hirs-avhrr/internal/metrics"
	"github.com/felixgeelhaar/hirs-avhrr/internal/server"
	"github.com/felixgeelhaar/hirs-avhrr/internal/telemetry"
	"github.com/felixgeelhaar/hirs-avhrr/internal/version"
)

// pipeline is the finder and runner for one satellite, built once from the
// configuration.
type pipeline struct {
	cfg         config.Config
	satellite   string
	logger      *log.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	finder      *collo.Finder
	runner      *collo.Runner
	stopTracing func(context.Context) error
}

func newPipeline(cmd *cobra.Command, satellite string) (*pipeline, error) {
	satellite, err := checkSatellite(satellite)
	if err != nil {
		return nil, err
	}
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg = cfg.ForSatellite(satellite)

	logger := newLogger(cmd).With("satellite", satellite)
	logger.Debug("configuration loaded", "path", path)

	reg, m := metrics.NewRegistry()

	cat, err := catalog.NewDataList(cfg.InputSources, logger)
	if err != nil {
		return nil, err
	}
	cat.WithMetrics(m)

	loc, err := collo.NewLocator(cfg.Executable)
	if err != nil {
		return nil, err
	}
	opts, err := collo.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version.GetInfo().Short()
	tcfg.Enabled = cfg.Telemetry.Enabled
	tcfg.TraceFile = cfg.Telemetry.TraceFile
	tcfg.SampleRate = cfg.Telemetry.SampleRate
	stopTracing, err := telemetry.InitProvider(cmd.Context(), tcfg)
	if err != nil {
		return nil, pipeerrors.Wrap(pipeerrors.ErrCodeConfigInvalid, pipeerrors.KindConfig, "initialize tracing", err)
	}
	if tcfg.Enabled {
		logger.Debug("tracing enabled", "trace_file", tcfg.TraceFile, "sample_rate", tcfg.SampleRate)
	}

	return &pipeline{
		cfg:         cfg,
		satellite:   satellite,
		logger:      logger,
		registry:    reg,
		metrics:     m,
		finder:      collo.NewFinder(cat, cfg.HirsVersion, cfg.ColloVersion).WithLogger(logger).WithMetrics(m),
		runner:      collo.NewRunner(cat, loc, opts).WithLogger(logger).WithMetrics(m),
		stopTracing: stopTracing,
	}, nil
}

// close flushes spans and metrics. Commands defer it once the pipeline is
// built.
func (p *pipeline) close() {
	if err := p.stopTracing(context.Background()); err != nil {
		p.logger.WithError(err).Warn("flushing traces failed")
	}
	p.flushMetrics()
}

// flushMetrics writes the metrics textfile when one is configured.
func (p *pipeline) flushMetrics() {
	if p.cfg.Batch.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(p.registry, p.cfg.Batch.MetricsFile); err != nil {
		p.logger.WithError(err).Warn("writing metrics textfile failed", "path", p.cfg.Batch.MetricsFile)
		return
	}
	p.logger.Debug("metrics written", "path", p.cfg.Batch.MetricsFile)
}

// serve exposes the pipeline's registry and health checks on addr until the
// returned stop func is called.
func (p *pipeline) serve(addr string) (func(), error) {
	checks, err := healthChecks(p.cfg)
	if err != nil {
		return nil, err
	}
	srv := server.NewServer(p.registry, checks, server.Config{Address: addr})
	l, err := srv.Listen()
	if err != nil {
		return nil, err
	}
	p.logger.Info("serving metrics and health probes", "addr", l.Addr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.WithError(err).Warn("metrics server stopped")
		}
	}()
	return func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			p.logger.WithError(err).Warn("metrics server shutdown failed")
		}
		<-done
	}, nil
}

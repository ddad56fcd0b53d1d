package collo

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/hirs-avhrr/internal/catalog"
	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
	"github.com/felixgeelhaar/hirs-avhrr/internal/log"
	"github.com/felixgeelhaar/hirs-avhrr/internal/metrics"
)

// Finder turns catalogued HIRS level-1b granules into contexts. It holds
// no mutable state and is safe for concurrent use.
type Finder struct {
	catalog      catalog.Catalog
	hirsVersion  string
	colloVersion string
	logger       *log.Logger
	metrics      *metrics.Metrics
}

// NewFinder returns a finder that stamps every context with the given
// versions.
func NewFinder(cat catalog.Catalog, hirsVersion, colloVersion string) *Finder {
	return &Finder{
		catalog:      cat,
		hirsVersion:  hirsVersion,
		colloVersion: colloVersion,
		logger:       log.Discard(),
	}
}

// WithLogger sets the logger.
func (f *Finder) WithLogger(l *log.Logger) *Finder {
	if l != nil {
		f.logger = l.With("component", "finder")
	}
	return f
}

// WithMetrics sets the metrics sink.
func (f *Finder) WithMetrics(m *metrics.Metrics) *Finder {
	f.metrics = m
	return f
}

// FindContexts returns one context per HIR1B granule the catalog reports
// for satellite in interval, in catalog order. Granules starting before
// interval.Left are dropped even if the catalog returns them. The satellite
// name is matched case-insensitively.
func (f *Finder) FindContexts(ctx context.Context, interval granule.Interval, satellite string) ([]Context, error) {
	satellite = strings.ToLower(strings.TrimSpace(satellite))
	files, err := f.catalog.Files(ctx, catalog.SensorHIRS, satellite, config.FileTypeHIR1B, interval)
	if err != nil {
		return nil, err
	}

	contexts := make([]Context, 0, len(files))
	for _, file := range files {
		start := file.DataInterval.Left
		if start.Before(interval.Left) {
			continue
		}
		contexts = append(contexts, NewContext(start, satellite, f.hirsVersion, f.colloVersion))
	}

	f.metrics.RecordContextsFound(satellite, len(contexts))
	f.logger.Debug("contexts found",
		"satellite", satellite,
		"interval", interval.String(),
		"catalogued", len(files),
		"contexts", len(contexts))
	return contexts, nil
}

package collo

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hirs-avhrr/internal/catalog"
	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
	"github.com/felixgeelhaar/hirs-avhrr/internal/metrics"
)

func hirsFile(t *testing.T, name string) catalog.File {
	t.Helper()
	f, err := catalog.FileFromPath("/archive/"+name, catalog.SensorHIRS, config.FileTypeHIR1B)
	require.NoError(t, err)
	return f
}

func julyFirst() granule.Interval {
	return granule.MustInterval(
		time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2017, 7, 1, 23, 59, 59, 0, time.UTC))
}

func TestFindContextsSingleGranule(t *testing.T) {
	cat := catalog.NewStatic(hirsFile(t, "NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV"))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	finder := NewFinder(cat, "v20151014", "v20151014").WithMetrics(m)

	contexts, err := finder.FindContexts(context.Background(), julyFirst(), "metop-b")
	require.NoError(t, err)
	require.Len(t, contexts, 1)

	assert.Equal(t, map[string]string{
		"granule":       "2017-07-01T00:32:00Z",
		"satellite":     "metop-b",
		"hirs_version":  "v20151014",
		"collo_version": "v20151014",
	}, contexts[0].Map())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContextsFound.WithLabelValues("metop-b")))
}

// leakyCatalog returns every file regardless of the interval asked for.
type leakyCatalog struct {
	files []catalog.File
}

func (l leakyCatalog) Files(_ context.Context, _, _, _ string, _ granule.Interval) ([]catalog.File, error) {
	return l.files, nil
}

func (l leakyCatalog) File(_ context.Context, _, satellite, fileType string, _ time.Time) (catalog.File, error) {
	return catalog.File{}, errors.NewNotFoundError(fileType, satellite, "not implemented")
}

func TestFindContextsDropsGranulesBeforeInterval(t *testing.T) {
	cat := leakyCatalog{files: []catalog.File{
		hirsFile(t, "NSS.HIRX.M1.D17181.S2304.E0047.B2455152.SV"),
		hirsFile(t, "NSS.HIRX.M1.D17182.S0215.E0358.B2455354.SV"),
		hirsFile(t, "NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV"),
	}}

	contexts, err := NewFinder(cat, "v1", "v2").FindContexts(context.Background(), julyFirst(), "metop-b")
	require.NoError(t, err)
	require.Len(t, contexts, 2)

	// Catalog order is preserved.
	assert.Equal(t, at(2, 15), contexts[0].Granule)
	assert.Equal(t, at(0, 32), contexts[1].Granule)
	for _, c := range contexts {
		assert.False(t, c.Granule.Before(julyFirst().Left))
		assert.Equal(t, "v1", c.HirsVersion)
		assert.Equal(t, "v2", c.ColloVersion)
	}
}

func TestFindContextsSatelliteCase(t *testing.T) {
	cat := catalog.NewStatic(hirsFile(t, "NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV"))
	m := metrics.NewMetrics(prometheus.NewRegistry())

	contexts, err := NewFinder(cat, "v1", "v1").WithMetrics(m).
		FindContexts(context.Background(), julyFirst(), " MetOp-B")
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "metop-b", contexts[0].Satellite)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContextsFound.WithLabelValues("metop-b")))
}

func TestFindContextsDayBoundary(t *testing.T) {
	cat := catalog.NewStatic(
		hirsFile(t, "NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV"),
		hirsFile(t, "NSS.HIRX.M1.D17183.S0000.E0143.B2456061.SV"),
	)
	finder := NewFinder(cat, "v1", "v1")

	day1, err := finder.FindContexts(context.Background(), julyFirst(), "metop-b")
	require.NoError(t, err)
	require.Len(t, day1, 1)
	assert.Equal(t, at(0, 32), day1[0].Granule)

	julySecond := granule.MustInterval(
		time.Date(2017, 7, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2017, 7, 2, 23, 59, 59, 0, time.UTC))
	day2, err := finder.FindContexts(context.Background(), julySecond, "metop-b")
	require.NoError(t, err)
	require.Len(t, day2, 1)
	assert.Equal(t, time.Date(2017, 7, 2, 0, 0, 0, 0, time.UTC), day2[0].Granule)
}

func TestFindContextsEmpty(t *testing.T) {
	contexts, err := NewFinder(catalog.NewStatic(), "v1", "v1").
		FindContexts(context.Background(), julyFirst(), "noaa-19")
	require.NoError(t, err)
	assert.Empty(t, contexts)
}

func TestFindContextsPropagatesCatalogErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFinder(catalog.NewStatic(), "v1", "v1").FindContexts(ctx, julyFirst(), "metop-b")
	assert.ErrorIs(t, err, context.Canceled)
}

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
)

func TestStaticCatalog(t *testing.T) {
	hirs, err := FileFromPath("/data/NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV", SensorHIRS, config.FileTypeHIR1B)
	require.NoError(t, err)
	ptmsx, err := FileFromPath("/data/NSS.GHRR.M1.D17182.S0020.E0201.B2455253.SV.level2.hdf", SensorAVHRR, config.FileTypePTMSX)
	require.NoError(t, err)

	c := NewStatic(hirs, ptmsx)
	c.AssumeReady = true
	ctx := context.Background()

	day := granule.MustInterval(
		time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2017, 7, 1, 23, 59, 59, 0, time.UTC))

	files, err := c.Files(ctx, SensorHIRS, "metop-b", config.FileTypeHIR1B, day)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, hirs, files[0])

	f, err := c.File(ctx, SensorAVHRR, "metop-b", config.FileTypePTMSX, hirs.DataInterval.Left)
	require.NoError(t, err)
	assert.Equal(t, ptmsx.Path, f.Path)

	_, err = c.File(ctx, SensorAVHRR, "noaa-19", config.FileTypePTMSX, hirs.DataInterval.Left)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestStaticCatalogReadiness(t *testing.T) {
	ptmsx, err := FileFromPath("/does/not/exist/NSS.GHRR.M1.D17182.S0020.E0201.B2455253.SV.level2.hdf", SensorAVHRR, config.FileTypePTMSX)
	require.NoError(t, err)

	c := NewStatic(ptmsx)
	_, err = c.File(context.Background(), SensorAVHRR, "metop-b", config.FileTypePTMSX, ptmsx.DataInterval.Left)
	assert.Equal(t, errors.KindNotReady, errors.KindOf(err))
}

func TestFileFromPathRejectsBadName(t *testing.T) {
	_, err := FileFromPath("/data/readme.txt", SensorHIRS, config.FileTypeHIR1B)
	assert.Equal(t, errors.KindParseFailure, errors.KindOf(err))
}

func TestStaticSatelliteCase(t *testing.T) {
	hirs, err := FileFromPath("/data/NSS.HIRX.M1.D17182.S0032.E0215.B2455253.SV", SensorHIRS, config.FileTypeHIR1B)
	require.NoError(t, err)
	c := NewStatic(hirs)
	c.AssumeReady = true

	files, err := c.Files(context.Background(), SensorHIRS, "MetOp-B", config.FileTypeHIR1B, hirs.DataInterval)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	f, err := c.File(context.Background(), SensorHIRS, "METOP-B", config.FileTypeHIR1B, hirs.DataInterval.Left)
	require.NoError(t, err)
	assert.Equal(t, hirs.Path, f.Path)
}

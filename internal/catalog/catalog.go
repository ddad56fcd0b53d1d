// Package catalog is the read-only view of the granule archive: which HIRS
// and PATMOS-x files exist for a satellite and the interval each covers.
package catalog

import (
	"context"
	"os"
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
)

// Sensors used as catalog keys.
const (
	SensorHIRS  = "hirs"
	SensorAVHRR = "avhrr"
)

// File is one catalogued granule.
type File struct {
	Path         string           `json:"path" yaml:"path"`
	Sensor       string           `json:"sensor" yaml:"sensor"`
	Satellite    string           `json:"satellite" yaml:"satellite"`
	FileType     string           `json:"file_type" yaml:"file_type"`
	Collection   string           `json:"collection,omitempty" yaml:"collection,omitempty"`
	DataInterval granule.Interval `json:"data_interval" yaml:"data_interval"`
}

// Catalog answers granule queries. Implementations must be safe for
// concurrent use.
type Catalog interface {
	// Files returns every file of the given type whose data interval starts
	// inside interval, in catalog order.
	Files(ctx context.Context, sensor, satellite, fileType string, interval granule.Interval) ([]File, error)
	// File returns the file of the given type covering t. It fails with a
	// not-found error when nothing is catalogued and a not-ready error when
	// the entry exists but the file is not usable yet.
	File(ctx context.Context, sensor, satellite, fileType string, t time.Time) (File, error)
}

// CheckReady verifies that a catalogued file is present and non-empty on
// disk.
func CheckReady(f File) error {
	fi, err := os.Stat(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotReadyError(f.FileType, f.Satellite, "catalogued file "+f.Path+" does not exist yet")
		}
		return errors.Wrap(errors.ErrCodeFileReadFailed, errors.KindIO, "stat "+f.Path, err)
	}
	if fi.IsDir() {
		return errors.NewNotFoundError(f.FileType, f.Satellite, f.Path+" is a directory")
	}
	if fi.Size() == 0 {
		return errors.NewNotReadyError(f.FileType, f.Satellite, f.Path+" is empty")
	}
	return nil
}

// selectCovering returns the candidate covering t, preferring the latest
// start when several overlap.
func selectCovering(files []File, t time.Time) (File, bool) {
	var (
		best  File
		found bool
	)
	for _, f := range files {
		if !f.DataInterval.Contains(t) {
			continue
		}
		if !found || f.DataInterval.Left.After(best.DataInterval.Left) {
			best, found = f, true
		}
	}
	return best, found
}

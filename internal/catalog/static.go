package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
)

// Static is an in-memory catalog. It is used when granules are supplied
// directly on the command line and in tests.
type Static struct {
	files []File
	// AssumeReady skips the on-disk readiness check in File.
	AssumeReady bool
}

// NewStatic returns a catalog holding files in the given order.
func NewStatic(files ...File) *Static {
	return &Static{files: append([]File(nil), files...)}
}

// Files implements Catalog.
func (s *Static) Files(ctx context.Context, sensor, satellite, fileType string, interval granule.Interval) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []File
	for _, f := range s.files {
		if s.matches(f, sensor, satellite, fileType) && interval.Contains(f.DataInterval.Left) {
			out = append(out, f)
		}
	}
	return out, nil
}

// File implements Catalog.
func (s *Static) File(ctx context.Context, sensor, satellite, fileType string, t time.Time) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	var candidates []File
	for _, f := range s.files {
		if s.matches(f, sensor, satellite, fileType) {
			candidates = append(candidates, f)
		}
	}
	f, ok := selectCovering(candidates, t.UTC())
	if !ok {
		return File{}, errors.NewNotFoundError(fileType, satellite,
			fmt.Sprintf("no %s granule covers %s", fileType, t.UTC().Format(time.RFC3339)))
	}
	if !s.AssumeReady {
		if err := CheckReady(f); err != nil {
			return File{}, err
		}
	}
	return f, nil
}

func (s *Static) matches(f File, sensor, satellite, fileType string) bool {
	return f.Sensor == sensor && f.FileType == fileType &&
		strings.EqualFold(f.Satellite, strings.TrimSpace(satellite))
}

// FileFromPath builds a catalog entry from a granule path.
func FileFromPath(path, sensor, fileType string) (File, error) {
	info, err := granule.ParseFilename(path)
	if err != nil {
		return File{}, err
	}
	return File{
		Path:         path,
		Sensor:       sensor,
		Satellite:    info.Satellite,
		FileType:     fileType,
		DataInterval: info.Interval,
	}, nil
}

var _ Catalog = (*Static)(nil)

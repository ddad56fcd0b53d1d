package catalog

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/felixgeelhaar/hirs-avhrr/internal/config"
	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
	"github.com/felixgeelhaar/hirs-avhrr/internal/log"
	"github.com/felixgeelhaar/hirs-avhrr/internal/metrics"
)

const listCacheSize = 32

// fileTypeSensors says which sensor each data list belongs to.
var fileTypeSensors = map[string]string{
	config.FileTypeHIR1B: SensorHIRS,
	config.FileTypePTMSX: SensorAVHRR,
}

// DataList is a catalog backed by plain-text data lists, one granule path
// per line. Lists are re-read only when their size or modification time
// changes.
type DataList struct {
	lists       map[string]string
	collections map[string]string
	cache       *lru.Cache[string, []File]
	logger      *log.Logger
	metrics     *metrics.Metrics
}

// WithMetrics records cache hits and misses on m.
func (d *DataList) WithMetrics(m *metrics.Metrics) *DataList {
	d.metrics = m
	return d
}

// NewDataList builds a catalog from input sources whose {satellite}
// placeholders have already been expanded.
func NewDataList(sources config.InputSources, logger *log.Logger) (*DataList, error) {
	cache, err := lru.New[string, []File](listCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create list cache: %w", err)
	}
	if logger == nil {
		logger = log.Discard()
	}

	d := &DataList{
		lists:       make(map[string]string, len(sources.InputData)),
		collections: make(map[string]string, len(sources.Collection)),
		cache:       cache,
		logger:      logger.With("component", "datalist"),
	}
	for ft, path := range sources.InputData {
		d.lists[ft] = path
	}
	for ft, coll := range sources.Collection {
		d.collections[ft] = coll
	}
	return d, nil
}

// Files implements Catalog.
func (d *DataList) Files(ctx context.Context, sensor, satellite, fileType string, interval granule.Interval) ([]File, error) {
	entries, err := d.entries(ctx, sensor, satellite, fileType)
	if err != nil {
		return nil, err
	}

	var out []File
	for _, f := range entries {
		if interval.Contains(f.DataInterval.Left) {
			out = append(out, f)
		}
	}
	return out, nil
}

// File implements Catalog.
func (d *DataList) File(ctx context.Context, sensor, satellite, fileType string, t time.Time) (File, error) {
	entries, err := d.entries(ctx, sensor, satellite, fileType)
	if err != nil {
		return File{}, err
	}

	f, ok := selectCovering(entries, t.UTC())
	if !ok {
		return File{}, errors.NewNotFoundError(fileType, satellite,
			fmt.Sprintf("no %s granule covers %s in %s", fileType, t.UTC().Format(time.RFC3339), d.lists[fileType]))
	}
	if err := CheckReady(f); err != nil {
		return File{}, err
	}
	return f, nil
}

// entries returns the list entries for one satellite.
func (d *DataList) entries(ctx context.Context, sensor, satellite, fileType string) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, ok := d.lists[fileType]
	if !ok {
		return nil, errors.NewNotFoundError(fileType, satellite, "no data list configured for file type")
	}
	if want := fileTypeSensors[fileType]; want != "" && want != sensor {
		return nil, errors.NewNotFoundError(fileType, satellite,
			fmt.Sprintf("file type %s belongs to sensor %s, not %s", fileType, want, sensor))
	}
	if _, ok := granule.CodeForSatellite(satellite); !ok {
		return nil, errors.NewNotFoundError(fileType, satellite, "unknown satellite")
	}

	all, err := d.load(path, sensor, fileType)
	if err != nil {
		return nil, err
	}

	satellite = strings.ToLower(strings.TrimSpace(satellite))
	var out []File
	for _, f := range all {
		if f.Satellite == satellite {
			out = append(out, f)
		}
	}
	return out, nil
}

// load returns the parsed list at path, reading it again only if the file
// changed since the cached copy.
func (d *DataList) load(path, sensor, fileType string) ([]File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(fileType, "", "data list "+path+" does not exist")
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, errors.KindIO, "stat data list "+path, err)
	}

	key := fmt.Sprintf("%s|%d|%d", path, fi.Size(), fi.ModTime().UnixNano())
	if files, ok := d.cache.Get(key); ok {
		d.metrics.RecordDataListLoad(fileType, true)
		return files, nil
	}
	d.metrics.RecordDataListLoad(fileType, false)

	files, err := d.read(path, sensor, fileType)
	if err != nil {
		return nil, err
	}
	d.cache.Add(key, files)
	d.logger.Debug("data list loaded", "path", path, "file_type", fileType, "entries", len(files))
	return files, nil
}

func (d *DataList) read(path, sensor, fileType string) ([]File, error) {
	var files []File
	err := scanList(path, func(lineNo int, entry string) {
		info, err := granule.ParseFilename(entry)
		if err != nil {
			d.logger.Warn("skipping unparseable data list entry",
				"path", path, "line", lineNo, "entry", entry, "error", err.Error())
			return
		}
		files = append(files, File{
			Path:         entry,
			Sensor:       sensor,
			Satellite:    info.Satellite,
			FileType:     fileType,
			Collection:   d.collections[fileType],
			DataInterval: info.Interval,
		})
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// scanList calls fn for every non-blank, non-comment line of the data list
// at path.
func scanList(path string, fn func(lineNo int, entry string)) error {
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("", "", "data list "+path+" does not exist")
		}
		return errors.Wrap(errors.ErrCodeFileReadFailed, errors.KindIO, "open data list "+path, err)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, errors.KindIO, "read data list "+path, err)
	}
	return nil
}

var _ Catalog = (*DataList)(nil)

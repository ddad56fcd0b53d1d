package catalog

import (
	"github.com/felixgeelhaar/hirs-avhrr/internal/granule"
)

// ListStats summarises the entries of one data list.
type ListStats struct {
	Path        string           `json:"path" yaml:"path"`
	Entries     int              `json:"entries" yaml:"entries"`
	Unparseable int              `json:"unparseable" yaml:"unparseable"`
	Satellites  map[string]int   `json:"satellites,omitempty" yaml:"satellites,omitempty"`
	Span        granule.Interval `json:"span" yaml:"span"`
}

// StatList reads the data list at path and reports how many entries it has,
// how many could not be parsed and the time span the parsed ones cover.
func StatList(path string) (ListStats, error) {
	st := ListStats{Path: path, Satellites: map[string]int{}}
	err := scanList(path, func(_ int, entry string) {
		st.Entries++
		info, err := granule.ParseFilename(entry)
		if err != nil {
			st.Unparseable++
			return
		}
		sat := info.Satellite
		if sat == "" {
			sat = info.SatelliteCode
		}
		st.Satellites[sat]++
		if st.Span.IsZero() {
			st.Span = info.Interval
			return
		}
		if info.Interval.Left.Before(st.Span.Left) {
			st.Span.Left = info.Interval.Left
		}
		if info.Interval.Right.After(st.Span.Right) {
			st.Span.Right = info.Interval.Right
		}
	})
	if err != nil {
		return ListStats{}, err
	}
	return st, nil
}

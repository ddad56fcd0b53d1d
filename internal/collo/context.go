// Package collo finds HIRS/AVHRR collocation contexts and runs the
// collocation executable for each of them.
package collo

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// Context keys as handed to external submitters.
const (
	KeyGranule      = "granule"
	KeySatellite    = "satellite"
	KeyHirsVersion  = "hirs_version"
	KeyColloVersion = "collo_version"
)

const keyTimeLayout = "20060102T150405Z"

// Context identifies one unit of work: the HIRS granule start time, the
// platform and the versions of the HIRS input and the collocation code.
type Context struct {
	Granule      time.Time `json:"granule" yaml:"granule"`
	Satellite    string    `json:"satellite" yaml:"satellite"`
	HirsVersion  string    `json:"hirs_version" yaml:"hirs_version"`
	ColloVersion string    `json:"collo_version" yaml:"collo_version"`
}

// NewContext normalises its arguments: the granule is converted to UTC and
// the satellite lower-cased.
func NewContext(granule time.Time, satellite, hirsVersion, colloVersion string) Context {
	return Context{
		Granule:      granule.UTC(),
		Satellite:    strings.ToLower(strings.TrimSpace(satellite)),
		HirsVersion:  hirsVersion,
		ColloVersion: colloVersion,
	}
}

// ContextFromMap rebuilds a context from the form produced by Map.
func ContextFromMap(m map[string]string) (Context, error) {
	for _, k := range []string{KeyGranule, KeySatellite, KeyHirsVersion, KeyColloVersion} {
		if strings.TrimSpace(m[k]) == "" {
			return Context{}, errors.New(errors.ErrCodeConfigInvalid, errors.KindConfig,
				fmt.Sprintf("context is missing %q", k))
		}
	}
	g, err := time.Parse(time.RFC3339, m[KeyGranule])
	if err != nil {
		return Context{}, errors.Wrap(errors.ErrCodeParseTimestamp, errors.KindParseFailure,
			fmt.Sprintf("context granule %q", m[KeyGranule]), err)
	}
	return NewContext(g, m[KeySatellite], m[KeyHirsVersion], m[KeyColloVersion]), nil
}

// Map returns the context as a flat string map.
func (c Context) Map() map[string]string {
	return map[string]string{
		KeyGranule:      c.Granule.UTC().Format(time.RFC3339),
		KeySatellite:    c.Satellite,
		KeyHirsVersion:  c.HirsVersion,
		KeyColloVersion: c.ColloVersion,
	}
}

// Key returns a stable identifier that is safe to use as a file name.
func (c Context) Key() string {
	return strings.Join([]string{
		keySafe(c.Satellite),
		c.Granule.UTC().Format(keyTimeLayout),
		keySafe(c.HirsVersion),
		keySafe(c.ColloVersion),
	}, "_")
}

func (c Context) String() string {
	return fmt.Sprintf("%s %s (hirs %s, collo %s)",
		c.Satellite, c.Granule.UTC().Format(time.RFC3339), c.HirsVersion, c.ColloVersion)
}

// Equal reports whether all fields match.
func (c Context) Equal(o Context) bool {
	return c.Granule.Equal(o.Granule) &&
		c.Satellite == o.Satellite &&
		c.HirsVersion == o.HirsVersion &&
		c.ColloVersion == o.ColloVersion
}

// Less orders by granule, then satellite, then versions.
func (c Context) Less(o Context) bool {
	if !c.Granule.Equal(o.Granule) {
		return c.Granule.Before(o.Granule)
	}
	if c.Satellite != o.Satellite {
		return c.Satellite < o.Satellite
	}
	if c.HirsVersion != o.HirsVersion {
		return c.HirsVersion < o.HirsVersion
	}
	return c.ColloVersion < o.ColloVersion
}

// SortContexts sorts in place using Less.
func SortContexts(contexts []Context) {
	sort.SliceStable(contexts, func(i, j int) bool {
		return contexts[i].Less(contexts[j])
	})
}

func keySafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
}

package granule

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// Info holds the fields decoded from a granule name of the form
//
//	NSS.<instr>.<sat>.D<YY><DOY>.S<HHMM>.E<HHMM>.<orbit>.<station>[...]
type Info struct {
	Name          string
	Instrument    string
	SatelliteCode string
	// Satellite is the platform name for SatelliteCode, empty if unknown.
	Satellite string
	Interval  Interval

	stamp string
}

// Stamp returns the D<YY><DOY>.S<HHMM>.E<HHMM> segment of the name.
func (i Info) Stamp() string {
	return i.stamp
}

// ParseInterval returns the observation interval encoded in a granule name.
func ParseInterval(name string) (Interval, error) {
	info, err := ParseFilename(name)
	if err != nil {
		return Interval{}, err
	}
	return info.Interval, nil
}

// ParseFilename decodes a granule name. Directory components are ignored.
// When the end time of day is earlier than the start the granule crosses
// midnight and the end is moved to the following day.
func ParseFilename(name string) (Info, error) {
	base := filepath.Base(strings.TrimSpace(name))
	fields := strings.Split(base, ".")
	if len(fields) < 6 {
		return Info{}, errors.NewParseError(errors.ErrCodeParseFilename, base,
			fmt.Sprintf("expected at least 6 dot-separated fields, got %d", len(fields)))
	}
	if fields[0] != "NSS" {
		return Info{}, errors.NewParseError(errors.ErrCodeParseFilename, base, "missing NSS prefix")
	}
	if fields[1] == "" || !isUpperAlnum(fields[1]) {
		return Info{}, errors.NewParseError(errors.ErrCodeParseFilename, base, "bad instrument field")
	}
	if len(fields[2]) != 2 || !isUpperAlnum(fields[2]) {
		return Info{}, errors.NewParseError(errors.ErrCodeParseFilename, base, "bad satellite field")
	}

	day, err := parseDate(fields[3])
	if err != nil {
		return Info{}, errors.NewParseError(errors.ErrCodeParseTimestamp, base, err.Error())
	}
	startOffset, err := parseClock(fields[4], 'S')
	if err != nil {
		return Info{}, errors.NewParseError(errors.ErrCodeParseTimestamp, base, err.Error())
	}
	endOffset, err := parseClock(fields[5], 'E')
	if err != nil {
		return Info{}, errors.NewParseError(errors.ErrCodeParseTimestamp, base, err.Error())
	}

	begin := day.Add(startOffset)
	end := day.Add(endOffset)
	if end.Before(begin) {
		end = end.AddDate(0, 0, 1)
	}

	sat, _ := SatelliteForCode(fields[2])
	return Info{
		Name:          base,
		Instrument:    fields[1],
		SatelliteCode: fields[2],
		Satellite:     sat,
		Interval:      Interval{Left: begin, Right: end},
		stamp:         strings.Join(fields[3:6], "."),
	}, nil
}

// parseDate decodes D<YY><DOY>. Years 70-99 are 19xx, 00-69 are 20xx.
func parseDate(field string) (time.Time, error) {
	if len(field) != 6 || field[0] != 'D' || !isDigits(field[1:]) {
		return time.Time{}, fmt.Errorf("bad date field %q", field)
	}
	yy, _ := strconv.Atoi(field[1:3])
	doy, _ := strconv.Atoi(field[3:6])

	year := 2000 + yy
	if yy >= 70 {
		year = 1900 + yy
	}

	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	daysInYear := jan1.AddDate(1, 0, 0).Sub(jan1).Hours() / 24
	if doy < 1 || float64(doy) > daysInYear {
		return time.Time{}, fmt.Errorf("day of year %d out of range for %d", doy, year)
	}
	return jan1.AddDate(0, 0, doy-1), nil
}

// parseClock decodes <prefix><HHMM> into an offset from midnight.
func parseClock(field string, prefix byte) (time.Duration, error) {
	if len(field) != 5 || field[0] != prefix || !isDigits(field[1:]) {
		return 0, fmt.Errorf("bad %c time field %q", prefix, field)
	}
	hh, _ := strconv.Atoi(field[1:3])
	mm, _ := strconv.Atoi(field[3:5])
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("time %02d:%02d out of range in %q", hh, mm, field)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUpperAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

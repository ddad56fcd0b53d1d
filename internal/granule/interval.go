// Package granule parses NOAA/EUMETSAT level-1b and PATMOS-x granule file
// names and provides the time interval type shared by the catalog, the
// context finder and the task runner.
package granule

import (
	"fmt"
	"time"
)

// Interval is a closed time span [Left, Right] in UTC.
type Interval struct {
	Left  time.Time `json:"left" yaml:"left"`
	Right time.Time `json:"right" yaml:"right"`
}

// NewInterval returns [left, right] converted to UTC. It fails when left is
// after right.
func NewInterval(left, right time.Time) (Interval, error) {
	if left.After(right) {
		return Interval{}, fmt.Errorf("interval left %s is after right %s",
			left.UTC().Format(time.RFC3339), right.UTC().Format(time.RFC3339))
	}
	return Interval{Left: left.UTC(), Right: right.UTC()}, nil
}

// MustInterval is NewInterval for literals known to be ordered.
func MustInterval(left, right time.Time) Interval {
	iv, err := NewInterval(left, right)
	if err != nil {
		panic(err)
	}
	return iv
}

// Contains reports whether t lies in [Left, Right].
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Left) && !t.After(i.Right)
}

// Overlaps reports whether the two closed intervals share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return !i.Right.Before(o.Left) && !o.Right.Before(i.Left)
}

// Duration returns Right - Left.
func (i Interval) Duration() time.Duration {
	return i.Right.Sub(i.Left)
}

// IsZero reports whether both bounds are unset.
func (i Interval) IsZero() bool {
	return i.Left.IsZero() && i.Right.IsZero()
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s]", i.Left.Format(time.RFC3339), i.Right.Format(time.RFC3339))
}

// Wedge is the one-second gap used to turn half-open month ranges into closed
// intervals.
const Wedge = time.Second

// MonthlyIntervals splits [start, end] into calendar months. Every interval
// but possibly the first and last spans first-of-month 00:00:00 to
// last-of-month 23:59:59; the first starts at start and the last ends at end.
func MonthlyIntervals(start, end time.Time) ([]Interval, error) {
	start, end = start.UTC(), end.UTC()
	if start.After(end) {
		return nil, fmt.Errorf("start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	var out []Interval
	cur := start
	for !cur.After(end) {
		monthStart := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC)
		next := monthStart.AddDate(0, 1, 0)
		right := next.Add(-Wedge)
		if right.After(end) {
			right = end
		}
		out = append(out, Interval{Left: cur, Right: right})
		cur = next
	}
	return out, nil
}

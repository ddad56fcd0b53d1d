package granule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestNewInterval(t *testing.T) {
	_, err := NewInterval(date(2017, 7, 2, 0, 0, 0), date(2017, 7, 1, 0, 0, 0))
	assert.Error(t, err)

	iv, err := NewInterval(date(2017, 7, 1, 0, 0, 0), date(2017, 7, 1, 0, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, iv.Duration())
}

func TestIntervalContains(t *testing.T) {
	iv := MustInterval(date(2017, 7, 1, 0, 0, 0), date(2017, 7, 1, 23, 59, 59))

	assert.True(t, iv.Contains(iv.Left))
	assert.True(t, iv.Contains(iv.Right))
	assert.True(t, iv.Contains(date(2017, 7, 1, 0, 32, 0)))
	assert.False(t, iv.Contains(date(2017, 6, 30, 23, 59, 59)))
	assert.False(t, iv.Contains(date(2017, 7, 2, 0, 0, 0)))
}

func TestIntervalOverlaps(t *testing.T) {
	a := MustInterval(date(2017, 7, 1, 0, 0, 0), date(2017, 7, 1, 2, 0, 0))
	b := MustInterval(date(2017, 7, 1, 2, 0, 0), date(2017, 7, 1, 4, 0, 0))
	c := MustInterval(date(2017, 7, 1, 4, 0, 1), date(2017, 7, 1, 5, 0, 0))

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c))
}

func TestMonthlyIntervals(t *testing.T) {
	ivs, err := MonthlyIntervals(date(2017, 7, 1, 0, 0, 0), date(2017, 12, 31, 23, 59, 59))
	require.NoError(t, err)
	require.Len(t, ivs, 6)

	assert.Equal(t, date(2017, 7, 1, 0, 0, 0), ivs[0].Left)
	assert.Equal(t, date(2017, 7, 31, 23, 59, 59), ivs[0].Right)
	assert.Equal(t, date(2017, 12, 1, 0, 0, 0), ivs[5].Left)
	assert.Equal(t, date(2017, 12, 31, 23, 59, 59), ivs[5].Right)

	for i := 1; i < len(ivs); i++ {
		assert.Equal(t, ivs[i-1].Right.Add(Wedge), ivs[i].Left, "months must be contiguous")
	}
}

func TestMonthlyIntervalsPartial(t *testing.T) {
	ivs, err := MonthlyIntervals(date(2016, 2, 15, 6, 0, 0), date(2016, 3, 10, 0, 0, 0))
	require.NoError(t, err)
	require.Len(t, ivs, 2)

	assert.Equal(t, date(2016, 2, 15, 6, 0, 0), ivs[0].Left)
	assert.Equal(t, date(2016, 2, 29, 23, 59, 59), ivs[0].Right)
	assert.Equal(t, date(2016, 3, 1, 0, 0, 0), ivs[1].Left)
	assert.Equal(t, date(2016, 3, 10, 0, 0, 0), ivs[1].Right)

	_, err = MonthlyIntervals(date(2016, 3, 1, 0, 0, 0), date(2016, 2, 1, 0, 0, 0))
	assert.Error(t, err)
}

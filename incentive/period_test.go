package incentive_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
)

// =============================================================================
// PERIOD WINDOW TESTS
// =============================================================================

func TestWeekWindow_ISOWeek(t *testing.T) {
	// GIVEN: Wednesday 12 Feb 2025
	// WHEN: Taking its week
	// THEN: ISO week 7, Monday 10 Feb to Sunday 16 Feb
	w := incentive.WeekWindow(time.Date(2025, time.February, 12, 15, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-W07", w.Key)
	assert.Equal(t, incentive.CadenceWeekly, w.Cadence)
	assert.Equal(t, time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC), w.Start)
	assert.True(t, w.Contains(time.Date(2025, time.February, 16, 23, 59, 59, 999999999, time.UTC)))
	assert.False(t, w.Contains(time.Date(2025, time.February, 17, 0, 0, 0, 0, time.UTC)))
}

func TestWeekWindow_YearBoundary(t *testing.T) {
	// 29 Dec 2025 (Monday) belongs to ISO week 1 of 2026
	w := incentive.WeekWindow(time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-W01", w.Key)
	assert.Equal(t, time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC), w.Start)
}

func TestMonthWindow(t *testing.T) {
	w := incentive.MonthWindow(time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02", w.Key)
	assert.True(t, w.Contains(time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseWindow_RoundTrip(t *testing.T) {
	for _, key := range []string{"2025-W01", "2025-W07", "2026-W53", "2025-03", "2024-12"} {
		w, err := incentive.ParseWindow(key)
		require.NoError(t, err, key)
		assert.Equal(t, key, w.Key)
	}
}

func TestParseWindow_Invalid(t *testing.T) {
	// 2025 has only 52 ISO weeks
	for _, key := range []string{"", "2025", "2025-W00", "2025-W53", "2025-W54", "2025-13", "march"} {
		_, err := incentive.ParseWindow(key)
		assert.ErrorIs(t, err, incentive.ErrInvalidPeriod, key)
	}
}

func TestWindow_NextAndPreviousAreContiguous(t *testing.T) {
	start := incentive.WeekWindow(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
	w := start
	for i := 0; i < 60; i++ {
		next := w.Next()
		assert.Equal(t, w.End.Add(time.Nanosecond), next.Start)
		assert.Equal(t, w, next.Previous())
		w = next
	}

	m := incentive.MonthWindow(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC))
	for i := 0; i < 14; i++ {
		next := m.Next()
		assert.Equal(t, m.End.Add(time.Nanosecond), next.Start)
		assert.Equal(t, m, next.Previous())
		m = next
	}
	assert.Equal(t, "2026-03", m.Key)
}

func TestNewWindow(t *testing.T) {
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)

	w, err := incentive.NewWindow(from, to)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01..2025-01-31", w.Key)
	assert.Equal(t, incentive.CadenceCustom, w.Cadence)

	_, err = incentive.NewWindow(to, from)
	assert.ErrorIs(t, err, incentive.ErrInvalidPeriod)
}

func TestWindowFor(t *testing.T) {
	at := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)

	w, err := incentive.WindowFor(incentive.CadenceMonthly, at)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", w.Key)

	_, err = incentive.WindowFor(incentive.CadenceCustom, at)
	assert.ErrorIs(t, err, incentive.ErrInvalidPeriod)
}

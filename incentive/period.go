package incentive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD WINDOW - Scope of aggregation and award guards
// =============================================================================

// Cadence is the award period length.
type Cadence string

const (
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceCustom  Cadence = "custom"
)

// PeriodWindow is an inclusive [Start, End] range with a stable key.
//
// Examples:
//   - ISO week 7 of 2025: key "2025-W07", Mon 10 Feb 00:00 - Sun 16 Feb 23:59:59.999999999
//   - March 2025:         key "2025-03"
//   - Custom range:       key "2025-01-01..2025-01-31"
type PeriodWindow struct {
	Start   time.Time
	End     time.Time
	Key     string
	Cadence Cadence
}

// Contains returns true if t is within [Start, End].
func (w PeriodWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w PeriodWindow) String() string {
	return w.Key + " [" + w.Start.Format(time.RFC3339) + ", " + w.End.Format(time.RFC3339) + "]"
}

// WeekWindow returns the ISO week containing t (UTC, Monday start).
func WeekWindow(t time.Time) PeriodWindow {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	start := day.AddDate(0, 0, -offset)
	year, week := start.ISOWeek()
	return PeriodWindow{
		Start:   start,
		End:     start.AddDate(0, 0, 7).Add(-time.Nanosecond),
		Key:     fmt.Sprintf("%04d-W%02d", year, week),
		Cadence: CadenceWeekly,
	}
}

// MonthWindow returns the calendar month containing t (UTC).
func MonthWindow(t time.Time) PeriodWindow {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return PeriodWindow{
		Start:   start,
		End:     start.AddDate(0, 1, 0).Add(-time.Nanosecond),
		Key:     start.Format("2006-01"),
		Cadence: CadenceMonthly,
	}
}

// WindowFor returns the window of the given cadence containing t.
func WindowFor(c Cadence, t time.Time) (PeriodWindow, error) {
	switch c {
	case CadenceWeekly:
		return WeekWindow(t), nil
	case CadenceMonthly:
		return MonthWindow(t), nil
	default:
		return PeriodWindow{}, fmt.Errorf("%w: unsupported cadence %q", ErrInvalidPeriod, c)
	}
}

// NewWindow builds a custom window over [start, end].
func NewWindow(start, end time.Time) (PeriodWindow, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return PeriodWindow{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return PeriodWindow{
		Start:   start,
		End:     end,
		Key:     start.Format("2006-01-02") + ".." + end.Format("2006-01-02"),
		Cadence: CadenceCustom,
	}, nil
}

// ParseWindow parses a weekly ("2025-W07") or monthly ("2025-03") key.
func ParseWindow(key string) (PeriodWindow, error) {
	if year, week, ok := strings.Cut(key, "-W"); ok {
		y, err1 := strconv.Atoi(year)
		w, err2 := strconv.Atoi(week)
		if err1 != nil || err2 != nil || w < 1 || w > 53 {
			return PeriodWindow{}, fmt.Errorf("%w: bad week key %q", ErrInvalidPeriod, key)
		}
		// January 4th is always in ISO week 1.
		jan4 := time.Date(y, time.January, 4, 0, 0, 0, 0, time.UTC)
		win := WeekWindow(jan4.AddDate(0, 0, 7*(w-1)))
		if win.Key != fmt.Sprintf("%04d-W%02d", y, w) {
			return PeriodWindow{}, fmt.Errorf("%w: year %d has no week %d", ErrInvalidPeriod, y, w)
		}
		return win, nil
	}

	t, err := time.Parse("2006-01", key)
	if err != nil {
		return PeriodWindow{}, fmt.Errorf("%w: bad period key %q", ErrInvalidPeriod, key)
	}
	return MonthWindow(t), nil
}

// Next returns the window following this one.
func (w PeriodWindow) Next() PeriodWindow {
	switch w.Cadence {
	case CadenceWeekly:
		return WeekWindow(w.End.Add(time.Nanosecond))
	case CadenceMonthly:
		return MonthWindow(w.End.Add(time.Nanosecond))
	default:
		span := w.End.Sub(w.Start)
		next, _ := NewWindow(w.End.Add(time.Nanosecond), w.End.Add(time.Nanosecond).Add(span))
		return next
	}
}

// Previous returns the window before this one.
func (w PeriodWindow) Previous() PeriodWindow {
	switch w.Cadence {
	case CadenceWeekly:
		return WeekWindow(w.Start.Add(-time.Nanosecond))
	case CadenceMonthly:
		return MonthWindow(w.Start.Add(-time.Nanosecond))
	default:
		span := w.End.Sub(w.Start)
		prev, _ := NewWindow(w.Start.Add(-time.Nanosecond).Add(-span), w.Start.Add(-time.Nanosecond))
		return prev
	}
}

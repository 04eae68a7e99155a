/*
aggregate.go - PeriodAggregator: rank staff over a window

PURPOSE:
  Counts a chosen metric per staff inside a PeriodWindow, finds the top
  value and the runner-up value, and decides whether the period has a
  winner under the margin-of-victory policy.

MARGIN POLICY:
  secondMax is the second-highest DISTINCT value, not the second staff.
  A win needs max − secondMax >= threshold:

    {A:5, B:2}, threshold 3 -> A wins        (5−2 = 3)
    {A:5, B:3}, threshold 3 -> no winner     (5−3 = 2)
    {A:6, B:6, C:2}         -> tie {A, B}    (6−2 = 4)

  When every ranked staff shares the max, secondMax is 0: staff with no
  activity in the window are implicitly at 0. A max of 0 never wins.

SEE ALSO:
  - tie.go: TieResolver consumes RankedResult.TieSet
*/
package incentive

import (
	"sort"
	"time"
)

// DefaultMarginThreshold is the observed margin-of-victory policy.
const DefaultMarginThreshold = 3

// Activity is anything attributable to a staff member at a point in time.
type Activity interface {
	ActivityStaff() StaffID
	ActivityTime() time.Time
}

// Metric returns an item's contribution to its staff's period value.
type Metric[T Activity] func(T) int

// CountAll counts every item (e.g. shifts, sales).
func CountAll[T Activity]() Metric[T] {
	return func(T) int { return 1 }
}

// CountSales counts sale events, ignoring manual adjustments and awards.
func CountSales() Metric[SaleEvent] {
	return func(e SaleEvent) int {
		if e.IsSale() {
			return 1
		}
		return 0
	}
}

// CountCategory counts sale events of one category.
func CountCategory(category string) Metric[SaleEvent] {
	return func(e SaleEvent) int {
		if e.IsSale() && e.Category == category {
			return 1
		}
		return 0
	}
}

// SumStars sums stars earned from sales.
func SumStars() Metric[SaleEvent] {
	return func(e SaleEvent) int {
		if e.IsSale() {
			return e.StarsAwarded
		}
		return 0
	}
}

// =============================================================================
// RANKED RESULT
// =============================================================================

type Standing struct {
	StaffID StaffID
	Value   int
}

// TieSet is the (possibly singleton) set of staff sharing the top value.
type TieSet struct {
	StaffIDs []StaffID // sorted
	Value    int
	RunnerUp int
}

func (t TieSet) Size() int { return len(t.StaffIDs) }

func (t TieSet) Contains(id StaffID) bool {
	for _, s := range t.StaffIDs {
		if s == id {
			return true
		}
	}
	return false
}

type RankedResult struct {
	Window    PeriodWindow
	Standings []Standing // value desc, then staff asc
	Max       int
	SecondMax int
	Margin    int
	Threshold int
	MarginMet bool

	// Winners is empty when the margin policy fails.
	Winners []StaffID
	TieSet  TieSet
}

func (r RankedResult) IsTie() bool { return len(r.Winners) > 1 }

// =============================================================================
// AGGREGATE
// =============================================================================

// Aggregate ranks items inside window by metric. A negative threshold is
// treated as 0.
func Aggregate[T Activity](items []T, metric Metric[T], window PeriodWindow, threshold int) RankedResult {
	if threshold < 0 {
		threshold = 0
	}
	result := RankedResult{Window: window, Threshold: threshold}

	totals := make(map[StaffID]int)
	for _, it := range items {
		if !window.Contains(it.ActivityTime()) {
			continue
		}
		totals[it.ActivityStaff()] += metric(it)
	}

	result.Standings = make([]Standing, 0, len(totals))
	for id, v := range totals {
		result.Standings = append(result.Standings, Standing{StaffID: id, Value: v})
	}
	sort.Slice(result.Standings, func(i, j int) bool {
		a, b := result.Standings[i], result.Standings[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return a.StaffID < b.StaffID
	})

	if len(result.Standings) == 0 {
		return result
	}

	result.Max = result.Standings[0].Value
	for _, s := range result.Standings {
		if s.Value < result.Max {
			result.SecondMax = s.Value
			break
		}
	}
	result.Margin = result.Max - result.SecondMax
	result.MarginMet = result.Max > 0 && result.Margin >= threshold
	if !result.MarginMet {
		return result
	}

	for _, s := range result.Standings {
		if s.Value != result.Max {
			break
		}
		result.Winners = append(result.Winners, s.StaffID)
	}
	result.TieSet = TieSet{
		StaffIDs: append([]StaffID(nil), result.Winners...),
		Value:    result.Max,
		RunnerUp: result.SecondMax,
	}
	return result
}

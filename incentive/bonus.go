/*
bonus.go - RetroactiveBonusJob: rewrite historical stars exactly once

PURPOSE:
  Applies a multiplier to already-recorded events in a window and returns
  the rewritten events plus the per-staff ledger deltas the rewrite implies.

CRITICAL INVARIANT:
  An event with Bonus.Applied == true is never rewritten again. Running the
  job twice over the same window changes nothing the second time, which is
  what makes re-running a whole job after a partial chunk failure safe.

ROUNDING:
  newStars = floor(stars × multiplier + 0.5), i.e. half rounds up.

REVERSAL:
  RevertBonus is the symmetric operation: it restores OriginalStars, clears
  the bonus, and yields the negative deltas. It is equally idempotent: an
  event without an applied bonus is skipped.

EXAMPLE:
  events (window W, category Insurance): e1{A, 2★}, e2{A, 1★}, e3{B, 3★, applied}
  ApplyBonus(events, {Insurance, W}, 1.5)
    -> e1 3★ (+1), e2 2★ (+1), e3 skipped
    -> StaffDeltas {A: +2}
*/
package incentive

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// AllCategories matches every category in a BonusFilter.
const AllCategories = "All"

var half = decimal.NewFromFloat(0.5)

type BonusFilter struct {
	Category string
	Window   PeriodWindow
}

func (f BonusFilter) matches(e SaleEvent) bool {
	if !f.Window.Contains(e.Timestamp) {
		return false
	}
	return f.Category == AllCategories || f.Category == "" || e.Category == f.Category
}

type BonusResult struct {
	Rewritten   []SaleEvent
	StaffDeltas map[StaffID]int
}

// TotalDelta sums StaffDeltas.
func (r BonusResult) TotalDelta() int {
	total := 0
	for _, d := range r.StaffDeltas {
		total += d
	}
	return total
}

// Staff returns the staff with a delta, sorted.
func (r BonusResult) Staff() []StaffID {
	out := make([]StaffID, 0, len(r.StaffDeltas))
	for id := range r.StaffDeltas {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RoundStars rounds half up to an integer star count.
func RoundStars(d decimal.Decimal) int {
	return int(d.Add(half).Floor().IntPart())
}

// ApplyBonus computes the retroactive rewrite. Input events are not modified.
func ApplyBonus(events []SaleEvent, f BonusFilter, multiplier decimal.Decimal) (BonusResult, error) {
	if !multiplier.IsPositive() {
		return BonusResult{}, fmt.Errorf("%w: %s must be > 0", ErrInvalidMultiplier, multiplier)
	}

	result := BonusResult{StaffDeltas: make(map[StaffID]int)}
	for _, e := range events {
		if !f.matches(e) {
			continue
		}
		if e.Bonus != nil && e.Bonus.Applied {
			continue
		}

		newStars := RoundStars(decimal.NewFromInt(int64(e.StarsAwarded)).Mul(multiplier))
		delta := newStars - e.StarsAwarded
		if delta == 0 {
			continue
		}

		rw := e.Clone()
		rw.StarsAwarded = newStars
		rw.Bonus = &BonusInfo{Applied: true, Multiplier: multiplier, OriginalStars: e.StarsAwarded}
		result.Rewritten = append(result.Rewritten, rw)
		result.StaffDeltas[e.StaffID] += delta
	}
	return result, nil
}

// RevertBonus computes the rewrite that undoes an applied bonus.
func RevertBonus(events []SaleEvent, f BonusFilter) BonusResult {
	result := BonusResult{StaffDeltas: make(map[StaffID]int)}
	for _, e := range events {
		if !f.matches(e) || e.Bonus == nil || !e.Bonus.Applied {
			continue
		}

		rw := e.Clone()
		rw.StarsAwarded = e.Bonus.OriginalStars
		rw.Bonus = nil
		result.Rewritten = append(result.Rewritten, rw)
		if delta := e.Bonus.OriginalStars - e.StarsAwarded; delta != 0 {
			result.StaffDeltas[e.StaffID] += delta
		}
	}
	return result
}

// Merge overlays rewritten events onto a snapshot by ID, returning a new slice.
// Used to reason about the state after a rewrite commits.
func Merge(snapshot, rewritten []SaleEvent) []SaleEvent {
	byID := make(map[EventID]SaleEvent, len(rewritten))
	for _, e := range rewritten {
		byID[e.ID] = e
	}
	out := make([]SaleEvent, len(snapshot))
	for i, e := range snapshot {
		if rw, ok := byID[e.ID]; ok {
			out[i] = rw.Clone()
			continue
		}
		out[i] = e.Clone()
	}
	return out
}

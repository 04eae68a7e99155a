package incentive

import "fmt"

// =============================================================================
// MULTIPLIER PROGRESS - N-for-1 accumulation
// =============================================================================

type ProgressResult struct {
	AfterCount  int
	StarsEarned int
}

// Progress computes the stars earned by the next event of a rule, given
// existingCount prior events of the same rule for the same staff.
//
// With multiplier N > 1 the event completing each group of N earns
// baseStars and every other event earns 0:
//
//	stars = baseStars × (⌊after/N⌋ − ⌊existing/N⌋)
//
// Progress is stateless. The caller must read existingCount from a
// consistent snapshot; concurrent inserts for the same (staff, rule) can
// double-award or skip a group unless the caller serializes them.
func Progress(existingCount, multiplier, baseStars int) (ProgressResult, error) {
	if existingCount < 0 {
		return ProgressResult{}, fmt.Errorf("%w: existing count %d is negative", ErrInvalidInput, existingCount)
	}
	if multiplier < 1 {
		return ProgressResult{}, fmt.Errorf("%w: multiplier %d must be >= 1", ErrInvalidRule, multiplier)
	}
	if baseStars < 0 {
		return ProgressResult{}, fmt.Errorf("%w: base stars %d must be >= 0", ErrInvalidRule, baseStars)
	}

	after := existingCount + 1
	if multiplier == 1 {
		return ProgressResult{AfterCount: after, StarsEarned: baseStars}, nil
	}
	groups := after/multiplier - existingCount/multiplier
	return ProgressResult{AfterCount: after, StarsEarned: baseStars * groups}, nil
}

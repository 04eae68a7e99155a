package incentive

import (
	"fmt"
	"sort"
)

// =============================================================================
// TIE RESOLVER - Tie set -> award distribution
// =============================================================================

type TiePolicy string

const (
	TieAll      TiePolicy = "ALL"      // every tied staff gets Amount
	TieCustom   TiePolicy = "CUSTOM"   // every tied staff gets CustomAmount
	TieRandom   TiePolicy = "RANDOM"   // one staff, uniform pick via RNG
	TieSpecific TiePolicy = "SPECIFIC" // one staff, SelectedStaffID
)

// ParseTiePolicy accepts the policy names case-sensitively as written above.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch p := TiePolicy(s); p {
	case TieAll, TieCustom, TieRandom, TieSpecific:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// RNG is the injected randomness for TieRandom. *rand.Rand satisfies it.
// Record the seed if the pick must be replayable.
type RNG interface {
	Intn(n int) int
}

type ResolveParams struct {
	Amount          int // default period award amount
	CustomAmount    int
	SelectedStaffID StaffID
	RNG             RNG
}

type AwardDistribution struct {
	StaffID StaffID
	Stars   int
}

// Resolve converts a tie set into concrete awards. A singleton tie set is
// always a trivial ALL. An empty tie set awards nothing.
func Resolve(tie TieSet, policy TiePolicy, p ResolveParams) ([]AwardDistribution, error) {
	if tie.Size() == 0 {
		return nil, nil
	}
	ids := append([]StaffID(nil), tie.StaffIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if len(ids) == 1 {
		return []AwardDistribution{{StaffID: ids[0], Stars: p.Amount}}, nil
	}

	switch policy {
	case TieAll:
		return everyone(ids, p.Amount), nil

	case TieCustom:
		return everyone(ids, p.CustomAmount), nil

	case TieRandom:
		if p.RNG == nil {
			return nil, fmt.Errorf("%w: RANDOM needs an RNG", ErrInvalidPolicy)
		}
		pick := ids[p.RNG.Intn(len(ids))]
		return []AwardDistribution{{StaffID: pick, Stars: p.Amount}}, nil

	case TieSpecific:
		if !tie.Contains(p.SelectedStaffID) {
			return nil, &InvalidSelectionError{Selected: p.SelectedStaffID, TieSet: ids}
		}
		return []AwardDistribution{{StaffID: p.SelectedStaffID, Stars: p.Amount}}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}
}

func everyone(ids []StaffID, stars int) []AwardDistribution {
	out := make([]AwardDistribution, len(ids))
	for i, id := range ids {
		out[i] = AwardDistribution{StaffID: id, Stars: stars}
	}
	return out
}

// TotalStars sums a distribution.
func TotalStars(dist []AwardDistribution) int {
	total := 0
	for _, d := range dist {
		total += d.Stars
	}
	return total
}

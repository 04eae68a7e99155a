package incentive

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BRACKET CLASSIFIER - Currency amount -> named bracket
// =============================================================================

// Bracket covers [Min, next.Min). The last bracket is open-ended.
type Bracket struct {
	Label string
	Min   decimal.Decimal
}

// BracketTable is an ordered, contiguous set of brackets starting at 0.
// The zero value classifies nothing.
type BracketTable struct {
	brackets []Bracket
}

// NewBracketTable validates and builds a table. Brackets must start at 0,
// be strictly increasing and carry unique non-empty labels, so there is no
// gap or overlap by construction.
func NewBracketTable(brackets []Bracket) (BracketTable, error) {
	if len(brackets) == 0 {
		return BracketTable{}, fmt.Errorf("%w: bracket table is empty", ErrInvalidRule)
	}
	if !brackets[0].Min.IsZero() {
		return BracketTable{}, fmt.Errorf("%w: first bracket must start at 0, got %s", ErrInvalidRule, brackets[0].Min)
	}
	seen := make(map[string]bool, len(brackets))
	for i, b := range brackets {
		if b.Label == "" {
			return BracketTable{}, fmt.Errorf("%w: bracket %d has no label", ErrInvalidRule, i)
		}
		if seen[b.Label] {
			return BracketTable{}, fmt.Errorf("%w: duplicate bracket label %q", ErrInvalidRule, b.Label)
		}
		seen[b.Label] = true
		if i > 0 && !b.Min.GreaterThan(brackets[i-1].Min) {
			return BracketTable{}, fmt.Errorf("%w: bracket %q must start above %s", ErrInvalidRule, b.Label, brackets[i-1].Min)
		}
	}
	out := make([]Bracket, len(brackets))
	copy(out, brackets)
	return BracketTable{brackets: out}, nil
}

// DefaultBrackets returns the observed table:
// <100, [100,299], [300,499], [500,999], [1000,1499], >=1500 (kr).
func DefaultBrackets() BracketTable {
	t, _ := NewBracketTable([]Bracket{
		{Label: "0-99kr x3", Min: decimal.Zero},
		{Label: "100-299kr x2", Min: decimal.NewFromInt(100)},
		{Label: "300-499kr", Min: decimal.NewFromInt(300)},
		{Label: "500-999kr", Min: decimal.NewFromInt(500)},
		{Label: "1000-1499kr", Min: decimal.NewFromInt(1000)},
		{Label: "1500kr+", Min: decimal.NewFromInt(1500)},
	})
	return t
}

// Classify maps an amount to its bracket. Amounts <= 0 have no bracket;
// the caller must reject the sale rather than score it.
func (t BracketTable) Classify(amount decimal.Decimal) (Bracket, bool) {
	if len(t.brackets) == 0 || !amount.IsPositive() {
		return Bracket{}, false
	}
	// First bracket whose Min is above amount; the one before it contains amount.
	i := sort.Search(len(t.brackets), func(i int) bool {
		return t.brackets[i].Min.GreaterThan(amount)
	})
	return t.brackets[i-1], true
}

// Brackets returns a copy of the table in ascending order.
func (t BracketTable) Brackets() []Bracket {
	out := make([]Bracket, len(t.brackets))
	copy(out, t.brackets)
	return out
}

// Upper returns the exclusive upper bound of the labelled bracket, or false
// for the open-ended top bracket.
func (t BracketTable) Upper(label string) (decimal.Decimal, bool) {
	for i, b := range t.brackets {
		if b.Label == label && i+1 < len(t.brackets) {
			return t.brackets[i+1].Min, true
		}
	}
	return decimal.Decimal{}, false
}

func (t BracketTable) has(label string) bool {
	for _, b := range t.brackets {
		if b.Label == label {
			return true
		}
	}
	return false
}

// ParseAmount parses a currency string. Non-numeric input is an
// InvalidAmount failure, not a zero.
func ParseAmount(category, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &InvalidAmountError{Category: category, Amount: s}
	}
	return d, nil
}

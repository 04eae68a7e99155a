package incentive

// =============================================================================
// EVENT SCORER - One sale in, one award out
// =============================================================================

// Rejection reasons surfaced to the UI after a sale.
const (
	RejectInvalidAmount = "invalid_amount"
	RejectUnknownRule   = "unknown_rule"
)

// ScoredEvent is the result shown immediately after a sale.
type ScoredEvent struct {
	Rule          RuleKey
	Bracket       string
	ExistingCount int
	AfterCount    int
	Stars         int

	// RecurringSuppressed is set when a recurring rule was already credited
	// in the billing period.
	RecurringSuppressed bool
	Rejected            string
}

// Scorer combines bracket classification and multiplier progress.
// It is a pure function of its inputs.
type Scorer struct {
	Brackets BracketTable
}

// Score evaluates one sale against its rule.
//
//  1. Bracketed rule: classify sale.Amount; no bracket -> InvalidAmount.
//  2. Multiplier progress from existingCount.
//  3. Recurring rule with existingCount > 0 -> 0 stars, evaluated last.
//
// The caller persists the SaleEvent and applies the delta.
func (s Scorer) Score(sale RawSale, rule ServiceRule, existingCount int) (ScoredEvent, error) {
	out := ScoredEvent{Rule: rule.Key(), ExistingCount: existingCount}

	if rule.Bracketed {
		if !sale.Amount.Valid {
			out.Rejected = RejectInvalidAmount
			return out, &InvalidAmountError{Category: rule.Category}
		}
		b, ok := s.Brackets.Classify(sale.Amount.Decimal)
		if !ok {
			out.Rejected = RejectInvalidAmount
			return out, &InvalidAmountError{Category: rule.Category, Amount: sale.Amount.Decimal.String()}
		}
		if b.Label != rule.ServiceKey {
			out.Rejected = RejectUnknownRule
			return out, &UnknownRuleError{Category: rule.Category, ServiceKey: b.Label}
		}
		out.Bracket = b.Label
	}

	p, err := Progress(existingCount, rule.Multiplier, rule.BaseStars)
	if err != nil {
		return out, err
	}
	out.AfterCount = p.AfterCount
	out.Stars = p.StarsEarned

	if rule.IsRecurring && existingCount > 0 {
		out.Stars = 0
		out.RecurringSuppressed = true
	}
	return out, nil
}

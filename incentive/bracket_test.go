package incentive_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
)

// =============================================================================
// BRACKET CLASSIFIER TESTS
// =============================================================================

func TestBrackets_Boundaries(t *testing.T) {
	table := incentive.DefaultBrackets()

	tests := []struct {
		amount string
		label  string
	}{
		{"0.01", "0-99kr x3"},
		{"99.99", "0-99kr x3"},
		{"100", "100-299kr x2"},
		{"150", "100-299kr x2"},
		{"299.99", "100-299kr x2"},
		{"300", "300-499kr"},
		{"499", "300-499kr"},
		{"500", "500-999kr"},
		{"999.5", "500-999kr"},
		{"1000", "1000-1499kr"},
		{"1499.99", "1000-1499kr"},
		{"1500", "1500kr+"},
		{"250000", "1500kr+"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			b, ok := table.Classify(decimal.RequireFromString(tt.amount))
			require.True(t, ok)
			assert.Equal(t, tt.label, b.Label)
		})
	}
}

func TestBrackets_NonPositiveHasNoBracket(t *testing.T) {
	// GIVEN: The default table
	// WHEN: Classifying zero or a negative amount
	// THEN: No bracket, the caller must reject the sale
	table := incentive.DefaultBrackets()

	for _, s := range []string{"0", "-1", "-0.01"} {
		_, ok := table.Classify(decimal.RequireFromString(s))
		assert.False(t, ok, s)
	}
}

func TestBrackets_EveryPositiveAmountHasExactlyOneBracket(t *testing.T) {
	table := incentive.DefaultBrackets()
	brackets := table.Brackets()

	for cents := int64(1); cents <= 300000; cents += 7 {
		amount := decimal.New(cents, -2)
		b, ok := table.Classify(amount)
		require.True(t, ok, amount.String())

		matches := 0
		for i, candidate := range brackets {
			inside := !amount.LessThan(candidate.Min)
			if i+1 < len(brackets) {
				inside = inside && amount.LessThan(brackets[i+1].Min)
			}
			if inside {
				matches++
				assert.Equal(t, candidate.Label, b.Label, amount.String())
			}
		}
		assert.Equal(t, 1, matches, amount.String())
	}
}

func TestNewBracketTable_Validation(t *testing.T) {
	tests := []struct {
		name     string
		brackets []incentive.Bracket
	}{
		{"empty", nil},
		{"not from zero", []incentive.Bracket{{Label: "a", Min: decimal.NewFromInt(10)}}},
		{"duplicate label", []incentive.Bracket{
			{Label: "a", Min: decimal.Zero},
			{Label: "a", Min: decimal.NewFromInt(10)},
		}},
		{"not increasing", []incentive.Bracket{
			{Label: "a", Min: decimal.Zero},
			{Label: "b", Min: decimal.NewFromInt(10)},
			{Label: "c", Min: decimal.NewFromInt(10)},
		}},
		{"missing label", []incentive.Bracket{{Min: decimal.Zero}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := incentive.NewBracketTable(tt.brackets)
			assert.ErrorIs(t, err, incentive.ErrInvalidRule)
		})
	}
}

func TestBrackets_Upper(t *testing.T) {
	table := incentive.DefaultBrackets()

	upper, ok := table.Upper("100-299kr x2")
	require.True(t, ok)
	assert.True(t, upper.Equal(decimal.NewFromInt(300)))

	_, ok = table.Upper("1500kr+")
	assert.False(t, ok, "top bracket is open-ended")
}

func TestParseAmount(t *testing.T) {
	d, err := incentive.ParseAmount("Insurance", "149.50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("149.5")))

	_, err = incentive.ParseAmount("Insurance", "abc")
	assert.ErrorIs(t, err, incentive.ErrInvalidAmount)
}

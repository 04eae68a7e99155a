package incentive_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
)

func bonusEvents() []incentive.SaleEvent {
	at := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	return []incentive.SaleEvent{
		{ID: "e1", StaffID: "A", Category: "Insurance", StarsAwarded: 2, Timestamp: at},
		{ID: "e2", StaffID: "A", Category: "Insurance", StarsAwarded: 1, Timestamp: at},
		{ID: "e3", StaffID: "B", Category: "Insurance", StarsAwarded: 3, Timestamp: at,
			Bonus: &incentive.BonusInfo{Applied: true, Multiplier: decimal.NewFromInt(2), OriginalStars: 2}},
		{ID: "e4", StaffID: "B", Category: "Finance", StarsAwarded: 3, Timestamp: at},
		{ID: "e5", StaffID: "C", Category: "Insurance", StarsAwarded: 4, Timestamp: at.AddDate(0, 1, 0)},
	}
}

// =============================================================================
// RETROACTIVE BONUS TESTS
// =============================================================================

func TestApplyBonus_RewritesMatchingOnce(t *testing.T) {
	// GIVEN: Insurance events in March, one already bonused
	// WHEN: Applying x1.5 to Insurance in March
	// THEN: e1 2->3, e2 1->2 (half rounds up), e3 skipped, e4/e5 out of scope
	events := bonusEvents()
	filter := incentive.BonusFilter{Category: "Insurance", Window: march2025()}

	r, err := incentive.ApplyBonus(events, filter, decimal.RequireFromString("1.5"))
	require.NoError(t, err)

	require.Len(t, r.Rewritten, 2)
	assert.Equal(t, 3, r.Rewritten[0].StarsAwarded)
	assert.Equal(t, 2, r.Rewritten[1].StarsAwarded)
	assert.Equal(t, 2, r.Rewritten[0].Bonus.OriginalStars)
	assert.Equal(t, map[incentive.StaffID]int{"A": 2}, r.StaffDeltas)
	assert.Equal(t, 2, r.TotalDelta())

	// THEN: Input events are untouched
	assert.Nil(t, events[0].Bonus)
	assert.Equal(t, 2, events[0].StarsAwarded)
}

func TestApplyBonus_Idempotent(t *testing.T) {
	filter := incentive.BonusFilter{Category: incentive.AllCategories, Window: march2025()}
	mult := decimal.NewFromInt(2)
	events := bonusEvents()

	first, err := incentive.ApplyBonus(events, filter, mult)
	require.NoError(t, err)
	require.NotEmpty(t, first.Rewritten)

	second, err := incentive.ApplyBonus(incentive.Merge(events, first.Rewritten), filter, mult)
	require.NoError(t, err)
	assert.Empty(t, second.Rewritten)
	assert.Equal(t, 0, second.TotalDelta())
}

func TestApplyBonus_InvalidMultiplier(t *testing.T) {
	filter := incentive.BonusFilter{Window: march2025()}
	for _, m := range []string{"0", "-1"} {
		_, err := incentive.ApplyBonus(bonusEvents(), filter, decimal.RequireFromString(m))
		assert.ErrorIs(t, err, incentive.ErrInvalidMultiplier, m)
	}
}

func TestRevertBonus_RestoresOriginal(t *testing.T) {
	filter := incentive.BonusFilter{Category: incentive.AllCategories, Window: march2025()}
	events := bonusEvents()

	applied, err := incentive.ApplyBonus(events, filter, decimal.NewFromInt(3))
	require.NoError(t, err)
	after := incentive.Merge(events, applied.Rewritten)

	reverted := incentive.RevertBonus(after, filter)
	restored := incentive.Merge(after, reverted.Rewritten)

	// THEN: Every bonus in the window is undone, including the one applied earlier
	for _, e := range restored {
		if march2025().Contains(e.Timestamp) {
			assert.Nil(t, e.Bonus, e.ID)
		}
	}
	assert.Equal(t, -applied.TotalDelta()-1, reverted.TotalDelta(), "e3 drops from 3 back to 2")
}

func TestRoundStars(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1.5", 2},
		{"2.5", 3},
		{"2.49", 2},
		{"0.5", 1},
		{"0.4", 0},
		{"3", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, incentive.RoundStars(decimal.RequireFromString(tt.in)), tt.in)
	}
}

package incentive_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
)

// =============================================================================
// TIE RESOLVER TESTS
// =============================================================================

func tieOf(ids ...incentive.StaffID) incentive.TieSet {
	return incentive.TieSet{StaffIDs: ids, Value: 6, RunnerUp: 2}
}

func TestResolve_All(t *testing.T) {
	dist, err := incentive.Resolve(tieOf("B", "A"), incentive.TieAll, incentive.ResolveParams{Amount: 2})
	require.NoError(t, err)
	assert.Equal(t, []incentive.AwardDistribution{{StaffID: "A", Stars: 2}, {StaffID: "B", Stars: 2}}, dist)
}

func TestResolve_Custom(t *testing.T) {
	dist, err := incentive.Resolve(tieOf("A", "B"), incentive.TieCustom, incentive.ResolveParams{Amount: 2, CustomAmount: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, incentive.TotalStars(dist))
	for _, d := range dist {
		assert.Equal(t, 1, d.Stars)
	}
}

func TestResolve_Specific(t *testing.T) {
	dist, err := incentive.Resolve(tieOf("A", "B"), incentive.TieSpecific, incentive.ResolveParams{Amount: 2, SelectedStaffID: "B"})
	require.NoError(t, err)
	assert.Equal(t, []incentive.AwardDistribution{{StaffID: "B", Stars: 2}}, dist)

	// THEN: Selecting someone outside the tie set is rejected
	_, err = incentive.Resolve(tieOf("A", "B"), incentive.TieSpecific, incentive.ResolveParams{Amount: 2, SelectedStaffID: "C"})
	var selErr *incentive.InvalidSelectionError
	require.ErrorAs(t, err, &selErr)
	assert.Equal(t, incentive.StaffID("C"), selErr.Selected)
}

func TestResolve_RandomIsReplayableFromSeed(t *testing.T) {
	tie := tieOf("A", "B", "C")
	params := func(seed int64) incentive.ResolveParams {
		return incentive.ResolveParams{Amount: 2, RNG: rand.New(rand.NewSource(seed))}
	}

	first, err := incentive.Resolve(tie, incentive.TieRandom, params(7))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, tie.Contains(first[0].StaffID))

	again, err := incentive.Resolve(tie, incentive.TieRandom, params(7))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = incentive.Resolve(tie, incentive.TieRandom, incentive.ResolveParams{Amount: 2})
	assert.ErrorIs(t, err, incentive.ErrInvalidPolicy)
}

func TestResolve_SingletonIsAlwaysAll(t *testing.T) {
	for _, p := range []incentive.TiePolicy{incentive.TieAll, incentive.TieCustom, incentive.TieRandom, incentive.TieSpecific} {
		dist, err := incentive.Resolve(tieOf("A"), p, incentive.ResolveParams{Amount: 2, CustomAmount: 9})
		require.NoError(t, err, p)
		assert.Equal(t, []incentive.AwardDistribution{{StaffID: "A", Stars: 2}}, dist, p)
	}
}

func TestResolve_EmptyTieAwardsNothing(t *testing.T) {
	dist, err := incentive.Resolve(incentive.TieSet{}, incentive.TieAll, incentive.ResolveParams{Amount: 2})
	require.NoError(t, err)
	assert.Empty(t, dist)
}

func TestParseTiePolicy(t *testing.T) {
	p, err := incentive.ParseTiePolicy("RANDOM")
	require.NoError(t, err)
	assert.Equal(t, incentive.TieRandom, p)

	_, err = incentive.ParseTiePolicy("random")
	assert.ErrorIs(t, err, incentive.ErrInvalidPolicy)
}

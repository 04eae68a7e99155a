package incentive_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
)

func eventsFor(counts map[incentive.StaffID]int) []incentive.SaleEvent {
	var out []incentive.SaleEvent
	for id, n := range counts {
		for i := 0; i < n; i++ {
			out = append(out, incentive.SaleEvent{ID: incentive.EventID(fmt.Sprintf("%s-%d", id, i)), StaffID: id, StarsAwarded: 1})
		}
	}
	return out
}

// =============================================================================
// CHUNKING TESTS
// =============================================================================

func TestChunkByStaff_KeepsStaffTogether(t *testing.T) {
	events := eventsFor(map[incentive.StaffID]int{"A": 3, "B": 2, "C": 4})

	chunks := incentive.ChunkByStaff(events, 5)

	// A(3)+B(2) fill the first chunk, C(4) gets its own
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 5)
	assert.Len(t, chunks[1], 4)
	for _, e := range chunks[1] {
		assert.Equal(t, incentive.StaffID("C"), e.StaffID)
	}
}

func TestChunkByStaff_SplitsOversizedStaff(t *testing.T) {
	events := eventsFor(map[incentive.StaffID]int{"A": 7})

	chunks := incentive.ChunkByStaff(events, 3)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 1)
}

func TestChunkByStaff_NoEventLostOrDuplicated(t *testing.T) {
	events := eventsFor(map[incentive.StaffID]int{"A": 11, "B": 1, "C": 5, "D": 9, "E": 2})

	for size := 1; size <= 12; size++ {
		seen := make(map[incentive.EventID]int)
		for _, chunk := range incentive.ChunkByStaff(events, size) {
			assert.LessOrEqual(t, len(chunk), size)
			for _, e := range chunk {
				seen[e.ID]++
			}
		}
		assert.Len(t, seen, len(events), "size %d", size)
		for id, n := range seen {
			assert.Equal(t, 1, n, "%s at size %d", id, size)
		}
	}
}

func TestCompletedStaff(t *testing.T) {
	events := eventsFor(map[incentive.StaffID]int{"A": 2, "B": 4, "C": 1})
	chunks := incentive.ChunkByStaff(events, 3) // [A A] [B B B] [B C]

	require.Len(t, chunks, 3)
	assert.Empty(t, incentive.CompletedStaff(chunks, 0))
	assert.Equal(t, []incentive.StaffID{"A"}, incentive.CompletedStaff(chunks, 1))
	assert.Equal(t, []incentive.StaffID{"A"}, incentive.CompletedStaff(chunks, 2), "B is split across the failed chunk")
	assert.Equal(t, []incentive.StaffID{"A", "B", "C"}, incentive.CompletedStaff(chunks, 3))
}

// =============================================================================
// FINGERPRINT TESTS
// =============================================================================

func TestDistributionFingerprint_OrderIndependent(t *testing.T) {
	a := []incentive.AwardDistribution{{StaffID: "A", Stars: 2}, {StaffID: "B", Stars: 2}}
	b := []incentive.AwardDistribution{{StaffID: "B", Stars: 2}, {StaffID: "A", Stars: 2}}

	fa := incentive.DistributionFingerprint("weekly_shifts", "2025-W07", incentive.TieAll, a)
	assert.Equal(t, fa, incentive.DistributionFingerprint("weekly_shifts", "2025-W07", incentive.TieAll, b))
	assert.Len(t, fa, 64)

	assert.NotEqual(t, fa, incentive.DistributionFingerprint("weekly_shifts", "2025-W08", incentive.TieAll, a))
	assert.NotEqual(t, fa, incentive.DistributionFingerprint("weekly_shifts", "2025-W07", incentive.TieCustom, a))
}

func TestRewriteFingerprint_ChangesWithStars(t *testing.T) {
	r1 := incentive.BonusResult{Rewritten: []incentive.SaleEvent{{ID: "e1", StaffID: "A", StarsAwarded: 2}}}
	r2 := incentive.BonusResult{Rewritten: []incentive.SaleEvent{{ID: "e1", StaffID: "A", StarsAwarded: 3}}}

	assert.NotEqual(t, incentive.RewriteFingerprint("bonus", r1), incentive.RewriteFingerprint("bonus", r2))
	assert.NotEqual(t, incentive.RewriteFingerprint("bonus", r1), incentive.RewriteFingerprint("revert_bonus", r1))
}

func TestResetFingerprint(t *testing.T) {
	events := eventsFor(map[incentive.StaffID]int{"A": 2})
	reversed := []incentive.SaleEvent{events[1], events[0]}

	assert.Equal(t, incentive.ResetFingerprint(events), incentive.ResetFingerprint(reversed))
	assert.NotEqual(t, incentive.ResetFingerprint(events), incentive.ResetFingerprint(events[:1]))
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/incentive/store"
	"github.com/warp/star-engine/service"
)

// faultyStore fails every ledger increment for one staff, inside and
// outside transactions.
type faultyStore struct {
	incentive.Store
	failFor incentive.StaffID
}

var errDiskFull = errors.New("disk full")

func (f *faultyStore) Increment(ctx context.Context, staffID incentive.StaffID, field incentive.LedgerField, delta int) error {
	if staffID == f.failFor {
		return errDiskFull
	}
	return f.Store.Increment(ctx, staffID, field, delta)
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(incentive.Store) error) error {
	return f.Store.WithTx(ctx, func(tx incentive.Store) error {
		return fn(&faultyStore{Store: tx, failFor: f.failFor})
	})
}

func marchWindow() incentive.PeriodWindow {
	return incentive.MonthWindow(march(1, 0))
}

// seedMarch gives anna two credit accounts (3 stars each) and ben one
// charger (1 star) in March, plus an April sale for anna.
func (f *fixture) seedMarch(t *testing.T) {
	t.Helper()
	f.sale(t, "anna", "Finance", "credit-account", march(3, 10))
	f.sale(t, "anna", "Finance", "credit-account", march(4, 10))
	f.sale(t, "ben", "Accessories", "charger", march(5, 10))
	f.sale(t, "anna", "Finance", "credit-account", time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC))
}

// =============================================================================
// BONUS
// =============================================================================

func TestBonus_PreviewCommitIdempotent(t *testing.T) {
	// GIVEN: March sales worth 6 (anna) and 1 (ben) stars
	f := newFixture(t, nil, service.DefaultOptions())
	ctx := context.Background()
	f.seedMarch(t)
	req := service.BonusRequest{Category: incentive.AllCategories, Window: marchWindow(), Multiplier: decimal.RequireFromString("1.5")}

	// WHEN: A x1.5 bonus is previewed and committed
	preview, err := f.svc.PreviewBonus(ctx, req)
	require.NoError(t, err)
	assert.Len(t, preview.Result.Rewritten, 3)
	assert.Equal(t, map[incentive.StaffID]int{"anna": 4, "ben": 1}, preview.Result.StaffDeltas)

	commit, err := f.svc.CommitBonus(ctx, req, preview.Fingerprint)
	require.NoError(t, err)

	// THEN: 3 -> 5 per credit account (4.5 rounds up) and 1 -> 2 for the charger
	assert.Equal(t, 3, commit.CommittedEvents)
	assert.Equal(t, preview.Result.StaffDeltas, commit.StaffDeltas)
	assert.Equal(t, 13, f.stars(t, "anna"))
	assert.Equal(t, 2, f.stars(t, "ben"))
	f.assertNoDrift(t, "anna", "ben")

	// AND: Running the same bonus again changes nothing
	again, err := f.svc.PreviewBonus(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, again.Result.Rewritten)
	_, err = f.svc.CommitBonus(ctx, req, again.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, 13, f.stars(t, "anna"))
}

func TestBonus_CategoryFilter(t *testing.T) {
	f := newFixture(t, nil, service.DefaultOptions())
	ctx := context.Background()
	f.seedMarch(t)

	preview, err := f.svc.PreviewBonus(ctx, service.BonusRequest{Category: "Accessories", Window: marchWindow(), Multiplier: decimal.NewFromInt(3)})
	require.NoError(t, err)
	require.Len(t, preview.Result.Rewritten, 1)
	assert.Equal(t, incentive.StaffID("ben"), preview.Result.Rewritten[0].StaffID)
	assert.Equal(t, 3, preview.Result.Rewritten[0].StarsAwarded)
}

func TestBonus_Rejections(t *testing.T) {
	f := newFixture(t, nil, service.DefaultOptions())
	ctx := context.Background()
	f.seedMarch(t)

	_, err := f.svc.PreviewBonus(ctx, service.BonusRequest{Window: marchWindow(), Multiplier: decimal.Zero})
	assert.ErrorIs(t, err, incentive.ErrInvalidMultiplier)

	req := service.BonusRequest{Window: marchWindow(), Multiplier: decimal.NewFromInt(2)}
	preview, err := f.svc.PreviewBonus(ctx, req)
	require.NoError(t, err)

	// WHEN: A sale lands in the window after the preview
	f.sale(t, "ben", "Finance", "credit-account", march(20, 10))

	_, err = f.svc.CommitBonus(ctx, req, preview.Fingerprint)
	assert.ErrorIs(t, err, incentive.ErrFingerprintMismatch)
	assert.Equal(t, 4, f.stars(t, "ben"), "nothing rewritten")

	_, err = f.svc.CommitBonus(ctx, req, "")
	assert.ErrorIs(t, err, incentive.ErrInvalidInput)
}

func TestRevertBonus(t *testing.T) {
	// GIVEN: A committed x2 bonus over March
	f := newFixture(t, nil, service.DefaultOptions())
	ctx := context.Background()
	f.seedMarch(t)
	req := service.BonusRequest{Window: marchWindow(), Multiplier: decimal.NewFromInt(2)}
	preview, err := f.svc.PreviewBonus(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.CommitBonus(ctx, req, preview.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, 15, f.stars(t, "anna"))

	// WHEN: The bonus is reverted
	revert, err := f.svc.PreviewRevertBonus(ctx, service.BonusRequest{Window: marchWindow()})
	require.NoError(t, err)
	assert.Equal(t, -7, revert.Result.TotalDelta())

	commit, err := f.svc.CommitRevertBonus(ctx, service.BonusRequest{Window: marchWindow()}, revert.Fingerprint)
	require.NoError(t, err)

	// THEN: Original stars are back and the events carry no bonus
	assert.Equal(t, 3, commit.CommittedEvents)
	assert.Equal(t, 9, f.stars(t, "anna"))
	assert.Equal(t, 1, f.stars(t, "ben"))
	events, err := f.svc.Events(ctx, incentive.EventQuery{Window: &req.Window})
	require.NoError(t, err)
	for _, e := range events {
		assert.Nil(t, e.Bonus)
	}
	f.assertNoDrift(t, "anna", "ben")
}

func TestBonus_PartialBatchFailure(t *testing.T) {
	// GIVEN: One event per chunk and a store that cannot credit ben
	faulty := &faultyStore{Store: store.NewMemory()}
	f := newFixture(t, faulty, service.Options{BatchSize: 1})
	ctx := context.Background()
	f.seedMarch(t)
	faulty.failFor = "ben"

	req := service.BonusRequest{Window: marchWindow(), Multiplier: decimal.NewFromInt(2)}
	preview, err := f.svc.PreviewBonus(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.Chunks)

	// WHEN: The bonus is committed
	commit, err := f.svc.CommitBonus(ctx, req, preview.Fingerprint)

	// THEN: Anna's chunks committed, ben's chunk rolled back
	var partial *incentive.PartialBatchFailureError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, incentive.ErrPartialBatchFailure)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, []incentive.StaffID{"anna"}, partial.CompletedStaff)
	assert.Equal(t, 2, partial.CommittedEvents)
	assert.Equal(t, 2, partial.FailedChunk)
	assert.Equal(t, 3, partial.TotalChunks)
	assert.Equal(t, 2, commit.CommittedEvents)

	assert.Equal(t, 15, f.stars(t, "anna"))
	assert.Equal(t, 1, f.stars(t, "ben"))
	f.assertNoDrift(t, "anna", "ben")

	// AND: A rerun once the fault clears rewrites only ben
	faulty.failFor = ""
	rerun, err := f.svc.PreviewBonus(ctx, req)
	require.NoError(t, err)
	require.Len(t, rerun.Result.Rewritten, 1)
	_, err = f.svc.CommitBonus(ctx, req, rerun.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, 2, f.stars(t, "ben"))
	assert.Equal(t, 15, f.stars(t, "anna"))
}

// =============================================================================
// RESET
// =============================================================================

func TestReset_OneStaff(t *testing.T) {
	// GIVEN: March activity for anna and ben, an April sale and a shift
	f := newFixture(t, nil, service.DefaultOptions())
	ctx := context.Background()
	f.seedMarch(t)
	_, err := f.svc.RecordShift(ctx, "anna", march(6, 9))
	require.NoError(t, err)

	req := service.ResetRequest{Window: marchWindow(), StaffID: "anna"}
	preview, err := f.svc.PreviewReset(ctx, req)
	require.NoError(t, err)
	assert.Len(t, preview.Events, 2)
	assert.Equal(t, map[incentive.StaffID]int{"anna": -6}, preview.StaffDeltas)

	// WHEN: The reset is committed
	commit, err := f.svc.CommitReset(ctx, req, preview.Fingerprint)
	require.NoError(t, err)

	// THEN: Only anna's March events are gone, with exact reversal
	assert.Equal(t, 2, commit.CommittedEvents)
	assert.Equal(t, 3, f.stars(t, "anna"))
	assert.Equal(t, 1, f.stars(t, "ben"))
	f.assertNoDrift(t, "anna", "ben")

	led, err := f.svc.Ledger(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, 1, led.ShiftsTotal, "shifts are untouched")

	left, err := f.svc.Events(ctx, incentive.EventQuery{StaffID: "anna"})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, time.April, left[0].Timestamp.Month())
}

func TestReset_FingerprintMismatch(t *testing.T) {
	f := newFixture(t, nil, service.DefaultOptions())
	ctx := context.Background()
	f.seedMarch(t)

	req := service.ResetRequest{Window: marchWindow()}
	preview, err := f.svc.PreviewReset(ctx, req)
	require.NoError(t, err)
	assert.Len(t, preview.Events, 3)

	f.sale(t, "carl", "Services", "setup", march(30, 10))

	_, err = f.svc.CommitReset(ctx, req, preview.Fingerprint)
	assert.ErrorIs(t, err, incentive.ErrFingerprintMismatch)
	assert.Equal(t, 9, f.stars(t, "anna"))
}

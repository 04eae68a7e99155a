package incentive_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/incentive/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestReconciler() (*incentive.Reconciler, *store.Memory) {
	mem := store.NewMemory()
	clock := func() time.Time { return time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC) }
	return incentive.NewReconciler(mem).WithClock(clock), mem
}

func appendSale(t *testing.T, s incentive.Store, staff incentive.StaffID, stars int) incentive.SaleEvent {
	t.Helper()
	ctx := context.Background()
	e := incentive.SaleEvent{
		StaffID:      staff,
		Category:     "Finance",
		ServiceKey:   "credit-account",
		StarsAwarded: stars,
		Timestamp:    time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC),
	}
	id, err := s.AppendEvent(ctx, e)
	require.NoError(t, err)
	require.NoError(t, s.Increment(ctx, staff, incentive.FieldStars, stars))
	e.ID = id
	return e
}

// =============================================================================
// LEDGER RECONCILER TESTS
// =============================================================================

func TestReconciler_ApplyDelta(t *testing.T) {
	rc, mem := newTestReconciler()
	ctx := context.Background()

	require.NoError(t, rc.ApplyDelta(ctx, "anna", 3))
	require.NoError(t, rc.ApplyDelta(ctx, "anna", 0))
	require.NoError(t, rc.ApplyDelta(ctx, "anna", -1))

	led, err := mem.Ledger(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, 2, led.StarsTotal)

	assert.ErrorIs(t, rc.ApplyDelta(ctx, "", 1), incentive.ErrInvalidInput)
}

func TestReconciler_ReverseRestoresLedger(t *testing.T) {
	// GIVEN: Two sales for anna and one for ben
	// WHEN: Reversing anna's first sale and ben's sale
	// THEN: Exact negative deltas; events are gone; invariant holds
	rc, mem := newTestReconciler()
	ctx := context.Background()

	a1 := appendSale(t, mem, "anna", 3)
	appendSale(t, mem, "anna", 1)
	b1 := appendSale(t, mem, "ben", 2)

	deltas, err := rc.Reverse(ctx, []incentive.SaleEvent{a1, b1})
	require.NoError(t, err)
	assert.Equal(t, map[incentive.StaffID]int{"anna": -3, "ben": -2}, deltas)

	anna, _ := mem.Ledger(ctx, "anna")
	ben, _ := mem.Ledger(ctx, "ben")
	assert.Equal(t, 1, anna.StarsTotal)
	assert.Equal(t, 0, ben.StarsTotal)

	events, _ := mem.QueryEvents(ctx, incentive.EventQuery{})
	assert.Len(t, events, 1)

	for _, id := range []incentive.StaffID{"anna", "ben"} {
		drift, err := rc.Verify(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, drift, id)
	}
}

func TestReconciler_ApplyManualRecordsEvent(t *testing.T) {
	rc, mem := newTestReconciler()
	ctx := context.Background()
	appendSale(t, mem, "anna", 3)

	e, err := rc.ApplyManual(ctx, "anna", -2, "duplicate sale")
	require.NoError(t, err)
	assert.True(t, e.IsManual)
	assert.Equal(t, incentive.CategoryManual, e.Category)
	assert.Equal(t, "duplicate sale", e.Reason)
	assert.False(t, e.IsSale())

	led, _ := mem.Ledger(ctx, "anna")
	assert.Equal(t, 1, led.StarsTotal)

	drift, err := rc.Verify(ctx, "anna")
	require.NoError(t, err)
	assert.Zero(t, drift)

	_, err = rc.ApplyManual(ctx, "anna", 0, "noop")
	assert.ErrorIs(t, err, incentive.ErrInvalidInput)
}

func TestReconciler_VerifyReportsDrift(t *testing.T) {
	rc, mem := newTestReconciler()
	ctx := context.Background()
	appendSale(t, mem, "anna", 3)

	// Bypass the reconciler to break the invariant
	require.NoError(t, mem.Increment(ctx, "anna", incentive.FieldStars, 2))

	drift, err := rc.Verify(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, 2, drift)
}

func TestReconciler_ApplyDeltasIsAllOrNothing(t *testing.T) {
	// GIVEN: A store whose increments fail for one staff
	// WHEN: Applying deltas for several staff
	// THEN: None of them are applied
	mem := store.NewMemory()
	rc := incentive.NewReconciler(&failingIncrement{Store: mem, failFor: "carl"})
	ctx := context.Background()

	err := rc.ApplyDeltas(ctx, map[incentive.StaffID]int{"anna": 1, "ben": 2, "carl": 3})
	require.Error(t, err)

	for _, id := range []incentive.StaffID{"anna", "ben", "carl"} {
		led, _ := mem.Ledger(ctx, id)
		assert.Zero(t, led.StarsTotal, id)
	}
}

// failingIncrement wraps a Store and fails Increment for one staff, also
// inside transactions.
type failingIncrement struct {
	incentive.Store
	failFor incentive.StaffID
}

func (f *failingIncrement) Increment(ctx context.Context, staffID incentive.StaffID, field incentive.LedgerField, delta int) error {
	if staffID == f.failFor {
		return errors.New("disk full")
	}
	return f.Store.Increment(ctx, staffID, field, delta)
}

func (f *failingIncrement) WithTx(ctx context.Context, fn func(incentive.Store) error) error {
	return f.Store.WithTx(ctx, func(tx incentive.Store) error {
		return fn(&failingIncrement{Store: tx, failFor: f.failFor})
	})
}

// Package storetest holds the behaviour every incentive.Store must share.
// Store implementations run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) incentive.Store

var day = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

// Run executes the contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("AppendAndQuery", func(t *testing.T) { testAppendAndQuery(t, newStore(t)) })
	t.Run("CountEvents", func(t *testing.T) { testCountEvents(t, newStore(t)) })
	t.Run("UpdateEvent", func(t *testing.T) { testUpdateEvent(t, newStore(t)) })
	t.Run("DeleteEvents", func(t *testing.T) { testDeleteEvents(t, newStore(t)) })
	t.Run("QueryByIDs", func(t *testing.T) { testQueryByIDs(t, newStore(t)) })
	t.Run("Increment", func(t *testing.T) { testIncrement(t, newStore(t)) })
	t.Run("Shifts", func(t *testing.T) { testShifts(t, newStore(t)) })
	t.Run("AwardRecords", func(t *testing.T) { testAwardRecords(t, newStore(t)) })
	t.Run("WithTxRollback", func(t *testing.T) { testWithTxRollback(t, newStore(t)) })
	t.Run("NestedWithTx", func(t *testing.T) { testNestedWithTx(t, newStore(t)) })
}

func sale(staff incentive.StaffID, category, key string, stars int, at time.Time) incentive.SaleEvent {
	return incentive.SaleEvent{StaffID: staff, Category: category, ServiceKey: key, StarsAwarded: stars, Timestamp: at}
}

func testAppendAndQuery(t *testing.T, s incentive.Store) {
	ctx := context.Background()

	later := sale("anna", "Finance", "credit-account", 3, day.Add(2*time.Hour))
	earlier := sale("anna", "Insurance", "100-299kr x2", 0, day)
	earlier.Bracket = "100-299kr x2"
	earlier.Amount = decimal.NewNullDecimal(decimal.RequireFromString("149.90"))
	other := sale("ben", "Finance", "credit-account", 3, day.Add(time.Hour))

	ids := make([]incentive.EventID, 0, 3)
	for _, e := range []incentive.SaleEvent{later, earlier, other} {
		id, err := s.AppendEvent(ctx, e)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	all, err := s.QueryEvents(ctx, incentive.EventQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[1], all[0].ID, "ordered by timestamp")
	assert.Equal(t, "100-299kr x2", all[0].Bracket)
	require.True(t, all[0].Amount.Valid)
	assert.True(t, all[0].Amount.Decimal.Equal(decimal.RequireFromString("149.9")))
	assert.True(t, all[0].Timestamp.Equal(day))

	anna, err := s.QueryEvents(ctx, incentive.EventQuery{StaffID: "anna", Category: "Finance"})
	require.NoError(t, err)
	require.Len(t, anna, 1)
	assert.Equal(t, 3, anna[0].StarsAwarded)

	w, _ := incentive.NewWindow(day, day.Add(90*time.Minute))
	windowed, err := s.QueryEvents(ctx, incentive.EventQuery{Window: &w})
	require.NoError(t, err)
	assert.Len(t, windowed, 2)

	award := sale("anna", incentive.CategoryAward, "weekly_shifts", 2, day)
	award.PeriodTag = &incentive.PeriodTag{Cadence: incentive.CadenceWeekly, PeriodKey: "2025-W10", AwardKind: "weekly_shifts"}
	_, err = s.AppendEvent(ctx, award)
	require.NoError(t, err)

	tagged, err := s.QueryEvents(ctx, incentive.EventQuery{AwardKind: "weekly_shifts", PeriodKey: "2025-W10"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	require.NotNil(t, tagged[0].PeriodTag)
	assert.Equal(t, incentive.CadenceWeekly, tagged[0].PeriodTag.Cadence)
}

func testCountEvents(t *testing.T, s incentive.Store) {
	ctx := context.Background()
	rule := incentive.RuleKey{Category: "Subscription", ServiceKey: "mobile"}

	for _, at := range []time.Time{day, day.AddDate(0, 0, 1), day.AddDate(0, 1, 0)} {
		_, err := s.AppendEvent(ctx, sale("anna", rule.Category, rule.ServiceKey, 2, at))
		require.NoError(t, err)
	}
	_, err := s.AppendEvent(ctx, sale("ben", rule.Category, rule.ServiceKey, 2, day))
	require.NoError(t, err)

	manual := sale("anna", rule.Category, rule.ServiceKey, 1, day)
	manual.IsManual = true
	_, err = s.AppendEvent(ctx, manual)
	require.NoError(t, err)

	n, err := s.CountEvents(ctx, "anna", rule, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "manual events are not sales")

	march := incentive.MonthWindow(day)
	n, err = s.CountEvents(ctx, "anna", rule, &march)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testUpdateEvent(t *testing.T, s incentive.Store) {
	ctx := context.Background()
	id, err := s.AppendEvent(ctx, sale("anna", "Finance", "credit-account", 3, day))
	require.NoError(t, err)

	bonus := &incentive.BonusInfo{Applied: true, Multiplier: decimal.RequireFromString("1.5"), OriginalStars: 3}
	require.NoError(t, s.UpdateEvent(ctx, id, incentive.EventPatch{StarsAwarded: 5, Bonus: bonus}))

	events, err := s.QueryEvents(ctx, incentive.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 5, events[0].StarsAwarded)
	require.NotNil(t, events[0].Bonus)
	assert.True(t, events[0].Bonus.Applied)
	assert.Equal(t, 3, events[0].Bonus.OriginalStars)
	assert.True(t, events[0].Bonus.Multiplier.Equal(decimal.RequireFromString("1.5")))

	require.NoError(t, s.UpdateEvent(ctx, id, incentive.EventPatch{StarsAwarded: 3}))
	events, _ = s.QueryEvents(ctx, incentive.EventQuery{})
	assert.Nil(t, events[0].Bonus, "nil patch bonus clears it")

	err = s.UpdateEvent(ctx, "missing", incentive.EventPatch{StarsAwarded: 1})
	assert.ErrorIs(t, err, incentive.ErrEventNotFound)
}

func testDeleteEvents(t *testing.T, s incentive.Store) {
	ctx := context.Background()
	a, _ := s.AppendEvent(ctx, sale("anna", "Finance", "credit-account", 3, day))
	b, _ := s.AppendEvent(ctx, sale("anna", "Finance", "credit-account", 3, day.Add(time.Minute)))

	require.NoError(t, s.DeleteEvents(ctx, []incentive.EventID{a}))
	require.NoError(t, s.DeleteEvents(ctx, nil))

	events, err := s.QueryEvents(ctx, incentive.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, b, events[0].ID)
}

func testQueryByIDs(t *testing.T, s incentive.Store) {
	ctx := context.Background()
	a, _ := s.AppendEvent(ctx, sale("anna", "Finance", "credit-account", 3, day))
	_, _ = s.AppendEvent(ctx, sale("ben", "Finance", "credit-account", 3, day.Add(time.Minute)))
	c, _ := s.AppendEvent(ctx, sale("anna", "Accessories", "charger", 1, day.Add(2*time.Minute)))

	// A deleted ID is simply absent from the result
	require.NoError(t, s.DeleteEvents(ctx, []incentive.EventID{c}))

	events, err := s.QueryEvents(ctx, incentive.EventQuery{IDs: []incentive.EventID{a, c}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, a, events[0].ID)

	events, err = s.QueryEvents(ctx, incentive.EventQuery{IDs: []incentive.EventID{}})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = s.QueryEvents(ctx, incentive.EventQuery{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func testIncrement(t *testing.T, s incentive.Store) {
	ctx := context.Background()

	led, err := s.Ledger(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, led.StarsTotal)

	require.NoError(t, s.Increment(ctx, "anna", incentive.FieldStars, 4))
	require.NoError(t, s.Increment(ctx, "anna", incentive.FieldStars, -1))
	require.NoError(t, s.Increment(ctx, "anna", incentive.FieldShifts, 1))

	led, err = s.Ledger(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, incentive.StaffID("anna"), led.StaffID)
	assert.Equal(t, 3, led.StarsTotal)
	assert.Equal(t, 1, led.ShiftsTotal)

	assert.Error(t, s.Increment(ctx, "anna", incentive.LedgerField("bogus"), 1))
}

func testShifts(t *testing.T, s incentive.Store) {
	ctx := context.Background()
	require.NoError(t, s.AppendShift(ctx, incentive.Shift{StaffID: "anna", At: day}))
	require.NoError(t, s.AppendShift(ctx, incentive.Shift{StaffID: "ben", At: day.AddDate(0, 1, 0)}))

	got, err := s.QueryShifts(ctx, incentive.MonthWindow(day))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, incentive.StaffID("anna"), got[0].StaffID)
	assert.NotEmpty(t, got[0].ID)
}

func testAwardRecords(t *testing.T, s incentive.Store) {
	ctx := context.Background()

	rec, err := s.GetAwardRecord(ctx, "2025-W10", "weekly_shifts")
	require.NoError(t, err)
	assert.Nil(t, rec)

	seed := int64(42)
	require.NoError(t, s.SetAwardRecord(ctx, incentive.AwardRecord{
		PeriodKey: "2025-W10", Kind: "weekly_shifts", AwardedAt: day,
		Policy: incentive.TieRandom, Seed: &seed, Fingerprint: "abc",
	}))
	require.NoError(t, s.SetAwardRecord(ctx, incentive.AwardRecord{
		PeriodKey: "2025-W10", Kind: "weekly_shifts", AwardedAt: day.Add(time.Hour), Policy: incentive.TieAll,
	}))

	rec, err = s.GetAwardRecord(ctx, "2025-W10", "weekly_shifts")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, incentive.TieAll, rec.Policy, "set replaces")
	assert.Nil(t, rec.Seed)

	other, err := s.GetAwardRecord(ctx, "2025-W10", "monthly_sales")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func testWithTxRollback(t *testing.T, s incentive.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx incentive.Store) error {
		if _, err := tx.AppendEvent(ctx, sale("anna", "Finance", "credit-account", 3, day)); err != nil {
			return err
		}
		if err := tx.Increment(ctx, "anna", incentive.FieldStars, 3); err != nil {
			return err
		}
		if err := tx.SetAwardRecord(ctx, incentive.AwardRecord{PeriodKey: "2025-03", Kind: "monthly_sales", AwardedAt: day}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	events, _ := s.QueryEvents(ctx, incentive.EventQuery{})
	assert.Empty(t, events)
	led, _ := s.Ledger(ctx, "anna")
	assert.Equal(t, 0, led.StarsTotal)
	rec, _ := s.GetAwardRecord(ctx, "2025-03", "monthly_sales")
	assert.Nil(t, rec)

	// THEN: A successful transaction commits
	require.NoError(t, s.WithTx(ctx, func(tx incentive.Store) error {
		return tx.Increment(ctx, "anna", incentive.FieldStars, 1)
	}))
	led, _ = s.Ledger(ctx, "anna")
	assert.Equal(t, 1, led.StarsTotal)
}

func testNestedWithTx(t *testing.T, s incentive.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx incentive.Store) error {
		if err := tx.WithTx(ctx, func(inner incentive.Store) error {
			return inner.Increment(ctx, "anna", incentive.FieldStars, 5)
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	led, _ := s.Ledger(ctx, "anna")
	assert.Equal(t, 0, led.StarsTotal, "inner work rolls back with the outer transaction")
}

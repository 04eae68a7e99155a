/*
sqlite_test.go - Tests for the SQLite store

Tests for:
- The shared incentive.Store contract (incentive/storetest)
- File-backed persistence across reopen
- Concurrent atomic increments
- Timestamp precision round trip
*/
package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/incentive/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) incentive.Store { return newTestStore(t) })
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A file database with one event, one ledger row and one award record
	path := filepath.Join(t.TempDir(), "stars.db")
	ctx := context.Background()
	at := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

	s, err := New(path)
	require.NoError(t, err)
	_, err = s.AppendEvent(ctx, incentive.SaleEvent{StaffID: "anna", Category: "Finance", ServiceKey: "credit-account", StarsAwarded: 3, Timestamp: at})
	require.NoError(t, err)
	require.NoError(t, s.Increment(ctx, "anna", incentive.FieldStars, 3))
	require.NoError(t, s.SetAwardRecord(ctx, incentive.AwardRecord{PeriodKey: "2025-03", Kind: "monthly_sales", AwardedAt: at, Policy: incentive.TieAll}))
	require.NoError(t, s.Close())

	// WHEN: The database is reopened
	s, err = New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// THEN: Everything is still there
	events, err := s.QueryEvents(ctx, incentive.EventQuery{StaffID: "anna"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(at))

	led, err := s.Ledger(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, 3, led.StarsTotal)

	rec, err := s.GetAwardRecord(ctx, "2025-03", "monthly_sales")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, incentive.TieAll, rec.Policy)
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	// GIVEN: Many writers adding to the same staff at once
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(delta int) {
			defer wg.Done()
			assert.NoError(t, s.Increment(ctx, "anna", incentive.FieldStars, delta))
		}(i%2*2 - 1) // alternating -1 and +1
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Increment(ctx, "anna", incentive.FieldStars, 3))
		}()
	}
	wg.Wait()

	// THEN: No update is lost
	led, err := s.Ledger(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, 30, led.StarsTotal)
}

func TestStore_TimestampPrecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, time.March, 31, 23, 59, 59, 999999999, time.FixedZone("CET", 3600))
	_, err := s.AppendEvent(ctx, incentive.SaleEvent{StaffID: "anna", Category: "Finance", ServiceKey: "credit-account", StarsAwarded: 3, Timestamp: at})
	require.NoError(t, err)

	events, err := s.QueryEvents(ctx, incentive.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(at))
	assert.Equal(t, time.UTC, events[0].Timestamp.Location())

	// 23:59:59.999999999 CET is 22:59 UTC, inside March
	march := incentive.MonthWindow(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	windowed, err := s.QueryEvents(ctx, incentive.EventQuery{Window: &march})
	require.NoError(t, err)
	assert.Len(t, windowed, 1)
}

func TestStore_DuplicateEventID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := incentive.SaleEvent{ID: "fixed", StaffID: "anna", Category: "Finance", ServiceKey: "credit-account", Timestamp: time.Now()}
	_, err := s.AppendEvent(ctx, e)
	require.NoError(t, err)

	_, err = s.AppendEvent(ctx, e)
	assert.ErrorIs(t, err, incentive.ErrInvalidInput)
}

func TestStore_Staff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Increment(ctx, "ben", incentive.FieldShifts, 1))
	require.NoError(t, s.Increment(ctx, "anna", incentive.FieldStars, 2))

	staff, err := s.Staff(ctx)
	require.NoError(t, err)
	assert.Equal(t, []incentive.StaffID{"anna", "ben"}, staff)
}

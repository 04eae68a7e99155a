/*
ledger.go - LedgerReconciler: the single write path for star totals

PURPOSE:
  Every star change reaches the ledger here as a signed delta: scored
  sales, period awards, retroactive bonuses, manual adjustments, and
  reversals. Collapsing all call sites onto one atomic increment is what
  keeps totals consistent under concurrent writers.

CRITICAL INVARIANT:
  Before and after every operation:
    starsTotal == Σ starsAwarded over live events for the staff

  Manual adjustments are recorded as manual events (IsManual = true), so
  they are part of that sum.

REVERSAL:
  Reverse(events) applies −Σ starsAwarded per staff and deletes the events
  in one unit. Reversing the events of an award returns the total to its
  pre-award value exactly.

EXAMPLE FLOW:
  1. Sale scores 1★:         event +1, Increment +1  -> total 1
  2. Manual adjustment −2★:  manual event −2, Increment −2 -> total −1
  3. Reverse both events:    Increment +1, delete     -> total 0
*/
package incentive

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Reconciler struct {
	store Store
	now   func() time.Time
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store, now: time.Now}
}

// WithClock sets the clock used to timestamp manual events.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// ApplyDelta atomically adds delta to the staff star total. Zero is a no-op.
func (r *Reconciler) ApplyDelta(ctx context.Context, staffID StaffID, delta int) error {
	if staffID == "" {
		return fmt.Errorf("%w: staff id is required", ErrInvalidInput)
	}
	if delta == 0 {
		return nil
	}
	return r.store.Increment(ctx, staffID, FieldStars, delta)
}

// ApplyDeltas applies a delta map in one unit, in staff order.
func (r *Reconciler) ApplyDeltas(ctx context.Context, deltas map[StaffID]int) error {
	ids := make([]StaffID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return r.store.WithTx(ctx, func(tx Store) error {
		inner := &Reconciler{store: tx, now: r.now}
		for _, id := range ids {
			if err := inner.ApplyDelta(ctx, id, deltas[id]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReversalDeltas returns −Σ starsAwarded per staff.
func ReversalDeltas(events []SaleEvent) map[StaffID]int {
	out := make(map[StaffID]int)
	for _, e := range events {
		if e.StarsAwarded != 0 {
			out[e.StaffID] -= e.StarsAwarded
		}
	}
	return out
}

// Reverse undoes events: applies their negative deltas and deletes them,
// all in one unit. Returns the applied deltas.
func (r *Reconciler) Reverse(ctx context.Context, events []SaleEvent) (map[StaffID]int, error) {
	deltas := ReversalDeltas(events)
	ids := make([]EventID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}

	err := r.store.WithTx(ctx, func(tx Store) error {
		inner := &Reconciler{store: tx, now: r.now}
		if err := inner.ApplyDeltas(ctx, deltas); err != nil {
			return err
		}
		return tx.DeleteEvents(ctx, ids)
	})
	if err != nil {
		return nil, fmt.Errorf("reverse %d events: %w", len(events), err)
	}
	return deltas, nil
}

// ApplyManual records a manual adjustment as a manual event and applies it.
func (r *Reconciler) ApplyManual(ctx context.Context, staffID StaffID, delta int, reason string) (SaleEvent, error) {
	if staffID == "" {
		return SaleEvent{}, fmt.Errorf("%w: staff id is required", ErrInvalidInput)
	}
	if delta == 0 {
		return SaleEvent{}, fmt.Errorf("%w: adjustment must be non-zero", ErrInvalidInput)
	}

	e := SaleEvent{
		ID:           EventID(uuid.NewString()),
		StaffID:      staffID,
		Category:     CategoryManual,
		ServiceKey:   "adjustment",
		StarsAwarded: delta,
		Timestamp:    r.now().UTC(),
		IsManual:     true,
		Reason:       reason,
	}
	err := r.store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.AppendEvent(ctx, e); err != nil {
			return err
		}
		return tx.Increment(ctx, staffID, FieldStars, delta)
	})
	if err != nil {
		return SaleEvent{}, fmt.Errorf("manual adjustment for %s: %w", staffID, err)
	}
	return e, nil
}

// Verify recomputes a staff total from its live events and compares it to
// the stored ledger. Returns the drift (stored − computed).
func (r *Reconciler) Verify(ctx context.Context, staffID StaffID) (int, error) {
	events, err := r.store.QueryEvents(ctx, EventQuery{StaffID: staffID})
	if err != nil {
		return 0, err
	}
	led, err := r.store.Ledger(ctx, staffID)
	if err != nil {
		return 0, err
	}
	computed := 0
	for _, e := range events {
		computed += e.StarsAwarded
	}
	return led.StarsTotal - computed, nil
}

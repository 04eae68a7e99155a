// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/star-engine/incentive"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a transactional in-memory Store. WithTx snapshots all state and
// restores it if fn fails.
type Memory struct {
	mu     sync.RWMutex
	events []incentive.SaleEvent // ordered by Timestamp
	ledger map[incentive.StaffID]incentive.EmployeeLedger
	shifts []incentive.Shift
	awards map[awardKey]incentive.AwardRecord
	now    func() time.Time
}

type awardKey struct {
	PeriodKey string
	Kind      string
}

func NewMemory() *Memory {
	return &Memory{
		ledger: make(map[incentive.StaffID]incentive.EmployeeLedger),
		awards: make(map[awardKey]incentive.AwardRecord),
		now:    time.Now,
	}
}

var _ incentive.Store = (*Memory)(nil)

func (m *Memory) QueryEvents(_ context.Context, q incentive.EventQuery) ([]incentive.SaleEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(q), nil
}

func (m *Memory) CountEvents(_ context.Context, staffID incentive.StaffID, rule incentive.RuleKey, window *incentive.PeriodWindow) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked(staffID, rule, window), nil
}

func (m *Memory) AppendEvent(_ context.Context, e incentive.SaleEvent) (incentive.EventID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(e), nil
}

func (m *Memory) UpdateEvent(_ context.Context, id incentive.EventID, patch incentive.EventPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(id, patch)
}

func (m *Memory) DeleteEvents(_ context.Context, ids []incentive.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(ids)
	return nil
}

func (m *Memory) Increment(_ context.Context, staffID incentive.StaffID, field incentive.LedgerField, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.incrementLocked(staffID, field, delta)
}

func (m *Memory) Ledger(_ context.Context, staffID incentive.StaffID) (incentive.EmployeeLedger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ledgerLocked(staffID), nil
}

func (m *Memory) AppendShift(_ context.Context, s incentive.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendShiftLocked(s)
	return nil
}

func (m *Memory) QueryShifts(_ context.Context, window incentive.PeriodWindow) ([]incentive.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shiftsLocked(window), nil
}

func (m *Memory) GetAwardRecord(_ context.Context, periodKey, kind string) (*incentive.AwardRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.awardLocked(periodKey, kind), nil
}

func (m *Memory) SetAwardRecord(_ context.Context, r incentive.AwardRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awards[awardKey{PeriodKey: r.PeriodKey, Kind: r.Kind}] = r
	return nil
}

// Staff lists every staff with a ledger row, sorted.
func (m *Memory) Staff(_ context.Context) ([]incentive.StaffID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]incentive.StaffID, 0, len(m.ledger))
	for id := range m.ledger {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// =============================================================================
// LOCKED HELPERS - Callers hold mu
// =============================================================================

func (m *Memory) queryLocked(q incentive.EventQuery) []incentive.SaleEvent {
	var result []incentive.SaleEvent
	for _, e := range m.events {
		if q.Matches(e) {
			result = append(result, e.Clone())
		}
	}
	return result
}

func (m *Memory) countLocked(staffID incentive.StaffID, rule incentive.RuleKey, window *incentive.PeriodWindow) int {
	n := 0
	for _, e := range m.events {
		if e.StaffID != staffID || e.Category != rule.Category || e.ServiceKey != rule.ServiceKey {
			continue
		}
		if !e.IsSale() {
			continue
		}
		if window != nil && !window.Contains(e.Timestamp) {
			continue
		}
		n++
	}
	return n
}

func (m *Memory) appendLocked(e incentive.SaleEvent) incentive.EventID {
	if e.ID == "" {
		e.ID = incentive.EventID(uuid.NewString())
	}

	// Binary search keeps events ordered by Timestamp; equal timestamps keep
	// insertion order.
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].Timestamp.After(e.Timestamp)
	})
	m.events = append(m.events, incentive.SaleEvent{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = e.Clone()
	return e.ID
}

func (m *Memory) updateLocked(id incentive.EventID, patch incentive.EventPatch) error {
	for i := range m.events {
		if m.events[i].ID != id {
			continue
		}
		m.events[i].StarsAwarded = patch.StarsAwarded
		m.events[i].Bonus = nil
		if patch.Bonus != nil {
			b := *patch.Bonus
			m.events[i].Bonus = &b
		}
		return nil
	}
	return fmt.Errorf("%w: %s", incentive.ErrEventNotFound, id)
}

func (m *Memory) deleteLocked(ids []incentive.EventID) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[incentive.EventID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.events[:0]
	for _, e := range m.events {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	m.events = kept
}

func (m *Memory) incrementLocked(staffID incentive.StaffID, field incentive.LedgerField, delta int) error {
	led := m.ledgerLocked(staffID)
	switch field {
	case incentive.FieldStars:
		led.StarsTotal += delta
	case incentive.FieldShifts:
		led.ShiftsTotal += delta
	default:
		return fmt.Errorf("%w: unknown ledger field %q", incentive.ErrInvalidInput, field)
	}
	led.UpdatedAt = m.now().UTC()
	m.ledger[staffID] = led
	return nil
}

func (m *Memory) ledgerLocked(staffID incentive.StaffID) incentive.EmployeeLedger {
	if led, ok := m.ledger[staffID]; ok {
		return led
	}
	return incentive.EmployeeLedger{StaffID: staffID}
}

func (m *Memory) appendShiftLocked(s incentive.Shift) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.shifts = append(m.shifts, s)
}

func (m *Memory) shiftsLocked(window incentive.PeriodWindow) []incentive.Shift {
	var out []incentive.Shift
	for _, s := range m.shifts {
		if window.Contains(s.At) {
			out = append(out, s)
		}
	}
	return out
}

func (m *Memory) awardLocked(periodKey, kind string) *incentive.AwardRecord {
	r, ok := m.awards[awardKey{PeriodKey: periodKey, Kind: kind}]
	if !ok {
		return nil
	}
	return &r
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(incentive.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	events []incentive.SaleEvent
	ledger map[incentive.StaffID]incentive.EmployeeLedger
	shifts []incentive.Shift
	awards map[awardKey]incentive.AwardRecord
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		events: make([]incentive.SaleEvent, len(m.events)),
		ledger: make(map[incentive.StaffID]incentive.EmployeeLedger, len(m.ledger)),
		shifts: append([]incentive.Shift(nil), m.shifts...),
		awards: make(map[awardKey]incentive.AwardRecord, len(m.awards)),
	}
	for i, e := range m.events {
		s.events[i] = e.Clone()
	}
	for k, v := range m.ledger {
		s.ledger[k] = v
	}
	for k, v := range m.awards {
		s.awards[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.events = s.events
	m.ledger = s.ledger
	m.shifts = s.shifts
	m.awards = s.awards
}

// txView is the Store handed to WithTx callbacks. The parent lock is held
// for its whole lifetime, so it calls the locked helpers directly.
type txView struct {
	parent *Memory
}

func (tv *txView) QueryEvents(_ context.Context, q incentive.EventQuery) ([]incentive.SaleEvent, error) {
	return tv.parent.queryLocked(q), nil
}

func (tv *txView) CountEvents(_ context.Context, staffID incentive.StaffID, rule incentive.RuleKey, window *incentive.PeriodWindow) (int, error) {
	return tv.parent.countLocked(staffID, rule, window), nil
}

func (tv *txView) AppendEvent(_ context.Context, e incentive.SaleEvent) (incentive.EventID, error) {
	return tv.parent.appendLocked(e), nil
}

func (tv *txView) UpdateEvent(_ context.Context, id incentive.EventID, patch incentive.EventPatch) error {
	return tv.parent.updateLocked(id, patch)
}

func (tv *txView) DeleteEvents(_ context.Context, ids []incentive.EventID) error {
	tv.parent.deleteLocked(ids)
	return nil
}

func (tv *txView) Increment(_ context.Context, staffID incentive.StaffID, field incentive.LedgerField, delta int) error {
	return tv.parent.incrementLocked(staffID, field, delta)
}

func (tv *txView) Ledger(_ context.Context, staffID incentive.StaffID) (incentive.EmployeeLedger, error) {
	return tv.parent.ledgerLocked(staffID), nil
}

func (tv *txView) AppendShift(_ context.Context, s incentive.Shift) error {
	tv.parent.appendShiftLocked(s)
	return nil
}

func (tv *txView) QueryShifts(_ context.Context, window incentive.PeriodWindow) ([]incentive.Shift, error) {
	return tv.parent.shiftsLocked(window), nil
}

func (tv *txView) GetAwardRecord(_ context.Context, periodKey, kind string) (*incentive.AwardRecord, error) {
	return tv.parent.awardLocked(periodKey, kind), nil
}

func (tv *txView) SetAwardRecord(_ context.Context, r incentive.AwardRecord) error {
	tv.parent.awards[awardKey{PeriodKey: r.PeriodKey, Kind: r.Kind}] = r
	return nil
}

// WithTx joins the enclosing transaction. A nested failure still rolls back
// everything once it propagates to the outer WithTx.
func (tv *txView) WithTx(_ context.Context, fn func(incentive.Store) error) error {
	return fn(tv)
}

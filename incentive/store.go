/*
store.go - Persistence contract required by the engine

PURPOSE:
  Defines the access pattern the engine needs from an event/ledger store:
  append, range query by time, one guarded rewrite per event, delete with
  reversal, and atomic signed increments of ledger totals.

ATOMIC INCREMENTS:
  Increment() must be a commutative "total = total + delta" at the storage
  layer. A live sale, a period award and a retroactive job may compute
  deltas for the same staff concurrently; a read-then-write of the total
  would lose updates.

ALL-OR-NOTHING UNITS:
  WithTx() runs fn against a transactional view. If fn returns an error,
  nothing it wrote is kept. Batch jobs commit one chunk per WithTx call.
  Calling WithTx on a transactional view runs fn in the same transaction.

IMPLEMENTATIONS:
  - incentive/store/memory.go: In-memory, snapshot + rollback
  - store/sqlite/sqlite.go:    SQLite

SEE ALSO:
  - ledger.go: Reconciler, the single write path for stars
*/
package incentive

import "context"

// EventQuery filters QueryEvents. Zero fields match everything.
type EventQuery struct {
	StaffID    StaffID
	Category   string
	ServiceKey string
	Window     *PeriodWindow
	AwardKind  string    // matches PeriodTag.AwardKind
	PeriodKey  string    // matches PeriodTag.PeriodKey
	IDs        []EventID // nil matches every ID, empty matches none
}

// Matches reports whether e satisfies every non-zero field of q.
func (q EventQuery) Matches(e SaleEvent) bool {
	if q.IDs != nil && !containsID(q.IDs, e.ID) {
		return false
	}
	if q.StaffID != "" && e.StaffID != q.StaffID {
		return false
	}
	if q.Category != "" && e.Category != q.Category {
		return false
	}
	if q.ServiceKey != "" && e.ServiceKey != q.ServiceKey {
		return false
	}
	if q.Window != nil && !q.Window.Contains(e.Timestamp) {
		return false
	}
	if q.AwardKind != "" || q.PeriodKey != "" {
		if e.PeriodTag == nil {
			return false
		}
		if q.AwardKind != "" && e.PeriodTag.AwardKind != q.AwardKind {
			return false
		}
		if q.PeriodKey != "" && e.PeriodTag.PeriodKey != q.PeriodKey {
			return false
		}
	}
	return true
}

func containsID(ids []EventID, id EventID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// EventPatch is the only mutation allowed on a stored event.
// A nil Bonus clears the bonus record.
type EventPatch struct {
	StarsAwarded int
	Bonus        *BonusInfo
}

// Store handles persistence of events, ledgers, shifts and award records.
type Store interface {
	// QueryEvents returns matching events ordered by Timestamp.
	QueryEvents(ctx context.Context, q EventQuery) ([]SaleEvent, error)

	// CountEvents counts events of one rule for one staff, optionally in a window.
	CountEvents(ctx context.Context, staffID StaffID, rule RuleKey, window *PeriodWindow) (int, error)

	AppendEvent(ctx context.Context, e SaleEvent) (EventID, error)

	// UpdateEvent applies a patch. Returns ErrEventNotFound for unknown IDs.
	UpdateEvent(ctx context.Context, id EventID, patch EventPatch) error

	DeleteEvents(ctx context.Context, ids []EventID) error

	// Increment atomically adds delta to a ledger field, creating the
	// ledger row at zero if needed.
	Increment(ctx context.Context, staffID StaffID, field LedgerField, delta int) error

	// Ledger returns the staff ledger; an unknown staff has a zero ledger.
	Ledger(ctx context.Context, staffID StaffID) (EmployeeLedger, error)

	AppendShift(ctx context.Context, s Shift) error
	QueryShifts(ctx context.Context, window PeriodWindow) ([]Shift, error)

	// GetAwardRecord returns nil when the period/kind was never awarded.
	GetAwardRecord(ctx context.Context, periodKey, kind string) (*AwardRecord, error)

	// SetAwardRecord writes or replaces the record for (PeriodKey, Kind).
	SetAwardRecord(ctx context.Context, r AwardRecord) error

	WithTx(ctx context.Context, fn func(Store) error) error
}

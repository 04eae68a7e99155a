/*
Package incentive provides the star scoring engine.

PURPOSE:
  This package turns raw sale events into incentive points ("stars"),
  ranks staff over weekly/monthly periods, resolves ties for period
  awards, and rewrites historical events under a retroactive bonus.
  Every function here is synchronous and operates on snapshots supplied
  by the caller. Persistence is behind the Store interface (store.go).

KEY CONCEPTS IN THIS FILE (types.go):
  - ServiceRule: Catalog entry mapping (category, serviceKey) to a formula
  - RawSale: An incoming sale before scoring
  - SaleEvent: A persisted, scored sale (append-only, one bonus rewrite)
  - EmployeeLedger: Running totals, mutated only by atomic increments
  - Shift: A worked shift, counted by period awards

DESIGN PRINCIPLES:
  1. Explicit inputs: catalog and period window are parameters, never globals
  2. One write path: every star change is a signed delta through the Reconciler
  3. Exactly-once bonus: BonusInfo.Applied guards the retroactive rewrite
  4. Precision: currency amounts and multipliers use decimal.Decimal

USAGE:
  catalog, _ := factory.NewCatalogFactory().ParseCatalog(factory.DefaultCatalogJSON())
  rule, err := catalog.Resolve(sale)
  scored, err := catalog.Scorer().Score(sale, rule, existingCount)

SEE ALSO:
  - catalog.go: ServiceCatalog and rule resolution
  - scorer.go: EventScorer
  - ledger.go: LedgerReconciler
*/
package incentive

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StaffID string
type EventID string

// RuleKey identifies a ServiceRule.
type RuleKey struct {
	Category   string
	ServiceKey string
}

func (k RuleKey) String() string { return k.Category + "/" + k.ServiceKey }

// Categories used by events the engine itself creates.
const (
	CategoryManual = "Manual"
	CategoryAward  = "PeriodAward"
)

// =============================================================================
// SERVICE RULE - Catalog entry
// =============================================================================

// ServiceRule is a fixed-shape scoring formula.
//
// Multiplier N means N matching events jointly earn BaseStars once.
// IsRecurring marks subscription-like sales: only the first matching event
// in a billing period awards stars.
type ServiceRule struct {
	Category    string
	ServiceKey  string
	BaseStars   int
	Multiplier  int
	IsRecurring bool

	// Bracketed is set by the catalog for rules of the amount-bracketed
	// category. Their ServiceKey is a bracket label.
	Bracketed bool
}

func (r ServiceRule) Key() RuleKey { return RuleKey{Category: r.Category, ServiceKey: r.ServiceKey} }

// =============================================================================
// RAW SALE - Input to the scorer
// =============================================================================

type RawSale struct {
	StaffID    StaffID
	Category   string
	ServiceKey string              // empty for amount-bracketed categories
	Amount     decimal.NullDecimal // required for amount-bracketed categories
	AmountText string              // unparsed amount, used when Amount is unset
	At         time.Time
}

// =============================================================================
// SALE EVENT - Persisted, scored sale
// =============================================================================

type SaleEvent struct {
	ID           EventID
	StaffID      StaffID
	Category     string
	ServiceKey   string
	Bracket      string
	Amount       decimal.NullDecimal
	StarsAwarded int
	Timestamp    time.Time
	IsManual     bool
	Reason       string
	PeriodTag    *PeriodTag
	Bonus        *BonusInfo
}

// PeriodTag marks events created by a period award.
type PeriodTag struct {
	Cadence   Cadence
	PeriodKey string
	AwardKind string
}

// BonusInfo records the single retroactive rewrite of an event.
type BonusInfo struct {
	Applied       bool
	Multiplier    decimal.Decimal
	OriginalStars int
}

// IsSale reports whether the event came from a sale rather than a manual
// adjustment or a period award.
func (e SaleEvent) IsSale() bool { return !e.IsManual && e.PeriodTag == nil }

func (e SaleEvent) ActivityStaff() StaffID  { return e.StaffID }
func (e SaleEvent) ActivityTime() time.Time { return e.Timestamp }

// Clone returns a copy that shares no pointers with e.
func (e SaleEvent) Clone() SaleEvent {
	out := e
	if e.PeriodTag != nil {
		tag := *e.PeriodTag
		out.PeriodTag = &tag
	}
	if e.Bonus != nil {
		b := *e.Bonus
		out.Bonus = &b
	}
	return out
}

// =============================================================================
// LEDGER & SHIFTS
// =============================================================================

// EmployeeLedger is the per-staff running total.
//
// INVARIANT: StarsTotal == Σ StarsAwarded over live events for StaffID.
// Manual adjustments are recorded as manual events, so they are part of
// that sum.
type EmployeeLedger struct {
	StaffID     StaffID
	StarsTotal  int
	ShiftsTotal int
	UpdatedAt   time.Time
}

// LedgerField names an atomically incremented ledger column.
type LedgerField string

const (
	FieldStars  LedgerField = "stars_total"
	FieldShifts LedgerField = "shifts_total"
)

type Shift struct {
	ID      string
	StaffID StaffID
	At      time.Time
}

func (s Shift) ActivityStaff() StaffID  { return s.StaffID }
func (s Shift) ActivityTime() time.Time { return s.At }

// =============================================================================
// AWARD RECORD - Already-awarded guard for period jobs
// =============================================================================

type AwardRecord struct {
	PeriodKey   string
	Kind        string
	AwardedAt   time.Time
	Policy      TiePolicy
	Seed        *int64 // set when Policy is RANDOM; makes the pick replayable
	Fingerprint string
}

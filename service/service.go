/*
Package service orchestrates the incentive engine over a Store.

PURPOSE:
  The engine in package incentive is pure: it scores, ranks, resolves and
  rewrites snapshots. This package is the caller that owns the rest:
  reading consistent snapshots, serializing writers, committing in
  all-or-nothing units, and bounding every operation with a timeout.

OPERATIONS:
  Live path:
    SubmitSale   resolve -> count -> score -> append event -> increment
    RecordShift  append shift -> increment shifts_total
    Adjust       manual signed adjustment through the Reconciler

  Operator jobs (preview first, then commit with the preview fingerprint):
    ReviewPeriod / PreviewAward / CommitAward
    PreviewBonus / CommitBonus
    PreviewRevertBonus / CommitRevertBonus
    PreviewReset / CommitReset

CONCURRENCY:
  Multiplier progress reads a count and then writes an event, so two sales
  for the same (staff, rule) must not interleave. SubmitSale holds a
  per-(staff, rule) lock and performs count + append + increment inside
  one store transaction. Batch jobs are serialized by jobMu; their ledger
  effects are atomic increments and commute with live sales.

CONFIRM BEFORE COMMIT:
  Every commit recomputes its result and compares the fingerprint with the
  one the operator previewed. A mismatch means the data changed in between
  and nothing is written.

SEE ALSO:
  - awards.go: period awards
  - batch.go: bonus, bonus reversal and window reset
*/
package service

import (
	"context"
	"sync"
	"time"

	"github.com/warp/star-engine/config"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/logger"
	"github.com/warp/star-engine/metrics"
)

// Options are the tunables of a Service. Zero values take defaults.
type Options struct {
	MarginThreshold  int
	BatchSize        int
	OperationTimeout time.Duration
	Kinds            []AwardKind
}

// DefaultOptions mirror config.New().
func DefaultOptions() Options {
	return Options{
		MarginThreshold:  incentive.DefaultMarginThreshold,
		BatchSize:        incentive.DefaultBatchSize,
		OperationTimeout: 10 * time.Second,
		Kinds:            DefaultKinds(),
	}
}

// OptionsFromConfig maps the engine and awards sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MarginThreshold:  cfg.Engine.MarginThreshold,
		BatchSize:        cfg.Engine.BatchSize,
		OperationTimeout: cfg.Engine.OperationTimeout,
		Kinds:            KindsFromConfig(cfg),
	}
}

// Option configures optional collaborators.
type Option func(*Service)

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSeedSource replaces the generator of RANDOM tie-break seeds.
func WithSeedSource(seed func() int64) Option {
	return func(s *Service) {
		if seed != nil {
			s.seed = seed
		}
	}
}

type Service struct {
	store   incentive.Store
	catalog *incentive.Catalog
	opts    Options
	kinds   map[string]AwardKind

	log     *logger.Logger
	metrics *metrics.Manager
	now     func() time.Time
	seed    func() int64

	locks keyedMutex
	jobMu sync.Mutex
}

// New creates a service. Kinds with duplicate names keep the last entry.
func New(store incentive.Store, catalog *incentive.Catalog, opts Options, options ...Option) *Service {
	defaults := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaults.OperationTimeout
	}
	if opts.MarginThreshold < 0 {
		opts.MarginThreshold = 0
	}
	if opts.Kinds == nil {
		opts.Kinds = defaults.Kinds
	}

	s := &Service{
		store:   store,
		catalog: catalog,
		opts:    opts,
		kinds:   make(map[string]AwardKind, len(opts.Kinds)),
		log:     logger.Named("service"),
		now:     time.Now,
		seed:    func() int64 { return time.Now().UnixNano() },
		locks:   keyedMutex{held: make(map[string]*lockEntry)},
	}
	for _, k := range opts.Kinds {
		s.kinds[k.Name] = k
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// withTimeout bounds an operation by Options.OperationTimeout.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

func (s *Service) reconciler(store incentive.Store) *incentive.Reconciler {
	return incentive.NewReconciler(store).WithClock(s.now)
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

func (s *Service) Catalog() *incentive.Catalog { return s.catalog }

// Now reads the service clock.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) Ledger(ctx context.Context, staffID incentive.StaffID) (incentive.EmployeeLedger, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.Ledger(ctx, staffID)
}

func (s *Service) Events(ctx context.Context, q incentive.EventQuery) ([]incentive.SaleEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.QueryEvents(ctx, q)
}

// Verify reports the drift between a staff ledger and its live events.
// Zero means the ledger invariant holds.
func (s *Service) Verify(ctx context.Context, staffID incentive.StaffID) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.reconciler(s.store).Verify(ctx, staffID)
}

// =============================================================================
// KEYED MUTEX
// =============================================================================

type keyedMutex struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release func. Entries are
// dropped when no goroutine holds or waits on them.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.held[key]
	if !ok {
		e = &lockEntry{}
		k.held[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.held, key)
		}
		k.mu.Unlock()
	}
}

/*
Package sqlite provides a SQLite-backed implementation of incentive.Store.

PURPOSE:
  Persists sale events, staff ledgers, shifts and award records. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

ATOMIC INCREMENTS:
  Ledger totals are never read-modify-written. Increment() is a single
  upsert:

    INSERT INTO ledgers (staff_id, stars_total, ...) VALUES (?, ?, ...)
    ON CONFLICT(staff_id) DO UPDATE SET stars_total = stars_total + excluded.stars_total

  so concurrent writers for the same staff commute.

EVENT MUTATION:
  Events are append-only except for two paths:
  - UpdateEvent: the single retroactive bonus rewrite (or its reversal)
  - DeleteEvents: window reset, always paired with reversal deltas

KEY TABLES:
  events:        Scored sales, manual adjustments, period award events
  ledgers:       Per-staff running totals
  shifts:        Worked shifts, counted by period awards
  award_records: Already-awarded guard, unique (period_key, kind)

TIMESTAMPS:
  Stored as fixed-width UTC text (timeLayout) so that lexical order equals
  chronological order and range predicates can use the index.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which also
  keeps ":memory:" databases shared across calls. In production with
  PostgreSQL, database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/stars.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := service.New(store, catalog, opts)

SEE ALSO:
  - incentive/store.go: Store contract
  - incentive/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/star-engine/incentive"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements incentive.Store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

var _ incentive.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Events: scored sales, manual adjustments, period awards
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL,
		category TEXT NOT NULL,
		service_key TEXT NOT NULL,
		bracket TEXT,
		amount TEXT,
		stars_awarded INTEGER NOT NULL,
		ts TEXT NOT NULL,
		is_manual INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		cadence TEXT,
		period_key TEXT,
		award_kind TEXT,
		bonus_applied INTEGER NOT NULL DEFAULT 0,
		bonus_multiplier TEXT,
		bonus_original INTEGER,
		created_at TEXT NOT NULL
	);

	-- Multiplier progress counts (hot path on every sale)
	CREATE INDEX IF NOT EXISTS idx_events_staff_rule
		ON events(staff_id, category, service_key, ts);

	-- Window scans for aggregation, bonus and reset
	CREATE INDEX IF NOT EXISTS idx_events_ts
		ON events(ts);

	-- Award reversal on override
	CREATE INDEX IF NOT EXISTS idx_events_award
		ON events(award_kind, period_key) WHERE award_kind IS NOT NULL;

	-- Ledgers: mutated only through Increment
	CREATE TABLE IF NOT EXISTS ledgers (
		staff_id TEXT PRIMARY KEY,
		stars_total INTEGER NOT NULL DEFAULT 0,
		shifts_total INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_at
		ON shifts(at);

	-- CRITICAL: one award record per (period, kind)
	CREATE TABLE IF NOT EXISTS award_records (
		period_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		awarded_at TEXT NOT NULL,
		policy TEXT NOT NULL,
		seed INTEGER,
		fingerprint TEXT,
		PRIMARY KEY (period_key, kind)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STORE (incentive.Store interface)
// =============================================================================

func (s *Store) QueryEvents(ctx context.Context, q incentive.EventQuery) ([]incentive.SaleEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEvents(ctx, s.db, q)
}

func (s *Store) CountEvents(ctx context.Context, staffID incentive.StaffID, rule incentive.RuleKey, window *incentive.PeriodWindow) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countEvents(ctx, s.db, staffID, rule, window)
}

func (s *Store) AppendEvent(ctx context.Context, e incentive.SaleEvent) (incentive.EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendEvent(ctx, s.db, e)
}

func (s *Store) UpdateEvent(ctx context.Context, id incentive.EventID, patch incentive.EventPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEvent(ctx, s.db, id, patch)
}

func (s *Store) DeleteEvents(ctx context.Context, ids []incentive.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEvents(ctx, s.db, ids)
}

func (s *Store) Increment(ctx context.Context, staffID incentive.StaffID, field incentive.LedgerField, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increment(ctx, s.db, staffID, field, delta)
}

func (s *Store) Ledger(ctx context.Context, staffID incentive.StaffID) (incentive.EmployeeLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger(ctx, s.db, staffID)
}

func (s *Store) AppendShift(ctx context.Context, sh incentive.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendShift(ctx, s.db, sh)
}

func (s *Store) QueryShifts(ctx context.Context, window incentive.PeriodWindow) ([]incentive.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryShifts(ctx, s.db, window)
}

func (s *Store) GetAwardRecord(ctx context.Context, periodKey, kind string) (*incentive.AwardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAwardRecord(ctx, s.db, periodKey, kind)
}

func (s *Store) SetAwardRecord(ctx context.Context, r incentive.AwardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setAwardRecord(ctx, s.db, r)
}

// Staff lists every staff with a ledger row, sorted.
func (s *Store) Staff(ctx context.Context) ([]incentive.StaffID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT staff_id FROM ledgers ORDER BY staff_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var out []incentive.StaffID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, incentive.StaffID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// EVENTS
// =============================================================================

const eventColumns = `id, staff_id, category, service_key, bracket, amount, stars_awarded, ts,
	is_manual, reason, cadence, period_key, award_kind,
	bonus_applied, bonus_multiplier, bonus_original`

func (s *Store) appendEvent(ctx context.Context, db queryer, e incentive.SaleEvent) (incentive.EventID, error) {
	if e.ID == "" {
		e.ID = incentive.EventID(uuid.NewString())
	}

	var amount sql.NullString
	if e.Amount.Valid {
		amount = sql.NullString{String: e.Amount.Decimal.String(), Valid: true}
	}
	var cadence, periodKey, awardKind sql.NullString
	if e.PeriodTag != nil {
		cadence = nullString(string(e.PeriodTag.Cadence))
		periodKey = nullString(e.PeriodTag.PeriodKey)
		awardKind = nullString(e.PeriodTag.AwardKind)
	}
	applied, mult, orig := bonusColumns(e.Bonus)

	_, err := db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.StaffID), e.Category, e.ServiceKey, nullString(e.Bracket), amount,
		e.StarsAwarded, formatTime(e.Timestamp),
		boolInt(e.IsManual), nullString(e.Reason), cadence, periodKey, awardKind,
		applied, mult, orig,
		formatTime(s.now()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return "", fmt.Errorf("%w: duplicate event id %s", incentive.ErrInvalidInput, e.ID)
		}
		return "", fmt.Errorf("failed to append event: %w", err)
	}
	return e.ID, nil
}

func queryEvents(ctx context.Context, db queryer, q incentive.EventQuery) ([]incentive.SaleEvent, error) {
	var (
		where []string
		args  []any
	)
	if q.IDs != nil {
		if len(q.IDs) == 0 {
			return nil, nil
		}
		where = append(where, "id IN ("+strings.TrimSuffix(strings.Repeat("?,", len(q.IDs)), ",")+")")
		for _, id := range q.IDs {
			args = append(args, string(id))
		}
	}
	if q.StaffID != "" {
		where = append(where, "staff_id = ?")
		args = append(args, string(q.StaffID))
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	if q.ServiceKey != "" {
		where = append(where, "service_key = ?")
		args = append(args, q.ServiceKey)
	}
	if q.Window != nil {
		where = append(where, "ts >= ? AND ts <= ?")
		args = append(args, formatTime(q.Window.Start), formatTime(q.Window.End))
	}
	if q.AwardKind != "" {
		where = append(where, "award_kind = ?")
		args = append(args, q.AwardKind)
	}
	if q.PeriodKey != "" {
		where = append(where, "period_key = ?")
		args = append(args, q.PeriodKey)
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts ASC, created_at ASC, rowid ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []incentive.SaleEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (incentive.SaleEvent, error) {
	var (
		e           incentive.SaleEvent
		id, staffID string
		bracket     sql.NullString
		amount      sql.NullString
		ts          string
		isManual    int
		reason      sql.NullString
		cadence     sql.NullString
		periodKey   sql.NullString
		awardKind   sql.NullString
		applied     int
		multiplier  sql.NullString
		original    sql.NullInt64
	)

	err := rows.Scan(
		&id, &staffID, &e.Category, &e.ServiceKey, &bracket, &amount, &e.StarsAwarded, &ts,
		&isManual, &reason, &cadence, &periodKey, &awardKind,
		&applied, &multiplier, &original,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan event: %w", err)
	}

	e.ID = incentive.EventID(id)
	e.StaffID = incentive.StaffID(staffID)
	e.Bracket = bracket.String
	e.Reason = reason.String
	e.IsManual = isManual != 0
	if e.Timestamp, err = parseTime(ts); err != nil {
		return e, err
	}
	if amount.Valid {
		d, err := decimal.NewFromString(amount.String)
		if err != nil {
			return e, fmt.Errorf("failed to parse amount %q: %w", amount.String, err)
		}
		e.Amount = decimal.NewNullDecimal(d)
	}
	if awardKind.Valid {
		e.PeriodTag = &incentive.PeriodTag{
			Cadence:   incentive.Cadence(cadence.String),
			PeriodKey: periodKey.String,
			AwardKind: awardKind.String,
		}
	}
	if applied != 0 {
		m, err := decimal.NewFromString(multiplier.String)
		if err != nil {
			return e, fmt.Errorf("failed to parse bonus multiplier %q: %w", multiplier.String, err)
		}
		e.Bonus = &incentive.BonusInfo{Applied: true, Multiplier: m, OriginalStars: int(original.Int64)}
	}
	return e, nil
}

func countEvents(ctx context.Context, db queryer, staffID incentive.StaffID, rule incentive.RuleKey, window *incentive.PeriodWindow) (int, error) {
	query := `
		SELECT COUNT(*) FROM events
		WHERE staff_id = ? AND category = ? AND service_key = ?
		  AND is_manual = 0 AND award_kind IS NULL`
	args := []any{string(staffID), rule.Category, rule.ServiceKey}
	if window != nil {
		query += " AND ts >= ? AND ts <= ?"
		args = append(args, formatTime(window.Start), formatTime(window.End))
	}

	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

func updateEvent(ctx context.Context, db queryer, id incentive.EventID, patch incentive.EventPatch) error {
	applied, mult, orig := bonusColumns(patch.Bonus)
	res, err := db.ExecContext(ctx, `
		UPDATE events
		SET stars_awarded = ?, bonus_applied = ?, bonus_multiplier = ?, bonus_original = ?
		WHERE id = ?`,
		patch.StarsAwarded, applied, mult, orig, string(id),
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", incentive.ErrEventNotFound, id)
	}
	return nil
}

func deleteEvents(ctx context.Context, db queryer, ids []incentive.EventID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM events WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// =============================================================================
// LEDGERS
// =============================================================================

func (s *Store) increment(ctx context.Context, db queryer, staffID incentive.StaffID, field incentive.LedgerField, delta int) error {
	var stars, shifts int
	switch field {
	case incentive.FieldStars:
		stars = delta
	case incentive.FieldShifts:
		shifts = delta
	default:
		return fmt.Errorf("%w: unknown ledger field %q", incentive.ErrInvalidInput, field)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO ledgers (staff_id, stars_total, shifts_total, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(staff_id) DO UPDATE SET
			stars_total = stars_total + excluded.stars_total,
			shifts_total = shifts_total + excluded.shifts_total,
			updated_at = excluded.updated_at`,
		string(staffID), stars, shifts, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to increment %s for %s: %w", field, staffID, err)
	}
	return nil
}

func ledger(ctx context.Context, db queryer, staffID incentive.StaffID) (incentive.EmployeeLedger, error) {
	led := incentive.EmployeeLedger{StaffID: staffID}
	var updatedAt string
	err := db.QueryRowContext(ctx,
		"SELECT stars_total, shifts_total, updated_at FROM ledgers WHERE staff_id = ?",
		string(staffID),
	).Scan(&led.StarsTotal, &led.ShiftsTotal, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return led, nil
	}
	if err != nil {
		return led, fmt.Errorf("failed to load ledger: %w", err)
	}
	led.UpdatedAt, err = parseTime(updatedAt)
	return led, err
}

// =============================================================================
// SHIFTS
// =============================================================================

func appendShift(ctx context.Context, db queryer, sh incentive.Shift) error {
	if sh.ID == "" {
		sh.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO shifts (id, staff_id, at) VALUES (?, ?, ?)",
		sh.ID, string(sh.StaffID), formatTime(sh.At),
	)
	if err != nil {
		return fmt.Errorf("failed to append shift: %w", err)
	}
	return nil
}

func queryShifts(ctx context.Context, db queryer, window incentive.PeriodWindow) ([]incentive.Shift, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, staff_id, at FROM shifts WHERE at >= ? AND at <= ? ORDER BY at ASC",
		formatTime(window.Start), formatTime(window.End),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var out []incentive.Shift
	for rows.Next() {
		var (
			sh          incentive.Shift
			staffID, at string
		)
		if err := rows.Scan(&sh.ID, &staffID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		sh.StaffID = incentive.StaffID(staffID)
		if sh.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// =============================================================================
// AWARD RECORDS
// =============================================================================

func getAwardRecord(ctx context.Context, db queryer, periodKey, kind string) (*incentive.AwardRecord, error) {
	var (
		r           incentive.AwardRecord
		awardedAt   string
		policy      string
		seed        sql.NullInt64
		fingerprint sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT period_key, kind, awarded_at, policy, seed, fingerprint
		FROM award_records WHERE period_key = ? AND kind = ?`,
		periodKey, kind,
	).Scan(&r.PeriodKey, &r.Kind, &awardedAt, &policy, &seed, &fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load award record: %w", err)
	}

	r.Policy = incentive.TiePolicy(policy)
	r.Fingerprint = fingerprint.String
	if seed.Valid {
		v := seed.Int64
		r.Seed = &v
	}
	if r.AwardedAt, err = parseTime(awardedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func setAwardRecord(ctx context.Context, db queryer, r incentive.AwardRecord) error {
	var seed sql.NullInt64
	if r.Seed != nil {
		seed = sql.NullInt64{Int64: *r.Seed, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO award_records (period_key, kind, awarded_at, policy, seed, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(period_key, kind) DO UPDATE SET
			awarded_at = excluded.awarded_at,
			policy = excluded.policy,
			seed = excluded.seed,
			fingerprint = excluded.fingerprint`,
		r.PeriodKey, r.Kind, formatTime(r.AwardedAt), string(r.Policy), seed, nullString(r.Fingerprint),
	)
	if err != nil {
		return fmt.Errorf("failed to save award record: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store incentive.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) QueryEvents(ctx context.Context, q incentive.EventQuery) ([]incentive.SaleEvent, error) {
	return queryEvents(ctx, ts.tx, q)
}

func (ts *txStore) CountEvents(ctx context.Context, staffID incentive.StaffID, rule incentive.RuleKey, window *incentive.PeriodWindow) (int, error) {
	return countEvents(ctx, ts.tx, staffID, rule, window)
}

func (ts *txStore) AppendEvent(ctx context.Context, e incentive.SaleEvent) (incentive.EventID, error) {
	return ts.parent.appendEvent(ctx, ts.tx, e)
}

func (ts *txStore) UpdateEvent(ctx context.Context, id incentive.EventID, patch incentive.EventPatch) error {
	return updateEvent(ctx, ts.tx, id, patch)
}

func (ts *txStore) DeleteEvents(ctx context.Context, ids []incentive.EventID) error {
	return deleteEvents(ctx, ts.tx, ids)
}

func (ts *txStore) Increment(ctx context.Context, staffID incentive.StaffID, field incentive.LedgerField, delta int) error {
	return ts.parent.increment(ctx, ts.tx, staffID, field, delta)
}

func (ts *txStore) Ledger(ctx context.Context, staffID incentive.StaffID) (incentive.EmployeeLedger, error) {
	return ledger(ctx, ts.tx, staffID)
}

func (ts *txStore) AppendShift(ctx context.Context, sh incentive.Shift) error {
	return appendShift(ctx, ts.tx, sh)
}

func (ts *txStore) QueryShifts(ctx context.Context, window incentive.PeriodWindow) ([]incentive.Shift, error) {
	return queryShifts(ctx, ts.tx, window)
}

func (ts *txStore) GetAwardRecord(ctx context.Context, periodKey, kind string) (*incentive.AwardRecord, error) {
	return getAwardRecord(ctx, ts.tx, periodKey, kind)
}

func (ts *txStore) SetAwardRecord(ctx context.Context, r incentive.AwardRecord) error {
	return setAwardRecord(ctx, ts.tx, r)
}

// WithTx joins the enclosing transaction.
func (ts *txStore) WithTx(_ context.Context, fn func(incentive.Store) error) error {
	return fn(ts)
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func bonusColumns(b *incentive.BonusInfo) (applied int, multiplier sql.NullString, original sql.NullInt64) {
	if b == nil || !b.Applied {
		return 0, sql.NullString{}, sql.NullInt64{}
	}
	return 1,
		sql.NullString{String: b.Multiplier.String(), Valid: true},
		sql.NullInt64{Int64: int64(b.OriginalStars), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

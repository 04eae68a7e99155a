package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/star-engine/incentive"
)

// =============================================================================
// LIVE PATH - Sales, shifts, manual adjustments
// =============================================================================

// SaleResult is what the POS shows right after a sale.
type SaleResult struct {
	Event  incentive.SaleEvent
	Scored incentive.ScoredEvent
	Ledger incentive.EmployeeLedger
}

// SubmitSale scores and records one sale.
//
// Rejections (InvalidAmount, UnknownRule) happen before any write. For a
// recurring rule the existing count is taken over the sale's calendar month,
// so a subscription is credited once per staff per billing period; for all
// other rules it is taken over all time.
func (s *Service) SubmitSale(ctx context.Context, sale incentive.RawSale) (SaleResult, error) {
	defer s.metrics.ObserveOperation("submit_sale", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if sale.StaffID == "" {
		return SaleResult{}, fmt.Errorf("%w: staff id is required", incentive.ErrInvalidInput)
	}
	if sale.At.IsZero() {
		sale.At = s.now()
	}
	sale.At = sale.At.UTC()

	if !sale.Amount.Valid && sale.AmountText != "" {
		amount, err := incentive.ParseAmount(sale.Category, sale.AmountText)
		if err != nil {
			s.rejected(sale, err)
			return SaleResult{}, err
		}
		sale.Amount = decimal.NewNullDecimal(amount)
	}

	rule, err := s.catalog.Resolve(sale)
	if err != nil {
		s.rejected(sale, err)
		return SaleResult{}, err
	}

	unlock := s.locks.lock(string(sale.StaffID) + "|" + rule.Key().String())
	defer unlock()

	var result SaleResult
	err = s.store.WithTx(ctx, func(tx incentive.Store) error {
		var window *incentive.PeriodWindow
		if rule.IsRecurring {
			w := incentive.MonthWindow(sale.At)
			window = &w
		}
		existing, err := tx.CountEvents(ctx, sale.StaffID, rule.Key(), window)
		if err != nil {
			return err
		}

		scored, err := s.catalog.Scorer().Score(sale, rule, existing)
		if err != nil {
			return err
		}

		event := incentive.SaleEvent{
			StaffID:      sale.StaffID,
			Category:     rule.Category,
			ServiceKey:   rule.ServiceKey,
			Bracket:      scored.Bracket,
			Amount:       sale.Amount,
			StarsAwarded: scored.Stars,
			Timestamp:    sale.At,
		}
		if event.ID, err = tx.AppendEvent(ctx, event); err != nil {
			return err
		}
		if err := s.reconciler(tx).ApplyDelta(ctx, sale.StaffID, scored.Stars); err != nil {
			return err
		}
		led, err := tx.Ledger(ctx, sale.StaffID)
		if err != nil {
			return err
		}
		result = SaleResult{Event: event, Scored: scored, Ledger: led}
		return nil
	})
	if err != nil {
		s.rejected(sale, err)
		return SaleResult{}, fmt.Errorf("submit sale for %s: %w", sale.StaffID, err)
	}

	s.metrics.SaleScored(rule.Category)
	s.metrics.StarsDelta("sale", result.Scored.Stars)
	s.log.Info().
		Str("staff_id", string(sale.StaffID)).
		Str("rule", rule.Key().String()).
		Int("existing", result.Scored.ExistingCount).
		Int("stars", result.Scored.Stars).
		Bool("recurring_suppressed", result.Scored.RecurringSuppressed).
		Msg("sale scored")
	return result, nil
}

func (s *Service) rejected(sale incentive.RawSale, err error) {
	reason := "error"
	switch {
	case errors.Is(err, incentive.ErrInvalidAmount):
		reason = incentive.RejectInvalidAmount
	case errors.Is(err, incentive.ErrUnknownRule):
		reason = incentive.RejectUnknownRule
	}
	s.metrics.SaleRejected(reason)
	s.log.Warn().
		Str("staff_id", string(sale.StaffID)).
		Str("category", sale.Category).
		Str("service_key", sale.ServiceKey).
		Str("reason", reason).
		Err(err).
		Msg("sale rejected")
}

// RecordShift records a worked shift and bumps shifts_total.
func (s *Service) RecordShift(ctx context.Context, staffID incentive.StaffID, at time.Time) (incentive.Shift, error) {
	defer s.metrics.ObserveOperation("record_shift", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if staffID == "" {
		return incentive.Shift{}, fmt.Errorf("%w: staff id is required", incentive.ErrInvalidInput)
	}
	if at.IsZero() {
		at = s.now()
	}
	shift := incentive.Shift{ID: uuid.NewString(), StaffID: staffID, At: at.UTC()}

	err := s.store.WithTx(ctx, func(tx incentive.Store) error {
		if err := tx.AppendShift(ctx, shift); err != nil {
			return err
		}
		return tx.Increment(ctx, staffID, incentive.FieldShifts, 1)
	})
	if err != nil {
		return incentive.Shift{}, fmt.Errorf("record shift for %s: %w", staffID, err)
	}
	s.log.Debug().Str("staff_id", string(staffID)).Time("at", shift.At).Msg("shift recorded")
	return shift, nil
}

// Adjust applies a manual signed adjustment, recorded as a manual event.
func (s *Service) Adjust(ctx context.Context, staffID incentive.StaffID, delta int, reason string) (incentive.SaleEvent, error) {
	defer s.metrics.ObserveOperation("adjust", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	e, err := s.reconciler(s.store).ApplyManual(ctx, staffID, delta, reason)
	if err != nil {
		return incentive.SaleEvent{}, err
	}
	s.metrics.StarsDelta("manual", delta)
	s.log.Info().
		Str("staff_id", string(staffID)).
		Int("delta", delta).
		Str("reason", reason).
		Msg("manual adjustment")
	return e, nil
}

/*
errors.go - Centralized error types for the incentive engine

PURPOSE:
  All error kinds in one place. Validation errors are detected before
  any mutation and carry no partial state. PartialBatchFailureError is
  the only error that reports committed work.

ERROR CATEGORIES:
  1. Validation - InvalidAmount, UnknownRule, InvalidSelection, invalid rules/periods
  2. Guard      - AlreadyAwarded, fingerprint mismatch
  3. Batch      - PartialBatchFailure (chunked jobs)

USAGE:
  if errors.Is(err, incentive.ErrInvalidAmount) {
      // reject the sale with a reason; never award zero silently
  }

  var partial *incentive.PartialBatchFailureError
  if errors.As(err, &partial) {
      // partial.CompletedStaff are done; re-running the whole job is safe
  }
*/
package incentive

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnknownRule         = errors.New("unknown rule")
	ErrInvalidSelection    = errors.New("invalid selection")
	ErrAlreadyAwarded      = errors.New("period already awarded")
	ErrPartialBatchFailure = errors.New("partial batch failure")

	// ErrInvalidRule is returned for malformed catalog entries or brackets.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrInvalidPeriod is returned when a window is malformed (end before start)
	// or a period key cannot be parsed.
	ErrInvalidPeriod = errors.New("invalid period")

	ErrInvalidPolicy     = errors.New("invalid tie policy")
	ErrInvalidMultiplier = errors.New("invalid multiplier")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrFingerprintMismatch is returned when a commit does not match the
	// preview the operator confirmed.
	ErrFingerprintMismatch = errors.New("confirmation does not match computed result")

	// ErrNoWinner is returned when committing an award for a period whose
	// margin policy failed.
	ErrNoWinner = errors.New("no winner for period")

	ErrEventNotFound    = errors.New("event not found")
	ErrUnknownAwardKind = errors.New("unknown award kind")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type InvalidAmountError struct {
	Category string
	Amount   string
}

func (e *InvalidAmountError) Error() string {
	if e.Amount == "" {
		return fmt.Sprintf("invalid amount for %s: amount is required", e.Category)
	}
	return fmt.Sprintf("invalid amount for %s: %s", e.Category, e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

type UnknownRuleError struct {
	Category   string
	ServiceKey string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown rule: %s/%s", e.Category, e.ServiceKey)
}

func (e *UnknownRuleError) Unwrap() error { return ErrUnknownRule }

type InvalidSelectionError struct {
	Selected StaffID
	TieSet   []StaffID
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection: %q is not in tie set %v", e.Selected, e.TieSet)
}

func (e *InvalidSelectionError) Unwrap() error { return ErrInvalidSelection }

type AlreadyAwardedError struct {
	PeriodKey string
	Kind      string
	AwardedAt time.Time
}

func (e *AlreadyAwardedError) Error() string {
	return fmt.Sprintf("%s already awarded for %s at %s",
		e.Kind, e.PeriodKey, e.AwardedAt.Format(time.RFC3339))
}

func (e *AlreadyAwardedError) Unwrap() error { return ErrAlreadyAwarded }

// PartialBatchFailureError reports a chunked job that stopped after some
// chunks committed. CompletedStaff lists staff whose every rewrite committed.
type PartialBatchFailureError struct {
	Operation       string
	CompletedStaff  []StaffID
	CommittedEvents int
	FailedChunk     int
	TotalChunks     int
	Err             error
}

func (e *PartialBatchFailureError) Error() string {
	ids := make([]string, len(e.CompletedStaff))
	for i, id := range e.CompletedStaff {
		ids[i] = string(id)
	}
	return fmt.Sprintf("%s: chunk %d/%d failed after %d events committed (completed staff: [%s]): %v",
		e.Operation, e.FailedChunk+1, e.TotalChunks, e.CommittedEvents, strings.Join(ids, ", "), e.Err)
}

// Unwrap exposes both the batch sentinel and the underlying cause.
func (e *PartialBatchFailureError) Unwrap() []error {
	return []error{ErrPartialBatchFailure, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidSelection) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrInvalidMultiplier) ||
		errors.Is(err, ErrInvalidInput)
}

// IsConflict returns true if the error is a guard rejection.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyAwarded) ||
		errors.Is(err, ErrFingerprintMismatch)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownRule) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrUnknownAwardKind)
}

func sortedStaff(set map[StaffID]bool) []StaffID {
	out := make([]StaffID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

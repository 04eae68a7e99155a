package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/star-engine/incentive"
)

// =============================================================================
// BATCH JOBS - Retroactive bonus, bonus reversal, window reset
// =============================================================================
//
// All three follow the same shape:
//   1. Preview: query the window, compute the result, fingerprint it.
//   2. Commit:  recompute, compare fingerprints, then commit chunk by chunk.
//      Each chunk is one store transaction holding its event writes AND the
//      matching ledger increments, so a chunk is either fully applied or
//      not at all. A failed chunk stops the job with PartialBatchFailureError.
//
// Each chunk re-reads its events by ID inside its transaction and recomputes
// the rewrite (or reversal) from that state, so events another writer has
// already rewritten or deleted since the preview are skipped, not applied
// twice. Re-running a bonus after a partial failure is safe for the same
// reason: already rewritten events carry Bonus.Applied.

const (
	opBonus  = "bonus"
	opRevert = "revert_bonus"
	opReset  = "reset"
)

type BonusRequest struct {
	Category   string // "" or "All" for every category
	Window     incentive.PeriodWindow
	Multiplier decimal.Decimal // ignored by revert
}

func (r BonusRequest) filter() incentive.BonusFilter {
	return incentive.BonusFilter{Category: r.Category, Window: r.Window}
}

type BonusPreview struct {
	Result      incentive.BonusResult
	Fingerprint string
	Chunks      int
}

type BatchCommit struct {
	Operation       string
	CommittedEvents int
	Chunks          int
	StaffDeltas     map[incentive.StaffID]int
}

// PreviewBonus computes the retroactive rewrite without writing anything.
func (s *Service) PreviewBonus(ctx context.Context, req BonusRequest) (BonusPreview, error) {
	defer s.metrics.ObserveOperation("preview_bonus", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.previewRewrite(ctx, opBonus, req)
}

// CommitBonus applies the previewed bonus in chunks.
func (s *Service) CommitBonus(ctx context.Context, req BonusRequest, fingerprint string) (BatchCommit, error) {
	defer s.metrics.ObserveOperation("commit_bonus", time.Now())
	return s.commitRewrite(ctx, opBonus, req, fingerprint)
}

// PreviewRevertBonus computes the rewrite that undoes applied bonuses.
func (s *Service) PreviewRevertBonus(ctx context.Context, req BonusRequest) (BonusPreview, error) {
	defer s.metrics.ObserveOperation("preview_revert_bonus", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.previewRewrite(ctx, opRevert, req)
}

// CommitRevertBonus restores original stars in chunks.
func (s *Service) CommitRevertBonus(ctx context.Context, req BonusRequest, fingerprint string) (BatchCommit, error) {
	defer s.metrics.ObserveOperation("commit_revert_bonus", time.Now())
	return s.commitRewrite(ctx, opRevert, req, fingerprint)
}

func (s *Service) previewRewrite(ctx context.Context, op string, req BonusRequest) (BonusPreview, error) {
	events, err := s.store.QueryEvents(ctx, incentive.EventQuery{Window: &req.Window})
	if err != nil {
		return BonusPreview{}, err
	}
	result, err := rewrite(op, events, req)
	if err != nil {
		return BonusPreview{}, err
	}
	return BonusPreview{
		Result:      result,
		Fingerprint: incentive.RewriteFingerprint(op, result),
		Chunks:      len(incentive.ChunkByStaff(result.Rewritten, s.opts.BatchSize)),
	}, nil
}

func rewrite(op string, events []incentive.SaleEvent, req BonusRequest) (incentive.BonusResult, error) {
	if op == opBonus {
		return incentive.ApplyBonus(events, req.filter(), req.Multiplier)
	}
	return incentive.RevertBonus(events, req.filter()), nil
}

func (s *Service) commitRewrite(ctx context.Context, op string, req BonusRequest, fingerprint string) (BatchCommit, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if fingerprint == "" {
		return BatchCommit{}, fmt.Errorf("%w: fingerprint from preview is required", incentive.ErrInvalidInput)
	}

	pctx, cancel := s.withTimeout(ctx)
	preview, err := s.previewRewrite(pctx, op, req)
	cancel()
	if err != nil {
		return BatchCommit{}, err
	}
	if preview.Fingerprint != fingerprint {
		return BatchCommit{}, fmt.Errorf("%w: %s over %s changed since preview", incentive.ErrFingerprintMismatch, op, req.Window.Key)
	}

	chunks := incentive.ChunkByStaff(preview.Result.Rewritten, s.opts.BatchSize)
	out := BatchCommit{Operation: op, Chunks: len(chunks), StaffDeltas: make(map[incentive.StaffID]int)}
	skipped := 0

	for i, chunk := range chunks {
		var applied incentive.BonusResult
		err := s.runChunk(ctx, func(tx incentive.Store) error {
			current, err := tx.QueryEvents(ctx, incentive.EventQuery{IDs: eventIDs(chunk)})
			if err != nil {
				return err
			}
			if applied, err = rewrite(op, current, req); err != nil {
				return err
			}
			for _, e := range applied.Rewritten {
				patch := incentive.EventPatch{StarsAwarded: e.StarsAwarded, Bonus: e.Bonus}
				if err := tx.UpdateEvent(ctx, e.ID, patch); err != nil {
					return err
				}
			}
			return s.reconciler(tx).ApplyDeltas(ctx, applied.StaffDeltas)
		})
		if err != nil {
			return out, s.partialFailure(op, chunks, i, out.CommittedEvents, err)
		}

		out.CommittedEvents += len(applied.Rewritten)
		skipped += len(chunk) - len(applied.Rewritten)
		for id, d := range applied.StaffDeltas {
			out.StaffDeltas[id] += d
		}
		s.metrics.BonusRewritten(len(applied.Rewritten))
	}

	total := 0
	for _, d := range out.StaffDeltas {
		total += d
	}
	s.metrics.StarsDelta(op, total)
	if skipped > 0 {
		s.log.Warn().
			Str("operation", op).
			Int("skipped", skipped).
			Msg("events changed by another writer since preview were skipped")
	}
	s.log.Info().
		Str("operation", op).
		Str("category", req.Category).
		Str("period", req.Window.Key).
		Str("multiplier", req.Multiplier.String()).
		Int("events", out.CommittedEvents).
		Int("chunks", out.Chunks).
		Int("stars_delta", total).
		Msg("batch committed")
	return out, nil
}

func eventIDs(events []incentive.SaleEvent) []incentive.EventID {
	ids := make([]incentive.EventID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

// =============================================================================
// RESET
// =============================================================================

// ResetRequest scopes a window reset. An empty StaffID resets everyone.
type ResetRequest struct {
	Window  incentive.PeriodWindow
	StaffID incentive.StaffID
}

type ResetPreview struct {
	Events      []incentive.SaleEvent
	StaffDeltas map[incentive.StaffID]int
	Fingerprint string
	Chunks      int
}

// PreviewReset lists the events a reset would delete and the exact
// reversal deltas.
func (s *Service) PreviewReset(ctx context.Context, req ResetRequest) (ResetPreview, error) {
	defer s.metrics.ObserveOperation("preview_reset", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.previewReset(ctx, req)
}

func (s *Service) previewReset(ctx context.Context, req ResetRequest) (ResetPreview, error) {
	events, err := s.store.QueryEvents(ctx, incentive.EventQuery{StaffID: req.StaffID, Window: &req.Window})
	if err != nil {
		return ResetPreview{}, err
	}
	return ResetPreview{
		Events:      events,
		StaffDeltas: incentive.ReversalDeltas(events),
		Fingerprint: incentive.ResetFingerprint(events),
		Chunks:      len(incentive.ChunkByStaff(events, s.opts.BatchSize)),
	}, nil
}

// CommitReset deletes the previewed events with exact negative deltas, in
// chunks. Shifts and award records are untouched.
func (s *Service) CommitReset(ctx context.Context, req ResetRequest, fingerprint string) (BatchCommit, error) {
	defer s.metrics.ObserveOperation("commit_reset", time.Now())
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if fingerprint == "" {
		return BatchCommit{}, fmt.Errorf("%w: fingerprint from preview is required", incentive.ErrInvalidInput)
	}

	pctx, cancel := s.withTimeout(ctx)
	preview, err := s.previewReset(pctx, req)
	cancel()
	if err != nil {
		return BatchCommit{}, err
	}
	if preview.Fingerprint != fingerprint {
		return BatchCommit{}, fmt.Errorf("%w: reset of %s changed since preview", incentive.ErrFingerprintMismatch, req.Window.Key)
	}

	chunks := incentive.ChunkByStaff(preview.Events, s.opts.BatchSize)
	out := BatchCommit{Operation: opReset, Chunks: len(chunks), StaffDeltas: make(map[incentive.StaffID]int)}

	for i, chunk := range chunks {
		var (
			deltas  map[incentive.StaffID]int
			deleted int
		)
		err := s.runChunk(ctx, func(tx incentive.Store) error {
			// Only events still present are reversed.
			current, err := tx.QueryEvents(ctx, incentive.EventQuery{IDs: eventIDs(chunk)})
			if err != nil {
				return err
			}
			deleted = len(current)
			deltas, err = s.reconciler(tx).Reverse(ctx, current)
			return err
		})
		if err != nil {
			return out, s.partialFailure(opReset, chunks, i, out.CommittedEvents, err)
		}
		out.CommittedEvents += deleted
		for id, d := range deltas {
			out.StaffDeltas[id] += d
		}
		for _, d := range deltas {
			s.metrics.StarsDelta(opReset, d)
		}
	}

	s.log.Warn().
		Str("period", req.Window.Key).
		Str("staff_id", string(req.StaffID)).
		Int("events", out.CommittedEvents).
		Msg("window reset committed")
	return out, nil
}

// =============================================================================
// CHUNK HELPERS
// =============================================================================

// runChunk commits one all-or-nothing unit under its own timeout.
func (s *Service) runChunk(ctx context.Context, fn func(incentive.Store) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.WithTx(ctx, fn)
}

func (s *Service) partialFailure(op string, chunks [][]incentive.SaleEvent, failed, committed int, cause error) error {
	err := &incentive.PartialBatchFailureError{
		Operation:       op,
		CompletedStaff:  incentive.CompletedStaff(chunks, failed),
		CommittedEvents: committed,
		FailedChunk:     failed,
		TotalChunks:     len(chunks),
		Err:             cause,
	}
	s.metrics.BatchFailure(op)
	s.log.Error().
		Str("operation", op).
		Int("failed_chunk", failed+1).
		Int("total_chunks", len(chunks)).
		Int("committed_events", committed).
		Err(cause).
		Msg("batch stopped after chunk failure")
	return err
}

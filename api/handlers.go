/*
handlers.go - HTTP API handlers for the star incentive engine

PURPOSE:
  Exposes the incentive service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to package service.

ENDPOINTS:
  Sales:
    POST   /api/sales                          Submit a sale, returns the scored event
    GET    /api/catalog                        Catalog rules and brackets

  Staff:
    GET    /api/staff/{id}/ledger              Running totals
    GET    /api/staff/{id}/events              Event history (?period | ?from&to, ?category)
    POST   /api/staff/{id}/shifts              Record a worked shift
    POST   /api/staff/{id}/adjustments         Manual signed adjustment

  Awards:
    GET    /api/awards/pending                 Closed periods awaiting a decision
    GET    /api/awards/{kind}/{period}         Ranking for a period
    POST   /api/awards/{kind}/{period}/preview Distribution + fingerprint
    POST   /api/awards/{kind}/{period}/commit  Commit with the previewed fingerprint

  Batch jobs:
    POST   /api/bonus/preview                  Retroactive bonus preview
    POST   /api/bonus/commit                   Commit bonus in chunks
    POST   /api/bonus/revert                   Preview (no fingerprint) or commit reversal
    POST   /api/reset                          Preview (no fingerprint) or commit window reset

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: the incentive service (store, catalog, locks)
  - Scheduler: pending period reviews
  - CatalogFactory: catalog to JSON for GET /api/catalog

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, validation errors, invalid input
  - 404: Unknown award kind
  - 409: Already awarded, fingerprint mismatch
  - 422: Sale rejection (invalid amount, unknown rule), bad selection, no winner
  - 504: Operation timeout
  - 207: Batch stopped after a chunk failure (PartialFailureDTO)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - bind.go: Body decoding and validation
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/star-engine/factory"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/logger"
	"github.com/warp/star-engine/service"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service        *service.Service
	Scheduler      *PeriodCloseScheduler
	CatalogFactory *factory.CatalogFactory

	log *logger.Logger

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler around svc. scheduler may be nil.
func NewHandler(svc *service.Service, scheduler *PeriodCloseScheduler) *Handler {
	return &Handler{
		Service:        svc,
		Scheduler:      scheduler,
		CatalogFactory: factory.NewCatalogFactory(),
		log:            logger.Named("api"),
	}
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

// SubmitSale scores and records one sale.
func (h *Handler) SubmitSale(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[SubmitSaleRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	sale := incentive.RawSale{
		StaffID:    incentive.StaffID(req.StaffID),
		Category:   req.Category,
		ServiceKey: req.ServiceKey,
		AmountText: req.amountText(),
	}
	if req.At != nil {
		sale.At = *req.At
	}

	result, err := h.Service.SubmitSale(r.Context(), sale)
	if err != nil {
		h.writeServiceError(w, "Sale rejected", err)
		return
	}

	writeJSON(w, http.StatusCreated, SaleResultDTO{
		Event:  toSaleEventDTO(result.Event),
		Scored: toScoredEventDTO(result.Scored),
		Ledger: toLedgerDTO(result.Ledger),
	})
}

// GetCatalog returns the active catalog in its JSON configuration form.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.CatalogFactory.ToJSON(h.Service.Catalog()))
}

// =============================================================================
// STAFF HANDLERS
// =============================================================================

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	staffID := incentive.StaffID(chi.URLParam(r, "id"))

	led, err := h.Service.Ledger(r.Context(), staffID)
	if err != nil {
		h.writeServiceError(w, "Failed to get ledger", err)
		return
	}
	drift, err := h.Service.Verify(r.Context(), staffID)
	if err == nil && drift != 0 {
		h.log.Warn().Str("staff_id", string(staffID)).Int("drift", drift).Msg("ledger drift detected")
	}

	writeJSON(w, http.StatusOK, toLedgerDTO(led))
}

// GetEvents lists a staff member's events. The window is ?period=<key> or
// ?from=<RFC3339>&to=<RFC3339>; both are optional.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	q := incentive.EventQuery{
		StaffID:  incentive.StaffID(chi.URLParam(r, "id")),
		Category: r.URL.Query().Get("category"),
	}

	window, err := windowFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}
	q.Window = window

	events, err := h.Service.Events(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, "Failed to list events", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleEventDTOs(events))
}

func (h *Handler) RecordShift(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[ShiftRequest](r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	var at time.Time
	if req.At != nil {
		at = *req.At
	}

	shift, err := h.Service.RecordShift(r.Context(), incentive.StaffID(chi.URLParam(r, "id")), at)
	if err != nil {
		h.writeServiceError(w, "Failed to record shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, ShiftDTO{ID: shift.ID, StaffID: string(shift.StaffID), At: formatTime(shift.At)})
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[AdjustmentRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	event, err := h.Service.Adjust(r.Context(), incentive.StaffID(chi.URLParam(r, "id")), req.Delta, req.Reason)
	if err != nil {
		h.writeServiceError(w, "Failed to apply adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleEventDTO(event))
}

// =============================================================================
// AWARD HANDLERS
// =============================================================================

func (h *Handler) ListPendingReviews(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeJSON(w, http.StatusOK, []PendingReviewDTO{})
		return
	}
	pending := h.Scheduler.Pending()
	dtos := make([]PendingReviewDTO, len(pending))
	for i, p := range pending {
		dtos[i] = PendingReviewDTO{Review: toReviewDTO(p.Review), DetectedAt: formatTime(p.DetectedAt)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.Service.ReviewPeriod(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "period"))
	if err != nil {
		h.writeServiceError(w, "Failed to review period", err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewDTO(review))
}

func (h *Handler) PreviewAward(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[AwardRequest](r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	preview, err := h.Service.PreviewAward(r.Context(), chi.URLParam(r, "kind"), chi.URLParam(r, "period"), req.toService())
	if err != nil {
		h.writeServiceError(w, "Failed to preview award", err)
		return
	}
	writeJSON(w, http.StatusOK, AwardPreviewDTO{
		Review:       toReviewDTO(preview.Review),
		Policy:       string(preview.Policy),
		Seed:         preview.Seed,
		Distribution: toDistributionDTOs(preview.Distribution),
		Fingerprint:  preview.Fingerprint,
	})
}

func (h *Handler) CommitAward(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[AwardCommitRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	kind, period := chi.URLParam(r, "kind"), chi.URLParam(r, "period")
	commit, err := h.Service.CommitAward(r.Context(), kind, period, req.AwardRequest.toService(), req.Fingerprint, req.Override)
	if err != nil {
		h.writeServiceError(w, "Failed to commit award", err)
		return
	}
	if h.Scheduler != nil {
		h.Scheduler.Resolve(kind, commit.Record.PeriodKey)
	}

	writeJSON(w, http.StatusCreated, AwardCommitDTO{
		Kind:         commit.Record.Kind,
		Period:       commit.Record.PeriodKey,
		Policy:       string(commit.Record.Policy),
		Distribution: toDistributionDTOs(commit.Preview.Distribution),
		Reversed:     toDeltaDTO(commit.Reversed),
		AwardedAt:    formatTime(commit.Record.AwardedAt),
	})
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

func (h *Handler) PreviewBonus(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[BonusRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	sreq, err := req.toService()
	if err != nil {
		h.writeServiceError(w, "Invalid bonus", err)
		return
	}

	preview, err := h.Service.PreviewBonus(r.Context(), sreq)
	if err != nil {
		h.writeServiceError(w, "Failed to preview bonus", err)
		return
	}
	writeJSON(w, http.StatusOK, toBonusPreviewDTO(preview))
}

func (h *Handler) CommitBonus(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[BonusCommitRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	sreq, err := req.BonusRequest.toService()
	if err != nil {
		h.writeServiceError(w, "Invalid bonus", err)
		return
	}

	commit, err := h.Service.CommitBonus(r.Context(), sreq, req.Fingerprint)
	if err != nil {
		h.writeServiceError(w, "Failed to commit bonus", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchCommitDTO(commit))
}

// RevertBonus previews the reversal when no fingerprint is given and
// commits it otherwise.
func (h *Handler) RevertBonus(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[RevertBonusRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	window, err := req.WindowRequest.window()
	if err != nil {
		h.writeServiceError(w, "Invalid window", err)
		return
	}
	sreq := service.BonusRequest{Category: req.Category, Window: window}

	if req.Fingerprint == "" {
		preview, err := h.Service.PreviewRevertBonus(r.Context(), sreq)
		if err != nil {
			h.writeServiceError(w, "Failed to preview bonus reversal", err)
			return
		}
		writeJSON(w, http.StatusOK, toBonusPreviewDTO(preview))
		return
	}

	commit, err := h.Service.CommitRevertBonus(r.Context(), sreq, req.Fingerprint)
	if err != nil {
		h.writeServiceError(w, "Failed to revert bonus", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchCommitDTO(commit))
}

// ResetWindow previews the reset when no fingerprint is given and commits
// it otherwise.
func (h *Handler) ResetWindow(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[ResetRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	window, err := req.WindowRequest.window()
	if err != nil {
		h.writeServiceError(w, "Invalid window", err)
		return
	}
	sreq := service.ResetRequest{Window: window, StaffID: incentive.StaffID(req.StaffID)}

	if req.Fingerprint == "" {
		preview, err := h.Service.PreviewReset(r.Context(), sreq)
		if err != nil {
			h.writeServiceError(w, "Failed to preview reset", err)
			return
		}
		writeJSON(w, http.StatusOK, ResetPreviewDTO{
			Events:      toSaleEventDTOs(preview.Events),
			StaffDeltas: toDeltaDTO(preview.StaffDeltas),
			Chunks:      preview.Chunks,
			Fingerprint: preview.Fingerprint,
		})
		return
	}

	commit, err := h.Service.CommitReset(r.Context(), sreq, req.Fingerprint)
	if err != nil {
		h.writeServiceError(w, "Failed to reset window", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchCommitDTO(commit))
}

func (r BonusRequest) toService() (service.BonusRequest, error) {
	window, err := r.WindowRequest.window()
	if err != nil {
		return service.BonusRequest{}, err
	}
	out := service.BonusRequest{Category: r.Category, Window: window}
	if r.Multiplier != nil {
		out.Multiplier = *r.Multiplier
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func windowFromQuery(r *http.Request) (*incentive.PeriodWindow, error) {
	q := r.URL.Query()
	if key := q.Get("period"); key != "" {
		w, err := incentive.ParseWindow(key)
		if err != nil {
			return nil, err
		}
		return &w, nil
	}

	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return nil, nil
	}
	start, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return nil, errors.New("from must be an RFC3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return nil, errors.New("to must be an RFC3339 timestamp")
	}
	w, err := incentive.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// writeServiceError maps engine and service errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var partial *incentive.PartialBatchFailureError
	switch {
	case errors.As(err, &partial):
		completed := make([]string, len(partial.CompletedStaff))
		for i, id := range partial.CompletedStaff {
			completed[i] = string(id)
		}
		writeJSON(w, http.StatusMultiStatus, PartialFailureDTO{
			Error:           message,
			Operation:       partial.Operation,
			CompletedStaff:  completed,
			CommittedEvents: partial.CommittedEvents,
			FailedChunk:     partial.FailedChunk,
			TotalChunks:     partial.TotalChunks,
			Details:         partial.Error(),
		})
	case errors.Is(err, incentive.ErrInvalidAmount),
		errors.Is(err, incentive.ErrUnknownRule),
		errors.Is(err, incentive.ErrInvalidSelection),
		errors.Is(err, incentive.ErrNoWinner):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case incentive.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case incentive.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case incentive.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, message, err)
	default:
		h.log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Sales:       SubmitSaleRequest, SaleResultDTO, ScoredEventDTO, SaleEventDTO
  Ledger:      LedgerDTO, ShiftRequest, AdjustmentRequest
  Awards:      AwardRequest, AwardCommitRequest, ReviewDTO, AwardPreviewDTO
  Batch jobs:  WindowRequest, BonusRequest, BonusCommitRequest, ResetRequest,
               BonusPreviewDTO, ResetPreviewDTO, BatchCommitDTO
  Demo:        ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags, checked by decodeJSON
  (bind.go) before a handler sees the value. Domain rules (bracket amounts,
  tie-set membership) are checked by the engine, not here.

WINDOWS:
  Batch requests name a window either by period key ("2025-W07",
  "2025-03") or by an explicit inclusive from/to range.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: CatalogJSON, returned by GET /api/catalog
*/
package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/service"
)

// =============================================================================
// SALES
// =============================================================================

type SubmitSaleRequest struct {
	StaffID    string          `json:"staff_id" validate:"required,max=128"`
	Category   string          `json:"category" validate:"required,max=64"`
	ServiceKey string          `json:"service_key,omitempty" validate:"max=64"`
	Amount     json.RawMessage `json:"amount,omitempty"` // number or string, parsed by the engine
	At         *time.Time      `json:"at,omitempty"`
}

// amountText returns the raw amount as text: a JSON string is unquoted,
// anything else is passed through for the engine to reject.
func (r SubmitSaleRequest) amountText() string {
	raw := strings.TrimSpace(string(r.Amount))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Amount, &s); err == nil {
		return s
	}
	return raw
}

type ScoredEventDTO struct {
	Category            string `json:"category"`
	ServiceKey          string `json:"service_key"`
	Bracket             string `json:"bracket,omitempty"`
	ExistingCount       int    `json:"existing_count"`
	AfterCount          int    `json:"after_count"`
	Stars               int    `json:"stars"`
	RecurringSuppressed bool   `json:"recurring_suppressed"`
}

type SaleEventDTO struct {
	ID           string       `json:"id"`
	StaffID      string       `json:"staff_id"`
	Category     string       `json:"category"`
	ServiceKey   string       `json:"service_key"`
	Bracket      string       `json:"bracket,omitempty"`
	Amount       *string      `json:"amount,omitempty"`
	StarsAwarded int          `json:"stars_awarded"`
	Timestamp    string       `json:"timestamp"`
	IsManual     bool         `json:"is_manual,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	AwardKind    string       `json:"award_kind,omitempty"`
	PeriodKey    string       `json:"period_key,omitempty"`
	Bonus        *BonusInfoDTO `json:"bonus,omitempty"`
}

type BonusInfoDTO struct {
	Multiplier    string `json:"multiplier"`
	OriginalStars int    `json:"original_stars"`
}

type SaleResultDTO struct {
	Event  SaleEventDTO   `json:"event"`
	Scored ScoredEventDTO `json:"scored"`
	Ledger LedgerDTO      `json:"ledger"`
}

// =============================================================================
// LEDGER
// =============================================================================

type LedgerDTO struct {
	StaffID     string `json:"staff_id"`
	StarsTotal  int    `json:"stars_total"`
	ShiftsTotal int    `json:"shifts_total"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type ShiftRequest struct {
	At *time.Time `json:"at,omitempty"`
}

type ShiftDTO struct {
	ID      string `json:"id"`
	StaffID string `json:"staff_id"`
	At      string `json:"at"`
}

type AdjustmentRequest struct {
	Delta  int    `json:"delta" validate:"required,ne=0"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// =============================================================================
// AWARDS
// =============================================================================

type AwardRequest struct {
	Policy          string `json:"policy,omitempty" validate:"omitempty,oneof=ALL CUSTOM RANDOM SPECIFIC"`
	CustomAmount    int    `json:"custom_amount,omitempty" validate:"omitempty,gt=0"`
	SelectedStaffID string `json:"selected_staff_id,omitempty" validate:"required_if=Policy SPECIFIC"`
	Seed            *int64 `json:"seed,omitempty"`
}

type AwardCommitRequest struct {
	AwardRequest
	Fingerprint string `json:"fingerprint" validate:"required,len=64,hexadecimal"`
	Override    bool   `json:"override,omitempty"`
}

type StandingDTO struct {
	StaffID string `json:"staff_id"`
	Value   int    `json:"value"`
}

type WindowDTO struct {
	Key     string `json:"key"`
	Cadence string `json:"cadence"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type AwardRecordDTO struct {
	AwardedAt   string `json:"awarded_at"`
	Policy      string `json:"policy"`
	Seed        *int64 `json:"seed,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type ReviewDTO struct {
	Kind      string          `json:"kind"`
	Metric    string          `json:"metric"`
	Window    WindowDTO       `json:"window"`
	Standings []StandingDTO   `json:"standings"`
	Max       int             `json:"max"`
	SecondMax int             `json:"second_max"`
	Margin    int             `json:"margin"`
	Threshold int             `json:"threshold"`
	MarginMet bool            `json:"margin_met"`
	Winners   []string        `json:"winners"`
	Awarded   *AwardRecordDTO `json:"awarded,omitempty"`
}

type DistributionDTO struct {
	StaffID string `json:"staff_id"`
	Stars   int    `json:"stars"`
}

type AwardPreviewDTO struct {
	Review       ReviewDTO         `json:"review"`
	Policy       string            `json:"policy"`
	Seed         *int64            `json:"seed,omitempty"`
	Distribution []DistributionDTO `json:"distribution"`
	Fingerprint  string            `json:"fingerprint"`
}

type AwardCommitDTO struct {
	Kind         string            `json:"kind"`
	Period       string            `json:"period"`
	Policy       string            `json:"policy"`
	Distribution []DistributionDTO `json:"distribution"`
	Reversed     map[string]int    `json:"reversed,omitempty"`
	AwardedAt    string            `json:"awarded_at"`
}

type PendingReviewDTO struct {
	Review     ReviewDTO `json:"review"`
	DetectedAt string    `json:"detected_at"`
}

// =============================================================================
// BATCH JOBS
// =============================================================================

// WindowRequest names a window by period key or by an explicit range.
type WindowRequest struct {
	Period string     `json:"period,omitempty" validate:"required_without=From"`
	From   *time.Time `json:"from,omitempty" validate:"required_without=Period"`
	To     *time.Time `json:"to,omitempty" validate:"required_with=From"`
}

type BonusRequest struct {
	WindowRequest
	Category   string           `json:"category,omitempty" validate:"max=64"`
	Multiplier *decimal.Decimal `json:"multiplier,omitempty"`
}

type BonusCommitRequest struct {
	BonusRequest
	Fingerprint string `json:"fingerprint" validate:"required,len=64,hexadecimal"`
}

// ResetRequest previews when Fingerprint is empty and commits otherwise.
// The same convention applies to RevertBonusRequest.
type ResetRequest struct {
	WindowRequest
	StaffID     string `json:"staff_id,omitempty" validate:"max=128"`
	Fingerprint string `json:"fingerprint,omitempty" validate:"omitempty,len=64,hexadecimal"`
}

type RevertBonusRequest struct {
	WindowRequest
	Category    string `json:"category,omitempty" validate:"max=64"`
	Fingerprint string `json:"fingerprint,omitempty" validate:"omitempty,len=64,hexadecimal"`
}

type BonusPreviewDTO struct {
	Rewritten   []SaleEventDTO `json:"rewritten"`
	StaffDeltas map[string]int `json:"staff_deltas"`
	TotalDelta  int            `json:"total_delta"`
	Chunks      int            `json:"chunks"`
	Fingerprint string         `json:"fingerprint"`
}

type ResetPreviewDTO struct {
	Events      []SaleEventDTO `json:"events"`
	StaffDeltas map[string]int `json:"staff_deltas"`
	Chunks      int            `json:"chunks"`
	Fingerprint string         `json:"fingerprint"`
}

type BatchCommitDTO struct {
	Operation       string         `json:"operation"`
	CommittedEvents int            `json:"committed_events"`
	Chunks          int            `json:"chunks"`
	StaffDeltas     map[string]int `json:"staff_deltas"`
}

// PartialFailureDTO is returned with 207 when a batch stops mid-way.
type PartialFailureDTO struct {
	Error           string   `json:"error"`
	Operation       string   `json:"operation"`
	CompletedStaff  []string `json:"completed_staff"`
	CommittedEvents int      `json:"committed_events"`
	FailedChunk     int      `json:"failed_chunk"`
	TotalChunks     int      `json:"total_chunks"`
	Details         string   `json:"details"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Staff       []string `json:"staff"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required,max=64"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toSaleEventDTO(e incentive.SaleEvent) SaleEventDTO {
	dto := SaleEventDTO{
		ID:           string(e.ID),
		StaffID:      string(e.StaffID),
		Category:     e.Category,
		ServiceKey:   e.ServiceKey,
		Bracket:      e.Bracket,
		StarsAwarded: e.StarsAwarded,
		Timestamp:    formatTime(e.Timestamp),
		IsManual:     e.IsManual,
		Reason:       e.Reason,
	}
	if e.Amount.Valid {
		s := e.Amount.Decimal.String()
		dto.Amount = &s
	}
	if e.PeriodTag != nil {
		dto.AwardKind = e.PeriodTag.AwardKind
		dto.PeriodKey = e.PeriodTag.PeriodKey
	}
	if e.Bonus != nil && e.Bonus.Applied {
		dto.Bonus = &BonusInfoDTO{Multiplier: e.Bonus.Multiplier.String(), OriginalStars: e.Bonus.OriginalStars}
	}
	return dto
}

func toSaleEventDTOs(events []incentive.SaleEvent) []SaleEventDTO {
	out := make([]SaleEventDTO, len(events))
	for i, e := range events {
		out[i] = toSaleEventDTO(e)
	}
	return out
}

func toLedgerDTO(l incentive.EmployeeLedger) LedgerDTO {
	return LedgerDTO{
		StaffID:     string(l.StaffID),
		StarsTotal:  l.StarsTotal,
		ShiftsTotal: l.ShiftsTotal,
		UpdatedAt:   formatTime(l.UpdatedAt),
	}
}

func toScoredEventDTO(s incentive.ScoredEvent) ScoredEventDTO {
	return ScoredEventDTO{
		Category:            s.Rule.Category,
		ServiceKey:          s.Rule.ServiceKey,
		Bracket:             s.Bracket,
		ExistingCount:       s.ExistingCount,
		AfterCount:          s.AfterCount,
		Stars:               s.Stars,
		RecurringSuppressed: s.RecurringSuppressed,
	}
}

func toWindowDTO(w incentive.PeriodWindow) WindowDTO {
	return WindowDTO{Key: w.Key, Cadence: string(w.Cadence), Start: formatTime(w.Start), End: formatTime(w.End)}
}

func toReviewDTO(r service.Review) ReviewDTO {
	dto := ReviewDTO{
		Kind:      r.Kind.Name,
		Metric:    r.Kind.Metric,
		Window:    toWindowDTO(r.Window),
		Standings: make([]StandingDTO, len(r.Ranked.Standings)),
		Max:       r.Ranked.Max,
		SecondMax: r.Ranked.SecondMax,
		Margin:    r.Ranked.Margin,
		Threshold: r.Ranked.Threshold,
		MarginMet: r.Ranked.MarginMet,
		Winners:   make([]string, len(r.Ranked.Winners)),
	}
	for i, s := range r.Ranked.Standings {
		dto.Standings[i] = StandingDTO{StaffID: string(s.StaffID), Value: s.Value}
	}
	for i, id := range r.Ranked.Winners {
		dto.Winners[i] = string(id)
	}
	if r.Awarded != nil {
		dto.Awarded = &AwardRecordDTO{
			AwardedAt:   formatTime(r.Awarded.AwardedAt),
			Policy:      string(r.Awarded.Policy),
			Seed:        r.Awarded.Seed,
			Fingerprint: r.Awarded.Fingerprint,
		}
	}
	return dto
}

func toDistributionDTOs(dist []incentive.AwardDistribution) []DistributionDTO {
	out := make([]DistributionDTO, len(dist))
	for i, d := range dist {
		out[i] = DistributionDTO{StaffID: string(d.StaffID), Stars: d.Stars}
	}
	return out
}

func toDeltaDTO(deltas map[incentive.StaffID]int) map[string]int {
	out := make(map[string]int, len(deltas))
	for id, d := range deltas {
		out[string(id)] = d
	}
	return out
}

func toBatchCommitDTO(c service.BatchCommit) BatchCommitDTO {
	return BatchCommitDTO{
		Operation:       c.Operation,
		CommittedEvents: c.CommittedEvents,
		Chunks:          c.Chunks,
		StaffDeltas:     toDeltaDTO(c.StaffDeltas),
	}
}

func toBonusPreviewDTO(p service.BonusPreview) BonusPreviewDTO {
	return BonusPreviewDTO{
		Rewritten:   toSaleEventDTOs(p.Result.Rewritten),
		StaffDeltas: toDeltaDTO(p.Result.StaffDeltas),
		TotalDelta:  p.Result.TotalDelta(),
		Chunks:      p.Chunks,
		Fingerprint: p.Fingerprint,
	}
}

func (r AwardRequest) toService() service.AwardRequest {
	return service.AwardRequest{
		Policy:          incentive.TiePolicy(r.Policy),
		CustomAmount:    r.CustomAmount,
		SelectedStaffID: incentive.StaffID(r.SelectedStaffID),
		Seed:            r.Seed,
	}
}

// window resolves a WindowRequest into a PeriodWindow.
func (r WindowRequest) window() (incentive.PeriodWindow, error) {
	if r.Period != "" {
		return incentive.ParseWindow(r.Period)
	}
	return incentive.NewWindow(*r.From, *r.To)
}

/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	sales and shifts for demos of the POS and back-office UIs. Each scenario
	uses its own demo staff so that loading one does not disturb another.

AVAILABLE SCENARIOS:

	insurance-brackets:   Bracketed insurance sales across every threshold
	weekly-shift-tie:     Two staff tied on shifts in the last closed week
	monthly-clear-winner: One staff clearly ahead on sales last month
	subscription-month:   Recurring subscriptions counted once per month

HOW SCENARIOS WORK:
 1. Reset the scenario staff's events (preview + commit through the service)
 2. Submit sales and record shifts through the service
 3. Remember the loaded scenario for GET /api/scenarios/current

Everything is anchored to the service clock: "last week" and "last month"
are the periods immediately before the current ones, so the period close
scheduler picks the seeded data up as pending reviews.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "weekly-shift-tie"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description and staff
 2. Create loader function: loadXxxScenario(ctx, seed)
 3. Add it to the 'loaders' map

NOTE:

	Reset deletes events only. Shifts and award records of the demo staff
	survive a reload, so reloading weekly-shift-tie adds a second set of
	shifts. Only enable scenarios (server.scenarios) in development.

SEE ALSO:
  - server.go: Routes, mounted when RouterOptions.Scenarios is set
  - service/batch.go: PreviewReset, CommitReset
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/service"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "insurance-brackets",
		Name:        "Insurance Brackets",
		Description: "Insurance sales in every bracket, including the x3 and x2 thresholds",
		Staff:       []string{"demo-anna"},
	},
	{
		ID:          "weekly-shift-tie",
		Name:        "Weekly Shift Tie",
		Description: "Two staff tied on worked shifts last week, ready for a tie decision",
		Staff:       []string{"demo-bea", "demo-carl", "demo-dina"},
	},
	{
		ID:          "monthly-clear-winner",
		Name:        "Monthly Clear Winner",
		Description: "One staff leads last month's sales by more than the margin threshold",
		Staff:       []string{"demo-erik", "demo-frida"},
	},
	{
		ID:          "subscription-month",
		Name:        "Subscription Month",
		Description: "Repeated mobile subscriptions, counted once per calendar month",
		Staff:       []string{"demo-gus"},
	},
}

type scenarioLoader func(ctx context.Context, seed *scenarioSeed) error

var loaders = map[string]scenarioLoader{
	"insurance-brackets":   loadInsuranceBracketsScenario,
	"weekly-shift-tie":     loadWeeklyShiftTieScenario,
	"monthly-clear-winner": loadMonthlyClearWinnerScenario,
	"subscription-month":   loadSubscriptionMonthScenario,
}

func findScenario(id string) (ScenarioDTO, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioDTO{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the scenario's staff and seeds its data.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[LoadScenarioRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	scenario, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("no scenario %q", req.ScenarioID))
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	seed := newScenarioSeed(h.Service)

	if err := seed.reset(ctx, scenario.Staff); err != nil {
		h.writeServiceError(w, "Failed to reset scenario staff", err)
		return
	}
	if err := loaders[scenario.ID](ctx, seed); err != nil {
		h.writeServiceError(w, "Failed to load scenario", err)
		return
	}
	h.currentScenario = scenario.ID

	h.log.Info().
		Str("scenario", scenario.ID).
		Int("sales", seed.sales).
		Int("shifts", seed.shifts).
		Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": scenario.ID,
		"sales":    seed.sales,
		"shifts":   seed.shifts,
	})
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

// scenarioSeed writes demo data through the service, anchored at its clock.
type scenarioSeed struct {
	svc       *service.Service
	now       time.Time
	lastWeek  incentive.PeriodWindow
	lastMonth incentive.PeriodWindow

	sales  int
	shifts int
}

func newScenarioSeed(svc *service.Service) *scenarioSeed {
	now := svc.Now().UTC()
	return &scenarioSeed{
		svc:       svc,
		now:       now,
		lastWeek:  incentive.WeekWindow(now).Previous(),
		lastMonth: incentive.MonthWindow(now).Previous(),
	}
}

// reset removes the staff's events from last month up to now.
func (s *scenarioSeed) reset(ctx context.Context, staff []string) error {
	from := s.lastMonth.Start
	if s.lastWeek.Start.Before(from) {
		from = s.lastWeek.Start
	}
	window, err := incentive.NewWindow(from, s.now)
	if err != nil {
		return err
	}

	for _, id := range staff {
		req := service.ResetRequest{Window: window, StaffID: incentive.StaffID(id)}
		preview, err := s.svc.PreviewReset(ctx, req)
		if err != nil {
			return err
		}
		if len(preview.Events) == 0 {
			continue
		}
		if _, err := s.svc.CommitReset(ctx, req, preview.Fingerprint); err != nil {
			return err
		}
	}
	return nil
}

// day returns hour o'clock on the given day offset into w.
func day(w incentive.PeriodWindow, offset, hour int) time.Time {
	return w.Start.AddDate(0, 0, offset).Add(time.Duration(hour) * time.Hour)
}

func (s *scenarioSeed) sale(ctx context.Context, staff, category, serviceKey string, at time.Time) error {
	_, err := s.svc.SubmitSale(ctx, incentive.RawSale{
		StaffID:    incentive.StaffID(staff),
		Category:   category,
		ServiceKey: serviceKey,
		At:         at,
	})
	if err == nil {
		s.sales++
	}
	return err
}

func (s *scenarioSeed) insurance(ctx context.Context, staff string, kr int64, at time.Time) error {
	_, err := s.svc.SubmitSale(ctx, incentive.RawSale{
		StaffID:  incentive.StaffID(staff),
		Category: "Insurance",
		Amount:   decimal.NewNullDecimal(decimal.NewFromInt(kr)),
		At:       at,
	})
	if err == nil {
		s.sales++
	}
	return err
}

func (s *scenarioSeed) shift(ctx context.Context, staff string, at time.Time) error {
	_, err := s.svc.RecordShift(ctx, incentive.StaffID(staff), at)
	if err == nil {
		s.shifts++
	}
	return err
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadInsuranceBracketsScenario(ctx context.Context, seed *scenarioSeed) error {
	// 50/60/70kr: one star on the third sale. 150/180kr: one star on the
	// second. Then one sale in each single-sale bracket.
	amounts := []int64{50, 60, 70, 150, 180, 350, 700, 1200, 1600}
	for i, kr := range amounts {
		if err := seed.insurance(ctx, "demo-anna", kr, day(seed.lastMonth, 1, 9+i)); err != nil {
			return err
		}
	}
	return nil
}

func loadWeeklyShiftTieScenario(ctx context.Context, seed *scenarioSeed) error {
	shifts := map[string]int{"demo-bea": 5, "demo-carl": 5, "demo-dina": 2}
	for staff, n := range shifts {
		for d := 0; d < n; d++ {
			if err := seed.shift(ctx, staff, day(seed.lastWeek, d, 8)); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadMonthlyClearWinnerScenario(ctx context.Context, seed *scenarioSeed) error {
	erik := []string{"charger", "case", "screen-protector"}
	for i := 0; i < 12; i++ {
		if err := seed.sale(ctx, "demo-erik", "Accessories", erik[i%len(erik)], day(seed.lastMonth, i, 11)); err != nil {
			return err
		}
	}
	if err := seed.sale(ctx, "demo-erik", "Finance", "credit-account", day(seed.lastMonth, 14, 15)); err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		if err := seed.sale(ctx, "demo-frida", "Accessories", "charger", day(seed.lastMonth, i, 13)); err != nil {
			return err
		}
	}
	return nil
}

func loadSubscriptionMonthScenario(ctx context.Context, seed *scenarioSeed) error {
	sales := []struct {
		key string
		at  time.Time
	}{
		{"mobile", day(seed.lastMonth, 2, 10)},
		{"mobile", day(seed.lastMonth, 20, 10)}, // same month, no stars
		{"broadband", day(seed.lastMonth, 21, 10)},
		{"mobile", seed.now}, // new month, counts again
	}
	for _, s := range sales {
		if err := seed.sale(ctx, "demo-gus", "Subscription", s.key, s.at); err != nil {
			return err
		}
	}
	return nil
}

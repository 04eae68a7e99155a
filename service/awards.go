package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/warp/star-engine/config"
	"github.com/warp/star-engine/incentive"
)

// =============================================================================
// AWARD KINDS
// =============================================================================

// AwardKind is a named period award: who did the most of Metric in a
// window of Cadence, by at least Margin.
type AwardKind struct {
	Name    string
	Cadence incentive.Cadence
	Metric  string // shifts, sales, stars or category:<name>
	Amount  int
	Margin  int
}

// DefaultKinds are the observed store awards.
func DefaultKinds() []AwardKind {
	return []AwardKind{
		{Name: "weekly_shifts", Cadence: incentive.CadenceWeekly, Metric: "shifts", Amount: 2, Margin: incentive.DefaultMarginThreshold},
		{Name: "monthly_sales", Cadence: incentive.CadenceMonthly, Metric: "sales", Amount: 5, Margin: incentive.DefaultMarginThreshold},
	}
}

// KindsFromConfig converts configured awards, sorted by name.
func KindsFromConfig(cfg *config.Config) []AwardKind {
	out := make([]AwardKind, 0, len(cfg.Awards))
	for name, a := range cfg.Awards {
		out = append(out, AwardKind{
			Name:    name,
			Cadence: incentive.Cadence(a.Cadence),
			Metric:  a.Metric,
			Amount:  a.Amount,
			Margin:  cfg.MarginFor(a),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Kinds returns the configured award kinds, sorted by name.
func (s *Service) Kinds() []AwardKind {
	out := make([]AwardKind, 0, len(s.kinds))
	for _, k := range s.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) kind(name string) (AwardKind, error) {
	k, ok := s.kinds[name]
	if !ok {
		return AwardKind{}, fmt.Errorf("%w: %q", incentive.ErrUnknownAwardKind, name)
	}
	return k, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// Review is the ranking of one closed (or open) period.
type Review struct {
	Kind    AwardKind
	Window  incentive.PeriodWindow
	Ranked  incentive.RankedResult
	Awarded *incentive.AwardRecord // nil when not yet awarded
}

// ReviewPeriod ranks staff for an award kind over the period periodKey.
func (s *Service) ReviewPeriod(ctx context.Context, kindName, periodKey string) (Review, error) {
	defer s.metrics.ObserveOperation("review_period", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.review(ctx, s.store, kindName, periodKey)
}

func (s *Service) review(ctx context.Context, store incentive.Store, kindName, periodKey string) (Review, error) {
	k, err := s.kind(kindName)
	if err != nil {
		return Review{}, err
	}
	window, err := incentive.ParseWindow(periodKey)
	if err != nil {
		return Review{}, err
	}
	if window.Cadence != k.Cadence {
		return Review{}, fmt.Errorf("%w: %s is a %s award, %q is a %s period",
			incentive.ErrInvalidPeriod, k.Name, k.Cadence, periodKey, window.Cadence)
	}

	ranked, err := s.rank(ctx, store, k, window)
	if err != nil {
		return Review{}, err
	}
	rec, err := store.GetAwardRecord(ctx, window.Key, k.Name)
	if err != nil {
		return Review{}, err
	}
	return Review{Kind: k, Window: window, Ranked: ranked, Awarded: rec}, nil
}

func (s *Service) rank(ctx context.Context, store incentive.Store, k AwardKind, window incentive.PeriodWindow) (incentive.RankedResult, error) {
	if k.Metric == "shifts" {
		shifts, err := store.QueryShifts(ctx, window)
		if err != nil {
			return incentive.RankedResult{}, err
		}
		return incentive.Aggregate(shifts, incentive.CountAll[incentive.Shift](), window, k.Margin), nil
	}

	var metric incentive.Metric[incentive.SaleEvent]
	switch {
	case k.Metric == "sales":
		metric = incentive.CountSales()
	case k.Metric == "stars":
		metric = incentive.SumStars()
	case strings.HasPrefix(k.Metric, "category:"):
		metric = incentive.CountCategory(strings.TrimPrefix(k.Metric, "category:"))
	default:
		return incentive.RankedResult{}, fmt.Errorf("%w: award %s has unknown metric %q", incentive.ErrInvalidInput, k.Name, k.Metric)
	}

	events, err := store.QueryEvents(ctx, incentive.EventQuery{Window: &window})
	if err != nil {
		return incentive.RankedResult{}, err
	}
	return incentive.Aggregate(events, metric, window, k.Margin), nil
}

// =============================================================================
// PREVIEW & COMMIT
// =============================================================================

// AwardRequest is the operator's tie decision. Policy defaults to ALL.
// For RANDOM, a nil Seed is generated at preview and must be echoed back
// on commit so the pick is the same.
type AwardRequest struct {
	Policy          incentive.TiePolicy
	CustomAmount    int
	SelectedStaffID incentive.StaffID
	Seed            *int64
}

type AwardPreview struct {
	Review       Review
	Policy       incentive.TiePolicy
	Seed         *int64
	Distribution []incentive.AwardDistribution
	Fingerprint  string
}

type AwardCommit struct {
	Preview  AwardPreview
	Events   []incentive.SaleEvent
	Reversed map[incentive.StaffID]int // prior award undone by override
	Record   incentive.AwardRecord
}

// PreviewAward computes the distribution without writing anything.
// A period without a winner previews an empty distribution.
func (s *Service) PreviewAward(ctx context.Context, kindName, periodKey string, req AwardRequest) (AwardPreview, error) {
	defer s.metrics.ObserveOperation("preview_award", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.previewAward(ctx, s.store, kindName, periodKey, req)
}

func (s *Service) previewAward(ctx context.Context, store incentive.Store, kindName, periodKey string, req AwardRequest) (AwardPreview, error) {
	review, err := s.review(ctx, store, kindName, periodKey)
	if err != nil {
		return AwardPreview{}, err
	}

	policy := req.Policy
	if policy == "" {
		policy = incentive.TieAll
	}
	if _, err := incentive.ParseTiePolicy(string(policy)); err != nil {
		return AwardPreview{}, err
	}
	if policy == incentive.TieCustom && req.CustomAmount <= 0 {
		return AwardPreview{}, fmt.Errorf("%w: CUSTOM needs a positive amount", incentive.ErrInvalidPolicy)
	}

	params := incentive.ResolveParams{
		Amount:          review.Kind.Amount,
		CustomAmount:    req.CustomAmount,
		SelectedStaffID: req.SelectedStaffID,
	}
	seed := req.Seed
	if policy == incentive.TieRandom && review.Ranked.TieSet.Size() > 1 {
		if seed == nil {
			v := s.seed()
			seed = &v
		}
		params.RNG = rand.New(rand.NewSource(*seed))
	}

	dist, err := incentive.Resolve(review.Ranked.TieSet, policy, params)
	if err != nil {
		return AwardPreview{}, err
	}
	return AwardPreview{
		Review:       review,
		Policy:       policy,
		Seed:         seed,
		Distribution: dist,
		Fingerprint:  incentive.DistributionFingerprint(review.Kind.Name, review.Window.Key, policy, dist),
	}, nil
}

// CommitAward writes the previewed award in one unit: award events, ledger
// increments and the AwardRecord. A period already awarded is refused
// unless override is set, in which case the earlier award events are
// reversed first.
func (s *Service) CommitAward(ctx context.Context, kindName, periodKey string, req AwardRequest, fingerprint string, override bool) (AwardCommit, error) {
	defer s.metrics.ObserveOperation("commit_award", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if fingerprint == "" {
		return AwardCommit{}, fmt.Errorf("%w: fingerprint from preview is required", incentive.ErrInvalidInput)
	}

	unlock := s.locks.lock("award|" + kindName + "|" + periodKey)
	defer unlock()

	var out AwardCommit
	err := s.store.WithTx(ctx, func(tx incentive.Store) error {
		preview, err := s.previewAward(ctx, tx, kindName, periodKey, req)
		if err != nil {
			return err
		}
		out.Preview = preview
		kind, window := preview.Review.Kind, preview.Review.Window

		if rec := preview.Review.Awarded; rec != nil && !override {
			return &incentive.AlreadyAwardedError{PeriodKey: rec.PeriodKey, Kind: rec.Kind, AwardedAt: rec.AwardedAt}
		}
		if preview.Fingerprint != fingerprint {
			return fmt.Errorf("%w: %s %s changed since preview", incentive.ErrFingerprintMismatch, kind.Name, window.Key)
		}
		if len(preview.Distribution) == 0 {
			return fmt.Errorf("%w: %s %s (max %d, margin %d < %d)", incentive.ErrNoWinner,
				kind.Name, window.Key, preview.Review.Ranked.Max, preview.Review.Ranked.Margin, kind.Margin)
		}

		rc := s.reconciler(tx)
		if preview.Review.Awarded != nil {
			prior, err := tx.QueryEvents(ctx, incentive.EventQuery{AwardKind: kind.Name, PeriodKey: window.Key})
			if err != nil {
				return err
			}
			if out.Reversed, err = rc.Reverse(ctx, prior); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		for _, d := range preview.Distribution {
			e := incentive.SaleEvent{
				StaffID:      d.StaffID,
				Category:     incentive.CategoryAward,
				ServiceKey:   kind.Name,
				StarsAwarded: d.Stars,
				Timestamp:    now,
				Reason:       fmt.Sprintf("%s %s (%s)", kind.Name, window.Key, preview.Policy),
				PeriodTag:    &incentive.PeriodTag{Cadence: kind.Cadence, PeriodKey: window.Key, AwardKind: kind.Name},
			}
			if e.ID, err = tx.AppendEvent(ctx, e); err != nil {
				return err
			}
			if err := rc.ApplyDelta(ctx, d.StaffID, d.Stars); err != nil {
				return err
			}
			out.Events = append(out.Events, e)
		}

		out.Record = incentive.AwardRecord{
			PeriodKey:   window.Key,
			Kind:        kind.Name,
			AwardedAt:   now,
			Policy:      preview.Policy,
			Seed:        preview.Seed,
			Fingerprint: preview.Fingerprint,
		}
		return tx.SetAwardRecord(ctx, out.Record)
	})
	if err != nil {
		return AwardCommit{}, fmt.Errorf("commit %s %s: %w", kindName, periodKey, err)
	}

	s.metrics.AwardCommitted(kindName)
	s.metrics.StarsDelta("award", incentive.TotalStars(out.Preview.Distribution))
	s.log.Info().
		Str("kind", kindName).
		Str("period", out.Record.PeriodKey).
		Str("policy", string(out.Record.Policy)).
		Int("winners", len(out.Events)).
		Bool("override", out.Reversed != nil).
		Msg("period award committed")
	return out, nil
}

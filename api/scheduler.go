/*
scheduler.go - Period close scheduler

PURPOSE:
  Periodically checks whether a weekly or monthly period has closed for
  each configured award kind, ranks it, and queues it for operator review.
  The scheduler never commits an award: tie resolution and confirmation
  stay with the operator (POST /api/awards/{kind}/{period}/commit).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Looks at the period immediately before the current one per kind
  - Skips periods that already carry an AwardRecord
  - Keeps pending reviews in memory; they are recomputed on every check

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour, config scheduler.interval)
  - Enabled: Whether scheduler is active (config scheduler.enabled)

USAGE:
  scheduler := NewPeriodCloseScheduler(svc, metrics)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ListPendingReviews, CommitAward
  - service/awards.go: ReviewPeriod
*/
package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/logger"
	"github.com/warp/star-engine/metrics"
	"github.com/warp/star-engine/service"
)

// PendingReview is a closed, unawarded period waiting for a decision.
type PendingReview struct {
	Review     service.Review
	DetectedAt time.Time
}

// PeriodCloseScheduler queues closed periods for review.
type PeriodCloseScheduler struct {
	Service       *service.Service
	Metrics       *metrics.Manager
	CheckInterval time.Duration
	Enabled       bool

	now     func() time.Time
	log     *logger.Logger
	pending map[string]PendingReview

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex // guards ticker and lifecycle
	pmu    sync.RWMutex
}

// NewPeriodCloseScheduler creates a new scheduler.
func NewPeriodCloseScheduler(svc *service.Service, m *metrics.Manager) *PeriodCloseScheduler {
	return &PeriodCloseScheduler{
		Service:       svc,
		Metrics:       m,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		now:           time.Now,
		log:           logger.Named("scheduler"),
		pending:       make(map[string]PendingReview),
	}
}

// Start begins the scheduler.
func (ps *PeriodCloseScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.log.Info().Msg("disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan bool)
	ps.wg.Add(1)

	go ps.run(ps.ticker, ps.stop)

	ps.log.Info().Dur("interval", ps.CheckInterval).Msg("started")
}

// Stop stops the scheduler and waits for an in-flight check.
func (ps *PeriodCloseScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.log.Info().Msg("stopped")
	}
}

func (ps *PeriodCloseScheduler) run(ticker *time.Ticker, stop <-chan bool) {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndQueue(context.Background())

	for {
		select {
		case <-ticker.C:
			ps.checkAndQueue(context.Background())
		case <-stop:
			return
		}
	}
}

func (ps *PeriodCloseScheduler) checkAndQueue(ctx context.Context) {
	now := ps.now()
	queued, skipped := 0, 0

	for _, kind := range ps.Service.Kinds() {
		current, err := incentive.WindowFor(kind.Cadence, now)
		if err != nil {
			ps.log.Error().Str("kind", kind.Name).Err(err).Msg("unsupported cadence")
			continue
		}
		closed := current.Previous()
		key := pendingKey(kind.Name, closed.Key)

		review, err := ps.Service.ReviewPeriod(ctx, kind.Name, closed.Key)
		if err != nil {
			ps.log.Error().Str("kind", kind.Name).Str("period", closed.Key).Err(err).Msg("review failed")
			continue
		}

		ps.pmu.Lock()
		if review.Awarded != nil {
			delete(ps.pending, key)
			skipped++
		} else {
			detected := now
			if prev, ok := ps.pending[key]; ok {
				detected = prev.DetectedAt
			}
			ps.pending[key] = PendingReview{Review: review, DetectedAt: detected}
			queued++
		}
		ps.pmu.Unlock()
	}

	ps.Metrics.SetPendingReviews(len(ps.Pending()))
	if queued > 0 || skipped > 0 {
		ps.log.Info().Int("pending", queued).Int("skipped", skipped).Msg("period check completed")
	}
}

// Pending returns the queued reviews ordered by period then kind.
func (ps *PeriodCloseScheduler) Pending() []PendingReview {
	ps.pmu.RLock()
	defer ps.pmu.RUnlock()

	out := make([]PendingReview, 0, len(ps.pending))
	for _, p := range ps.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Review.Window.Key != out[j].Review.Window.Key {
			return out[i].Review.Window.Key < out[j].Review.Window.Key
		}
		return out[i].Review.Kind.Name < out[j].Review.Kind.Name
	})
	return out
}

// Resolve drops a review once its award is committed.
func (ps *PeriodCloseScheduler) Resolve(kind, periodKey string) {
	ps.pmu.Lock()
	delete(ps.pending, pendingKey(kind, periodKey))
	n := len(ps.pending)
	ps.pmu.Unlock()
	ps.Metrics.SetPendingReviews(n)
}

// RunNow triggers an immediate check (for testing/admin).
func (ps *PeriodCloseScheduler) RunNow(ctx context.Context) {
	ps.checkAndQueue(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ps *PeriodCloseScheduler) GetNextRunTime() time.Time {
	return ps.now().Add(ps.CheckInterval)
}

func pendingKey(kind, periodKey string) string { return kind + "|" + periodKey }

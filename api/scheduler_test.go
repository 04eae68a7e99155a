package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/service"
)

func TestScheduler_QueuesClosedPeriods(t *testing.T) {
	// GIVEN: It is Thursday 10 April 2025, so week 14 and March have closed
	api := newTestAPI(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := api.svc.RecordShift(ctx, "anna", time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}

	// WHEN: The scheduler checks
	api.sched.RunNow(ctx)

	// THEN: One review per award kind is pending, ordered by period
	pending := api.sched.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "2025-03", pending[0].Review.Window.Key)
	assert.Equal(t, "monthly_sales", pending[0].Review.Kind.Name)
	assert.Equal(t, "2025-W14", pending[1].Review.Window.Key)
	assert.Equal(t, []incentive.StaffID{"anna"}, pending[1].Review.Ranked.Winners)
	assert.True(t, pending[1].DetectedAt.Equal(testNow))

	rec := api.do(t, http.MethodGet, "/api/awards/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PendingReviewDTO](t, rec), 2)
}

func TestScheduler_KeepsDetectionTimeAndDropsAwarded(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := api.svc.RecordShift(ctx, "anna", time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}
	api.sched.RunNow(ctx)

	// WHEN: A later check runs
	api.sched.now = func() time.Time { return testNow.Add(time.Hour) }
	api.sched.RunNow(ctx)

	// THEN: The original detection time is kept
	for _, p := range api.sched.Pending() {
		assert.True(t, p.DetectedAt.Equal(testNow), "%s %s", p.Review.Kind.Name, p.Review.Window.Key)
	}

	// WHEN: Week 14 is awarded through the API
	preview, err := api.svc.PreviewAward(ctx, "weekly_shifts", "2025-W14", service.AwardRequest{})
	require.NoError(t, err)
	rec := api.do(t, http.MethodPost, "/api/awards/weekly_shifts/2025-W14/commit", map[string]any{"fingerprint": preview.Fingerprint})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// THEN: It leaves the queue immediately and stays out after a recheck
	require.Len(t, api.sched.Pending(), 1)
	api.sched.RunNow(ctx)
	pending := api.sched.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "monthly_sales", pending[0].Review.Kind.Name)
}

func TestScheduler_StartStop(t *testing.T) {
	api := newTestAPI(t)
	api.sched.CheckInterval = time.Hour

	api.sched.Start()
	api.sched.Start() // second start is a no-op
	api.sched.Stop()
	api.sched.Stop()

	assert.Len(t, api.sched.Pending(), 2, "the immediate check ran before stop returned")
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	api := newTestAPI(t)
	api.sched.CheckInterval = time.Hour

	// GIVEN: A scheduler that was started and stopped
	api.sched.Start()
	api.sched.Stop()

	// WHEN: It is started and stopped again
	assert.NotPanics(t, func() {
		api.sched.Start()
		api.sched.Stop()
	})

	// THEN: The second run checked again without queueing duplicates
	assert.Len(t, api.sched.Pending(), 2)
}

func TestScheduler_Disabled(t *testing.T) {
	api := newTestAPI(t)
	api.sched.Enabled = false

	api.sched.Start()
	api.sched.Stop()
	assert.Empty(t, api.sched.Pending())
	assert.Equal(t, testNow.Add(time.Hour), api.sched.GetNextRunTime())
}

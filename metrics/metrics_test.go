package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Counters(t *testing.T) {
	m := NewManager()

	m.SaleScored("Insurance")
	m.SaleScored("Insurance")
	m.SaleRejected("invalid_amount")
	m.StarsDelta("bonus", -3)
	m.StarsDelta("sale", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.salesScored.WithLabelValues("Insurance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.salesRejected.WithLabelValues("invalid_amount")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.starsAwarded.WithLabelValues("bonus")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.starsAwarded.WithLabelValues("sale")))
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.SaleScored("x")
		m.StarsDelta("sale", 1)
		m.AwardCommitted("weekly_shifts")
		m.BonusRewritten(3)
		m.BatchFailure("bonus")
		m.SetPendingReviews(2)
		m.ObserveOperation("op", time.Now())
	})
}

func TestManager_Handler(t *testing.T) {
	m := NewManager()
	m.AwardCommitted("weekly_shifts")
	m.ObserveOperation("commit_award", time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `stars_awards_committed_total{kind="weekly_shifts"} 1`)
	assert.Contains(t, body, "stars_operation_duration_seconds_bucket")
}

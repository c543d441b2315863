package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveUpdate("message")
	m.ObserveUpdate("message")
	m.ObserveCommand("mark_attendance", 20*time.Millisecond, nil)
	m.ObserveCommand("mark_attendance", 20*time.Millisecond, errors.New("x"))
	m.ObserveEvent("user.blocked", time.Millisecond, nil)
	m.ObserveRateLimited(true)
	m.ObserveReminder("sent")
	m.ObserveJob("daily_reminder", time.Second, errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.updatesTotal.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandErrors.WithLabelValues("mark_attendance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("user.blocked", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("daily_reminder", "error")))
}

func TestMetrics_InFlight(t *testing.T) {
	m := New()
	done := m.TrackInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveUpdate("callback_query")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `attendio_updates_total{kind="callback_query"} 1`)

	var nilMetrics *Metrics
	rec = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

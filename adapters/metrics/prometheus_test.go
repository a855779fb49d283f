package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralrestaurante/amigo-central/domain"
)

func TestPrometheusCounters(t *testing.T) {
	p := NewPrometheus()

	p.ObserveToolCall("create_reservation", domain.OutcomeSuccess, 10*time.Millisecond)
	p.ObserveToolCall("create_reservation", domain.OutcomeError, 10*time.Millisecond)
	p.ObserveToolCall("create_reservation", domain.OutcomeSuccess, 10*time.Millisecond)
	p.ObserveModelCall(time.Second, nil)
	p.ObserveModelCall(time.Second, errors.New("quota"))
	p.SessionStarted()
	p.SessionStarted()
	p.SessionEnded(domain.TeardownExpired)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.toolCalls.WithLabelValues("create_reservation", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.modelCalls.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.sessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.sessionsEnded.WithLabelValues("expired")))
}

func TestPrometheusHandler(t *testing.T) {
	p := NewPrometheus()
	p.SessionStarted()

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "concierge_sessions_active 1")
}

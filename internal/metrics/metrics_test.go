package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danhigham/tipcharm/internal/domain"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.UpdateReceived("chat")
		m.MessageAccepted()
		m.MessageDropped("sender")
		m.EventExtracted()
		m.Duplicate()
		m.AlertPlayed(2)
		m.SetQueueDepth(3)
		m.AuthState(domain.AuthStateReady)
	})
}

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.MessageDropped("sender")
	m.MessageDropped("sender")
	m.AlertPlayed(3)
	m.SetQueueDepth(4)
	m.AuthState(domain.AuthStateReady)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues("sender")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsPlayed.WithLabelValues("3")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, float64(domain.AuthStateReady), testutil.ToFloat64(m.AuthStateGauge))
}

func TestServer_Routes(t *testing.T) {
	m := New()
	m.EventExtracted()

	srv := NewServer(ServerOptions{
		Metrics: m,
		Status: func() any {
			return map[string]string{"auth_state": "ready"}
		},
	})

	get := func(path string) (int, string) {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		return rec.Code, string(body)
	}

	code, body := get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "tipcharm_events_extracted_total 1")

	code, body = get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"ok"`)

	code, body = get("/status")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"auth_state":"ready"}`, body)

	code, _ = get("/properties")
	assert.Equal(t, http.StatusNotFound, code)
}

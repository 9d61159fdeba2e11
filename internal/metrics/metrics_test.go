package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoolGauge(t *testing.T) {
	BoolGauge(LeakActive, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(LeakActive))
	BoolGauge(LeakActive, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(LeakActive))
}

func TestHandlerExposesCollectors(t *testing.T) {
	SensorReads.WithLabelValues("coolant_temp", "ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gadgetini_sensor_reads_total{outcome="ok",sensor="coolant_temp"}`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

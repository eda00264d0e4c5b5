package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/change-adapter/internal/model"
)

func TestObserveStatus(t *testing.T) {
	m := NewMetrics()

	m.ObserveStatus("snow-1", model.StatusOnline)
	m.ObserveStatus("snow-1", model.StatusOnline)
	m.ObserveStatus("snow-1", model.StatusOffline)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HealthchecksTotal.WithLabelValues("snow-1", "ONLINE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthchecksTotal.WithLabelValues("snow-1", "OFFLINE")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InstanceUp.WithLabelValues("snow-1")))

	m.ObserveStatus("snow-1", model.StatusOnline)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstanceUp.WithLabelValues("snow-1")))
}

func TestObserveRecordsAndErrors(t *testing.T) {
	m := NewMetrics()

	m.ObserveRecords("snow-1", 3)
	m.ObserveRecords("snow-1", 2)
	m.ObserveError("snow-1", "malformed")

	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsFetchedTotal.WithLabelValues("snow-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrorsTotal.WithLabelValues("snow-1", "malformed")))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveStatus("snow-1", model.StatusOnline)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `changeadapter_instance_up{instance="snow-1"} 1`)
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, logrus.New())
	require.NoError(t, err)

	pm.RecordRun("success", 20*time.Millisecond, 4)
	pm.RecordRun("success", 10*time.Millisecond, 8)
	pm.RecordRun("error", time.Millisecond, 0)
	pm.RecordSearchSteps("joint", 3)
	pm.RecordSearchSteps("joint", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.runsTotal.WithLabelValues("error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(pm.searchStepsTotal.WithLabelValues("joint")))

	count, err := testutil.GatherAndCount(pm.Registry(), "kano_information_loss")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandlerExposesMetrics(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, logrus.New())
	require.NoError(t, err)
	pm.RecordHTTPRequest(http.MethodPost, "/api/v1/anonymize", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `kano_http_requests_total{method="POST",path="/api/v1/anonymize",status="200"} 1`))
}

func TestProcessCollectors(t *testing.T) {
	pm, err := NewPrometheusMetrics(&PrometheusConfig{Namespace: "kano", ProcessCollectors: true}, logrus.New())
	require.NoError(t, err)

	families, err := pm.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/kano/pkg/constants"
)

const ageIncomeCSV = "Age,Income,Name\n" +
	"25,40000,a\n30,45000,b\n35,50000,c\n40,55000,d\n" +
	"45,60000,e\n50,65000,f\n55,70000,g\n60,75000,h\n"

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	config := DefaultConfig()
	if mutate != nil {
		mutate(config)
	}
	s, err := NewServer(config, DefaultBuildInfo(), logger)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get(constants.HeaderRequestID))

	rec = do(t, s, http.MethodGet, "/version", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info BuildInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, constants.AppVersion, info.Version)
}

func TestAnonymizeJSON(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/anonymize?columns=Age,Income&k=2", ageIncomeCSV, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Satisfied    bool                 `json:"satisfied"`
		Loss         float64              `json:"loss"`
		BinCounts    map[string]int       `json:"bin_counts"`
		Assignment   map[string][]float64 `json:"assignment"`
		MinGroupSize int                  `json:"min_group_size"`
		View         string               `json:"view"`
		Generalized  []map[string]string  `json:"generalized"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.True(t, body.Satisfied)
	assert.InDelta(t, 4.0, body.Loss, 1e-9)
	assert.Equal(t, map[string]int{"Age": 4, "Income": 4}, body.BinCounts)
	assert.Equal(t, []float64{25, 34, 43, 52, 61}, body.Assignment["Age"])
	assert.Equal(t, 2, body.MinGroupSize)
	assert.Equal(t, constants.ViewGeneralized, body.View)
	require.Len(t, body.Generalized, 8)
	assert.Equal(t, map[string]string{"Age": "25-33", "Income": "40000-48750", "Name": "a"}, body.Generalized[0])

	count, err := testutil.GatherAndCount(s.Metrics().Registry(), "kano_runs_total", "kano_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAnonymizeCSVViews(t *testing.T) {
	s := newTestServer(t, nil)
	accept := map[string]string{constants.HeaderAccept: constants.ContentTypeCSV}

	rec := do(t, s, http.MethodPost, "/api/v1/anonymize?columns=Age,Income&view=grouped", ageIncomeCSV, accept)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, constants.ContentTypeCSV, rec.Header().Get(constants.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\"Age\",\"Income\",\"count\"\n\"25-33\",\"40000-48750\",\"2\"\n"))

	rec = do(t, s, http.MethodPost, "/api/v1/anonymize?columns=Age", ageIncomeCSV, accept)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 9)
	assert.Equal(t, []string{"Age", "Income", "Name"}, records[0])

	rec = do(t, s, http.MethodPost, "/api/v1/anonymize?columns=Age&view=summary", ageIncomeCSV, accept)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnonymizeErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"missing column", "/api/v1/anonymize?columns=Zip", ageIncomeCSV, http.StatusBadRequest, "SCHEMA_COLUMN_MISSING"},
		{"non-numeric column", "/api/v1/anonymize?columns=Name", ageIncomeCSV, http.StatusBadRequest, "SCHEMA_NON_NUMERIC"},
		{"no columns", "/api/v1/anonymize", ageIncomeCSV, http.StatusBadRequest, "NO_COLUMNS"},
		{"bad k", "/api/v1/anonymize?columns=Age&k=two", ageIncomeCSV, http.StatusBadRequest, "INVALID_K"},
		{"zero k", "/api/v1/anonymize?columns=Age&k=0", ageIncomeCSV, http.StatusBadRequest, "INVALID_K"},
		{"zero max steps", "/api/v1/anonymize?columns=Age&max_steps=0", ageIncomeCSV, http.StatusBadRequest, "INVALID_MAX_STEPS"},
		{"negative max steps", "/api/v1/anonymize?columns=Age&max_steps=-3", ageIncomeCSV, http.StatusBadRequest, "INVALID_MAX_STEPS"},
		{"max steps over limit", "/api/v1/anonymize?columns=Age&max_steps=40", ageIncomeCSV, http.StatusBadRequest, "INVALID_MAX_STEPS"},
		{"bad view", "/api/v1/anonymize?columns=Age&view=pivot", ageIncomeCSV, http.StatusBadRequest, "INVALID_INPUT"},
		{"empty body", "/api/v1/anonymize?columns=Age", "", http.StatusBadRequest, "SCHEMA_HEADER_MISSING"},
		{"empty column", "/api/v1/anonymize?columns=Age", "Age,Name\n", http.StatusBadRequest, "SCHEMA_NON_NUMERIC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)

			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestAnonymizeWidelySpacedClusters(t *testing.T) {
	s := newTestServer(t, nil)
	body := "x\n0\n0\n1000000000000000\n1000000000000000\n"

	rec := do(t, s, http.MethodPost, fmt.Sprintf("/api/v1/anonymize?columns=x&k=2&max_steps=%d", constants.DefaultMaxStepsLimit), body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Satisfied bool           `json:"satisfied"`
		BinCounts map[string]int `json:"bin_counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Satisfied)
	assert.Equal(t, constants.DefaultMaxBins, result.BinCounts["x"])
}

func TestRequestTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MaxRequestSize = 16 })

	rec := do(t, s, http.MethodPost, "/api/v1/inspect", ageIncomeCSV, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "REQUEST_TOO_LARGE", body.Error.Code)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/health", "", map[string]string{constants.HeaderRequestID: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(constants.HeaderRequestID))

	rec = do(t, s, http.MethodGet, "/health", "", map[string]string{constants.HeaderRequestID: strings.Repeat("x", 200)})
	id := rec.Header().Get(constants.HeaderRequestID)
	assert.NotEmpty(t, id)
	assert.Less(t, len(id), 200)
}

func TestInspect(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/inspect", ageIncomeCSV, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body InspectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 8, body.Rows)
	assert.Equal(t, []string{"Age", "Income"}, body.NumericColumns)
	assert.Equal(t, "categorical", string(body.Columns[2].Kind))
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	config := DefaultConfig()
	config.MetricsPort = config.Port
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.TLSCertFile = "cert.pem"
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Anonymization.K = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.MaxStepsLimit = config.Anonymization.Search.MaxSteps - 1
	assert.Error(t, config.Validate())
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pcbuild-service/internal/catalog"
	errs "pcbuild-service/internal/common/errors"
	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/fps"
	"pcbuild-service/internal/models"
	"pcbuild-service/internal/negotiator"
	"pcbuild-service/internal/oracle"
)

func TestMain(m *testing.M) {
	// genai links go.opencensus.io, whose init starts a stats worker.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type stubGenerator struct {
	result   *negotiator.Result
	err      error
	budget   int64
	deadline bool
}

func (s *stubGenerator) Generate(ctx context.Context, budget int64) (*negotiator.Result, error) {
	s.budget = budget
	_, s.deadline = ctx.Deadline()
	return s.result, s.err
}

type stubEstimator struct {
	out map[string]string
	err error
}

func (s *stubEstimator) Estimate(context.Context, []string, []string) (map[string]string, error) {
	return s.out, s.err
}

func newTestServer(t *testing.T, gen Generator, est Estimator, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(gen, est, opts, logger.NewTestLogger(t)).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestBuild_Success(t *testing.T) {
	cpu := &models.Product{ID: "1", Title: "Ryzen 5 3600", Price: 60000}
	gen := &stubGenerator{result: &negotiator.Result{
		BuildID:          "build-1",
		ChosenComponents: models.ProposedBuild{models.CategoryCPU: "Ryzen 5 3600"},
		Resolved:         models.ResolvedBuild{models.CategoryCPU: {Product: cpu, Score: 1}},
		TotalPrice:       248000,
		BudgetDifference: -2000,
		Attempts:         1,
		Band:             negotiator.Band{Lower: 225000, Upper: 275000},
	}}
	srv := newTestServer(t, gen, &stubEstimator{}, Options{Timeout: time.Minute})

	resp, body := post(t, srv.URL+"/api/build", `{"budget": 250000.7}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(250000), gen.budget)
	assert.True(t, gen.deadline)

	assert.Equal(t, "build-1", body["buildId"])
	assert.Equal(t, 248000.0, body["totalPrice"])
	assert.Equal(t, -2000.0, body["budgetDifference"])
	assert.Equal(t, map[string]interface{}{"lower": 225000.0, "upper": 275000.0}, body["band"])
	assert.Equal(t, "Ryzen 5 3600", body["chosenComponents"].(map[string]interface{})["CPU"])
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		genErr error
		status int
		code   errs.ErrorCode
	}{
		{name: "missing budget", body: `{}`, status: http.StatusBadRequest, code: errs.ErrCodeInvalidBudget},
		{name: "zero budget", body: `{"budget": 0}`, status: http.StatusBadRequest, code: errs.ErrCodeInvalidBudget},
		{name: "negative budget", body: `{"budget": -10}`, status: http.StatusBadRequest, code: errs.ErrCodeInvalidBudget},
		{name: "budget above maximum", body: `{"budget": 1e15}`, status: http.StatusBadRequest, code: errs.ErrCodeInvalidBudget},
		{name: "bad json", body: `{"budget":`, status: http.StatusBadRequest, code: errs.ErrCodeInvalidRequest},
		{
			name:   "exhausted",
			body:   `{"budget": 250000}`,
			genErr: &negotiator.ExhaustedError{Attempts: 20, LastOutcome: negotiator.OutcomeMalformed},
			status: http.StatusUnprocessableEntity,
			code:   errs.ErrCodeNegotiationExhausted,
		},
		{
			name:   "transport",
			body:   `{"budget": 250000}`,
			genErr: &oracle.TransportError{Provider: "openai", Err: errors.New("503 Service Unavailable")},
			status: http.StatusBadGateway,
			code:   errs.ErrCodeOracleTransportFailed,
		},
		{
			name:   "timeout",
			body:   `{"budget": 250000}`,
			genErr: &oracle.TransportError{Provider: "openai", Err: context.DeadlineExceeded},
			status: http.StatusGatewayTimeout,
			code:   errs.ErrCodeOracleTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubGenerator{err: tt.genErr}, &stubEstimator{}, Options{})

			resp, body := post(t, srv.URL+"/api/build", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, string(tt.code), body["code"])
			assert.Contains(t, body, "timestamp")
		})
	}
}

func TestBuild_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{}, &stubEstimator{}, Options{})

	resp, err := http.Get(srv.URL + "/api/build")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFPS(t *testing.T) {
	est := &stubEstimator{out: map[string]string{"CS2": "180-240 FPS"}}
	srv := newTestServer(t, &stubGenerator{}, est, Options{})

	resp, body := post(t, srv.URL+"/api/fps", `{"componentNames": ["GTX1660S"], "gameNames": ["CS2"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"CS2": "180-240 FPS"}, body["fps"])
}

func TestFPS_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid input", err: fps.ErrInvalidInput, status: http.StatusBadRequest},
		{name: "unparseable", err: fps.ErrFPSEstimationFailed, status: http.StatusUnprocessableEntity},
		{name: "transport", err: &oracle.TransportError{Provider: "gemini", Err: errors.New("boom")}, status: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubGenerator{}, &stubEstimator{err: tt.err}, Options{})
			resp, _ := post(t, srv.URL+"/api/fps", `{"componentNames": ["x"], "gameNames": ["y"]}`)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestCatalogStats(t *testing.T) {
	stats := catalog.Stats{Products: 18, MinPrice: 4000, MaxPrice: 165000, Categories: map[models.Category]int{models.CategoryGPU: 3}}
	srv := newTestServer(t, &stubGenerator{}, &stubEstimator{}, Options{Stats: func() catalog.Stats { return stats }})

	resp, err := http.Get(srv.URL + "/api/catalog/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got catalog.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, stats, got)
}

func TestCatalogStats_Unavailable(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{}, &stubEstimator{}, Options{})

	resp, err := http.Get(srv.URL + "/api/catalog/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthAndReady(t *testing.T) {
	checks := map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	}
	srv := newTestServer(t, &stubGenerator{}, &stubEstimator{}, Options{Checks: checks, Version: "1.0.0"})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Checks)
}

func TestReady_FailingCheck(t *testing.T) {
	checks := map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
	}
	srv := newTestServer(t, &stubGenerator{}, &stubEstimator{}, Options{Checks: checks})

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Contains(t, body.Checks["redis"], "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{err: negotiator.ErrInvalidBudget}, &stubEstimator{}, Options{})
	post(t, srv.URL+"/api/build", `{"budget": 0}`)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

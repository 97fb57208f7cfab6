package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerplay/consumption-dashboard/internal/auth"
	"github.com/peerplay/consumption-dashboard/internal/charts"
	"github.com/peerplay/consumption-dashboard/internal/config"
	"github.com/peerplay/consumption-dashboard/internal/economy"
	"github.com/peerplay/consumption-dashboard/internal/service/dashboard"
)

// mockService records requests and returns a canned report.
type mockService struct {
	lastReq   dashboard.Request
	err       error
	refreshed int
}

func (m *mockService) Dashboard(_ context.Context, req dashboard.Request) (dashboard.Result, error) {
	m.lastReq = req
	d := civil.Date{Year: 2024, Month: time.January, Day: 1}
	report := economy.Report{
		Range:        economy.DateRange{Start: d, End: d},
		Daily:        []economy.DailyAggregateRow{{Date: d, TotalOutflow: -90, TotalFreeInflow: 100, TotalPaidInflow: 50, TotalInflow: 150, Consumption: 60}},
		FreePaid:     []economy.FreePaidShareRow{},
		SourceShares: []economy.SourceShareRow{},
		RTP:          []economy.RtpRow{{Date: d, Source: "rewards_race", FreeInflowAmount: 100, TotalOutflow: 90, RtpPct: 111.1}},
	}
	if m.err != nil {
		report = economy.EmptyReport(economy.Options{})
		return dashboard.Result{Report: report, Charts: charts.All(report)}, m.err
	}
	return dashboard.Result{Report: report, Charts: charts.All(report)}, nil
}

func (m *mockService) Options(context.Context) (dashboard.Options, error) {
	return dashboard.Options{
		Bounds:  economy.DateRange{Start: civil.Date{Year: 2023, Month: time.June, Day: 1}, End: civil.Date{Year: 2024, Month: time.January, Day: 31}},
		Filters: map[economy.Dimension][]string{economy.DimensionUSPlayer: {"0", "1"}},
	}, m.err
}

func (m *mockService) Refresh(context.Context) error {
	m.refreshed++
	return nil
}

func setupTestServer(t *testing.T, am *auth.AuthManager) (http.Handler, *mockService) {
	t.Helper()
	svc := &mockService{}
	page, err := NewPageRenderer("")
	require.NoError(t, err)
	h := NewHandlers(svc, page, am)
	router := SetupRoutes(h, NewHealthChecker(nil, nil), am, nil, []string{"http://localhost:8080"})
	return router, svc
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDashboardParsesRequest(t *testing.T) {
	router, svc := setupTestServer(t, nil)

	rec := get(t, router, "/api/dashboard?start=2024-01-01&end=2024-01-31&dimension=paid_ever_flag&is_us_player=1&first_chapter_bucket=0-10,11-20&first_chapter_bucket=21-50")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 1}, svc.lastReq.Range.Start)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 31}, svc.lastReq.Range.End)
	assert.Equal(t, economy.DimensionPaidEver, svc.lastReq.Dimension)
	assert.Equal(t, []string{"1"}, svc.lastReq.Selections[economy.DimensionUSPlayer])
	assert.Equal(t, []string{"0-10", "11-20", "21-50"}, svc.lastReq.Selections[economy.DimensionFirstChapter])

	var body struct {
		Report economy.Report  `json:"report"`
		Charts []charts.Figure `json:"charts"`
		Error  string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Error)
	assert.Len(t, body.Report.Daily, 1)
	assert.Len(t, body.Charts, len(charts.Names))
}

func TestDashboardRejectsBadInput(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/dashboard?start=01/01/2024").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/dashboard?dimension=country").Code)
}

func TestDashboardFetchFailureIs502WithEmptyReport(t *testing.T) {
	router, svc := setupTestServer(t, nil)
	svc.err = errors.New("googleapi: Error 403: Access Denied: Table yotam-395120:peerplay.fact")

	rec := get(t, router, "/api/dashboard")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Could not load consumption data: Access denied", body["error"])
	assert.NotContains(t, rec.Body.String(), "yotam-395120")
	report := body["report"].(map[string]interface{})
	assert.Empty(t, report["daily"])
}

func TestTableAndChartEndpoints(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	rec := get(t, router, "/api/tables/rtp")
	require.Equal(t, http.StatusOK, rec.Code)
	var table struct {
		Table string           `json:"table"`
		Rows  []economy.RtpRow `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.Equal(t, "rtp", table.Table)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 111.1, table.Rows[0].RtpPct)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/tables/players").Code)

	rec = get(t, router, "/api/charts/credits-components")
	require.Equal(t, http.StatusOK, rec.Code)
	var fig charts.Figure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fig))
	assert.Equal(t, "Credits Components", fig.Title)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/charts/pie").Code)
}

func TestOptionsAndRefresh(t *testing.T) {
	router, svc := setupTestServer(t, nil)

	rec := get(t, router, "/api/options")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"start":"2023-06-01"`)
	assert.Contains(t, rec.Body.String(), `"is_us_player":["0","1"]`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.refreshed)
}

func TestPageAndHealth(t *testing.T) {
	router, _ := setupTestServer(t, nil)

	rec := get(t, router, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `id="chart-rtp-by-source"`)

	rec = get(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	assert.Equal(t, http.StatusOK, get(t, router, "/metrics").Code)
}

func TestAPIRequiresSessionWhenAuthEnabled(t *testing.T) {
	am := auth.NewAuthManager(&config.AuthConfig{
		Enabled:        true,
		AllowedDomains: []string{"peerplay.com"},
		CookieName:     "consumption_session",
		CookieMaxAge:   3600,
	}, "http://localhost:8080", nil)
	router, _ := setupTestServer(t, am)

	assert.Equal(t, http.StatusUnauthorized, get(t, router, "/api/dashboard").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/health").Code)

	rec := get(t, router, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign in with Google")
	assert.NotContains(t, rec.Body.String(), `id="chart-rtp-by-source"`)

	assert.Equal(t, http.StatusTemporaryRedirect, get(t, router, "/auth/login").Code)
}

func TestSafeErrorMessage(t *testing.T) {
	cases := map[string]string{
		"dial tcp 10.0.0.1:443: connection refused":       "Warehouse temporarily unavailable",
		"context deadline exceeded":                       "Request timed out",
		"Query exceeded limit for bytes billed: 10000000": "Warehouse quota exceeded",
		"Table peerplay.fact_consumption was not found":   "Table not found",
		"something odd":                                   "An internal error occurred",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeErrorMessage(http.StatusBadGateway, errors.New(in)), in)
	}
	assert.Equal(t, "bad date", safeErrorMessage(http.StatusBadRequest, errors.New("bad date")))
}

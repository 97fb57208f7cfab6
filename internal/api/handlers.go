package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/peerplay/consumption-dashboard/internal/auth"
	"github.com/peerplay/consumption-dashboard/internal/charts"
	"github.com/peerplay/consumption-dashboard/internal/economy"
	"github.com/peerplay/consumption-dashboard/internal/pkg/httputil"
	"github.com/peerplay/consumption-dashboard/internal/service/dashboard"
)

// DashboardService is what the handlers need from the dashboard service.
type DashboardService interface {
	Dashboard(ctx context.Context, req dashboard.Request) (dashboard.Result, error)
	Options(ctx context.Context) (dashboard.Options, error)
	Refresh(ctx context.Context) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	svc  DashboardService
	page *PageRenderer
	auth *auth.AuthManager
}

// NewHandlers creates a new Handlers instance. authManager may be nil.
func NewHandlers(svc DashboardService, page *PageRenderer, authManager *auth.AuthManager) *Handlers {
	return &Handlers{svc: svc, page: page, auth: authManager}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.JSON(w, status, data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	httputil.Error(w, status, message)
}

// tables maps the /api/tables names onto report tables.
var tables = map[string]func(economy.Report) interface{}{
	"daily":     func(r economy.Report) interface{} { return r.Daily },
	"free-paid": func(r economy.Report) interface{} { return r.FreePaid },
	"shares":    func(r economy.Report) interface{} { return r.SourceShares },
	"rtp":       func(r economy.Report) interface{} { return r.RTP },
}

type dashboardResponse struct {
	dashboard.Result
	Error string `json:"error,omitempty"`
}

type tableResponse struct {
	Table     string            `json:"table"`
	Range     economy.DateRange `json:"range"`
	Dimension economy.Dimension `json:"dimension,omitempty"`
	Rows      interface{}       `json:"rows"`
	Error     string            `json:"error,omitempty"`
}

type chartResponse struct {
	charts.Figure
	Error string `json:"error,omitempty"`
}

type optionsResponse struct {
	dashboard.Options
	Error string `json:"error,omitempty"`
}

// parseDashboardRequest reads start, end, dimension and one multi-value
// parameter per filterable attribute. Repeated and comma separated values
// are both accepted.
func parseDashboardRequest(r *http.Request) (dashboard.Request, error) {
	q := r.URL.Query()
	var req dashboard.Request

	if s := q.Get("start"); s != "" {
		d, err := economy.ParseDate(s)
		if err != nil {
			return req, fmt.Errorf("invalid start date %q", s)
		}
		req.Range.Start = d
	}
	if s := q.Get("end"); s != "" {
		d, err := economy.ParseDate(s)
		if err != nil {
			return req, fmt.Errorf("invalid end date %q", s)
		}
		req.Range.End = d
	}

	dim, err := economy.ParseDimension(q.Get("dimension"))
	if err != nil {
		return req, err
	}
	req.Dimension = dim

	for _, d := range economy.Dimensions {
		var values []string
		for _, raw := range q[string(d)] {
			for _, v := range strings.Split(raw, ",") {
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			}
		}
		if len(values) > 0 {
			if req.Selections == nil {
				req.Selections = make(map[economy.Dimension][]string)
			}
			req.Selections[d] = values
		}
	}
	return req, nil
}

// unavailable is the user-visible message for a failed warehouse read.
func unavailable(err error) string {
	return sanitizedError(http.StatusBadGateway, err,
		"Could not load consumption data: "+safeErrorMessage(http.StatusBadGateway, err))
}

// Dashboard returns the full report and every chart.
//
//	GET /api/dashboard?start=2024-01-01&end=2024-01-31&dimension=paid_ever_flag&is_us_player=1
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	req, err := parseDashboardRequest(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res, err := h.svc.Dashboard(r.Context(), req)
	if err != nil {
		respondJSON(w, http.StatusBadGateway, dashboardResponse{Result: res, Error: unavailable(err)})
		return
	}
	httputil.OK(w, dashboardResponse{Result: res})
}

// Table returns one tidy table of the report.
//
//	GET /api/tables/{daily|free-paid|shares|rtp}
func (h *Handlers) Table(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	pick, ok := tables[name]
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("unknown table %q", name))
		return
	}
	req, err := parseDashboardRequest(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res, err := h.svc.Dashboard(r.Context(), req)
	resp := tableResponse{
		Table:     name,
		Range:     res.Report.Range,
		Dimension: res.Report.Dimension,
		Rows:      pick(res.Report),
	}
	if err != nil {
		resp.Error = unavailable(err)
		respondJSON(w, http.StatusBadGateway, resp)
		return
	}
	httputil.OK(w, resp)
}

// Chart returns one figure.
//
//	GET /api/charts/{name}
func (h *Handlers) Chart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "chart")
	if _, err := charts.Build(name, economy.Report{}); err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	req, err := parseDashboardRequest(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	res, fetchErr := h.svc.Dashboard(r.Context(), req)
	fig, _ := charts.Build(name, res.Report)
	if fetchErr != nil {
		respondJSON(w, http.StatusBadGateway, chartResponse{Figure: fig, Error: unavailable(fetchErr)})
		return
	}
	httputil.OK(w, chartResponse{Figure: fig})
}

// Options returns the date bounds and filter values for the sidebar.
//
//	GET /api/options
func (h *Handlers) Options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.svc.Options(r.Context())
	if err != nil {
		respondJSON(w, http.StatusBadGateway, optionsResponse{Options: opts, Error: unavailable(err)})
		return
	}
	httputil.OK(w, optionsResponse{Options: opts})
}

// Refresh drops cached rows.
//
//	POST /api/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(r.Context()); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "Failed to refresh data")
		return
	}
	httputil.OK(w, map[string]string{"status": "refreshed"})
}

// Page serves the dashboard shell.
//
//	GET /
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:       "Consumption Dashboard",
		AuthEnabled: h.auth != nil,
		Charts:      charts.Names,
		Error:       r.URL.Query().Get("error"),
	}
	if h.auth != nil {
		if s := h.auth.GetSession(r); s != nil {
			data.UserEmail = s.Email
			data.UserName = s.Name
		}
	}
	if err := h.page.Render(w, data); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "Failed to render page")
	}
}

package http

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	apierrors "casepulse/internal/errors"
	"casepulse/internal/middleware"
	"casepulse/internal/services"
	"casepulse/pkg/contracts/domain"
)

// DashboardTitle heads the dashboard page.
const DashboardTitle = "Corona Virus Pandemic"

const (
	defaultBootstrapCSS = "https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css"
	defaultPlotlyJS     = "https://cdn.plot.ly/plotly-2.35.2.min.js"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

type card struct {
	ID    string
	Label string
	Class string
	Value int
}

type column struct {
	Key    domain.SortKey
	Label  string
	Href   string
	Sorted bool
	Arrow  string
}

type dashboardPage struct {
	Title        string
	BootstrapCSS string
	PlotlyJS     string
	Dashboard    services.Dashboard
	Cards        []card
	Columns      []column
	ChartJSON    template.JS
	LoadedAt     string
}

// DashboardAssets points the page at its CSS and JS bundles.
type DashboardAssets struct {
	BootstrapCSS string
	PlotlyJS     string
}

// DashboardHandler renders the dashboard page server-side.
type DashboardHandler struct {
	service      CaseReader
	validator    *middleware.QueryValidator
	assets       DashboardAssets
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewDashboardHandler creates the page handler. Empty asset URLs fall back to
// the public CDNs.
func NewDashboardHandler(service CaseReader, validator *middleware.QueryValidator, assets DashboardAssets, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *DashboardHandler {
	if assets.BootstrapCSS == "" {
		assets.BootstrapCSS = defaultBootstrapCSS
	}
	if assets.PlotlyJS == "" {
		assets.PlotlyJS = defaultPlotlyJS
	}
	return &DashboardHandler{
		service:      service,
		validator:    validator,
		assets:       assets,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "dashboard")),
	}
}

// ServeHTTP handles GET /?status=&sort=&order=
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var q tableQuery
	if err := h.validator.Bind(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filter, err := services.ParseFilter(q.Status)
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}
	key, order, err := services.ParseSort(q.Sort, q.Order)
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}

	dash, err := h.service.Dashboard(r.Context(), filter, key, order)
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}

	chart, err := json.Marshal(dash.Chart)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	page := dashboardPage{
		Title:        DashboardTitle,
		BootstrapCSS: h.assets.BootstrapCSS,
		PlotlyJS:     h.assets.PlotlyJS,
		Dashboard:    dash,
		Cards:        cards(dash.Summary),
		Columns:      columns(dash.Filter, key, order),
		ChartJSON:    template.JS(chart),
		LoadedAt:     loadedAt(dash.Summary.LoadedAt),
	}

	// render to a buffer so a template failure still yields a clean error
	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, page); err != nil {
		h.logger.ErrorContext(r.Context(), "dashboard render failed",
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.NewInternalError("dashboard render failed"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// cards lays out the four summary cards. Migrated and unknown cases count
// toward the total only.
func cards(s domain.CaseSummary) []card {
	return []card{
		{ID: "total-cases", Label: "Total Cases", Class: "bg-danger", Value: s.Total},
		{ID: "recovered-cases", Label: "Recovered Cases", Class: "bg-success", Value: s.Recovered},
		{ID: "active-cases", Label: "Active Cases", Class: "bg-warning", Value: s.Active},
		{ID: "deaths", Label: "Deaths", Class: "bg-dark", Value: s.Deceased},
	}
}

// columns builds the table headers. Clicking the sorted column flips its
// direction; any other column starts in its natural direction.
func columns(filter string, key domain.SortKey, order domain.SortOrder) []column {
	defs := []struct {
		key   domain.SortKey
		label string
	}{
		{domain.SortByState, "State"},
		{domain.SortByTotal, "Total"},
		{domain.SortByActive, "Active"},
		{domain.SortByRecovered, "Recovered"},
		{domain.SortByDeceased, "Deaths"},
	}

	cols := make([]column, 0, len(defs))
	for _, d := range defs {
		next, _ := domain.ParseSortOrder("", d.key)
		col := column{Key: d.key, Label: d.label}
		if d.key == key {
			col.Sorted = true
			col.Arrow = "▼"
			next = domain.SortAsc
			if order == domain.SortAsc {
				col.Arrow = "▲"
				next = domain.SortDesc
			}
		}
		col.Href = "/?" + url.Values{
			"status": {filter},
			"sort":   {string(d.key)},
			"order":  {string(next)},
		}.Encode()
		cols = append(cols, col)
	}
	return cols
}

func loadedAt(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

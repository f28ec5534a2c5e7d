package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "casepulse/internal/errors"
	"casepulse/internal/middleware"
	"casepulse/internal/services"
	"casepulse/pkg/contracts/domain"
)

type filterQuery struct {
	Status string `query:"status" validate:"omitempty,status_filter"`
}

type tableQuery struct {
	Status string `query:"status" validate:"omitempty,status_filter"`
	Sort   string `query:"sort" validate:"omitempty,sort_key"`
	Order  string `query:"order" validate:"omitempty,sort_order"`
}

type casesQuery struct {
	Status   string `query:"status" validate:"omitempty,status_filter"`
	State    string `query:"state" validate:"max=64"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1"`
}

type exportParams struct {
	Format string `query:"format" validate:"required,export_format"`
	Status string `query:"status" validate:"omitempty,status_filter"`
}

// ListResponse wraps collection responses.
type ListResponse struct {
	Status string      `json:"status"`
	Count  int         `json:"count"`
	Filter string      `json:"filter,omitempty"`
	Data   interface{} `json:"data"`
}

// TableResponse is the state table with the sort that produced it.
type TableResponse struct {
	Status string                  `json:"status"`
	Filter string                  `json:"filter"`
	Sort   domain.SortKey          `json:"sort"`
	Order  domain.SortOrder        `json:"order"`
	Count  int                     `json:"count"`
	Data   []domain.StateBreakdown `json:"data"`
}

// ReloadResponse reports the totals after a manual reload.
type ReloadResponse struct {
	Status  string             `json:"status"`
	Summary domain.CaseSummary `json:"summary"`
}

// DataHandler serves the dashboard's JSON API.
type DataHandler struct {
	service      CaseReader
	validator    *middleware.QueryValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a data handler.
func NewDataHandler(service CaseReader, validator *middleware.QueryValidator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the /api/data routes.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/summary", h.GetSummary)
	r.Get("/states", h.GetStates)
	r.Get("/chart", h.GetChart)
	r.Get("/table", h.GetTable)
	r.Get("/cases", h.GetCases)
	r.Get("/statuses", h.GetStatuses)
	r.Get("/export/{format}", h.Export)
	r.With(middleware.AuditLog(h.logger)).Post("/reload", h.Reload)

	return r
}

// GetSummary handles GET /api/data/summary
func (h *DataHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// GetStates handles GET /api/data/states
func (h *DataHandler) GetStates(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.bindFilter(w, r)
	if !ok {
		return
	}

	counts, err := h.service.StateCounts(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, ListResponse{
		Status: "success",
		Count:  len(counts),
		Filter: filter.String(),
		Data:   counts,
	})
}

// GetChart handles GET /api/data/chart. The body is a Plotly figure.
func (h *DataHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.bindFilter(w, r)
	if !ok {
		return
	}

	figure, err := h.service.Chart(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, figure)
}

// GetTable handles GET /api/data/table
func (h *DataHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	var q tableQuery
	if err := h.validator.Bind(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filter, err := services.ParseFilter(q.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	key, order, err := services.ParseSort(q.Sort, q.Order)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	rows, err := h.service.Breakdown(r.Context(), filter, key, order)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, TableResponse{
		Status: "success",
		Filter: filter.String(),
		Sort:   key,
		Order:  order,
		Count:  len(rows),
		Data:   rows,
	})
}

// GetCases handles GET /api/data/cases
func (h *DataHandler) GetCases(w http.ResponseWriter, r *http.Request) {
	var q casesQuery
	if err := h.validator.Bind(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filter, err := services.ParseFilter(q.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	page, err := h.service.Cases(r.Context(), services.CaseQuery{
		Filter:   filter,
		State:    q.State,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, page)
}

// GetStatuses handles GET /api/data/statuses
func (h *DataHandler) GetStatuses(w http.ResponseWriter, r *http.Request) {
	options := h.service.Statuses()
	render.JSON(w, r, ListResponse{
		Status: "success",
		Count:  len(options),
		Data:   options,
	})
}

// Export handles GET /api/data/export/{format}. The file is built in memory
// so a failure can still be reported as a problem response.
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	params := exportParams{
		Format: strings.ToLower(chi.URLParam(r, "format")),
		Status: r.URL.Query().Get("status"),
	}
	if err := h.validator.ValidateStruct(&params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	format, err := services.ParseFormat(params.Format)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	filter, err := services.ParseFilter(params.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), format, filter, &buf); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	filename := fmt.Sprintf("casepulse-states-%s.%s", strings.ToLower(filter.String()), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write interrupted",
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
	}
}

// Reload handles POST /api/data/reload
func (h *DataHandler) Reload(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Reload(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "dataset reloaded on request",
		slog.Int("total", summary.Total),
		slog.Bool("missing", summary.Missing),
		slog.String("request_id", middleware.GetRequestID(r.Context())))
	render.JSON(w, r, ReloadResponse{Status: "reloaded", Summary: summary})
}

func (h *DataHandler) bindFilter(w http.ResponseWriter, r *http.Request) (domain.StatusFilter, bool) {
	var q filterQuery
	if err := h.validator.Bind(r, &q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return domain.FilterAll, false
	}
	filter, err := services.ParseFilter(q.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return domain.FilterAll, false
	}
	return filter, true
}

// handleServiceError maps service sentinels onto API errors.
func (h *DataHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	h.errorHandler.HandleError(w, r, toAPIError(err))
}

func toAPIError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidFilter):
		return apierrors.InvalidParameter("status", err)
	case errors.Is(err, services.ErrInvalidSort):
		return apierrors.InvalidParameter("sort", err)
	case errors.Is(err, services.ErrInvalidPage):
		return apierrors.InvalidParameter("page", err)
	case errors.Is(err, services.ErrUnsupportedFormat):
		return apierrors.New(http.StatusBadRequest, apierrors.CodeUnsupportedFormat, err.Error())
	case errors.Is(err, services.ErrNoData):
		return apierrors.ErrDataUnavailable
	default:
		return err
	}
}

package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"casepulse/internal/dataprocessing"
	apierrors "casepulse/internal/errors"
	"casepulse/internal/exporter"
	"casepulse/internal/infrastructure"
	"casepulse/pkg/contracts/domain"
)

// DefaultPageSize is used by Cases when the query leaves the page size unset.
const DefaultPageSize = 50

// DatasetSource provides dataset snapshots. *dataset.Store implements it.
type DatasetSource interface {
	Current() *dataprocessing.Dataset
	Reload(ctx context.Context) (*dataprocessing.Dataset, error)
	Path() string
}

// CaseQuery selects a page of case rows.
type CaseQuery struct {
	Filter   domain.StatusFilter
	State    string
	Page     int
	PageSize int
}

// CasePage is one page of case rows.
type CasePage struct {
	Cases      []domain.CaseRecord `json:"cases"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	Total      int                 `json:"total"`
	TotalPages int                 `json:"total_pages"`
	Filter     string              `json:"filter"`
	State      string              `json:"state,omitempty"`
}

// Dashboard is everything the dashboard page renders for one filter and sort.
type Dashboard struct {
	Summary domain.CaseSummary      `json:"summary"`
	Filter  string                  `json:"filter"`
	Options []domain.StatusOption   `json:"options"`
	Chart   domain.ChartFigure      `json:"chart"`
	Table   []domain.StateBreakdown `json:"table"`
	Sort    domain.SortKey          `json:"sort"`
	Order   domain.SortOrder        `json:"order"`
}

// CaseService answers dashboard queries from the current dataset snapshot.
type CaseService struct {
	source      DatasetSource
	metrics     *infrastructure.BusinessMetrics
	logger      *slog.Logger
	maxPageSize int
	csv         *exporter.CSVWriter
	xlsx        *exporter.XLSXWriter
}

// NewCaseService creates a case service. maxPageSize bounds Cases; values
// below one fall back to DefaultPageSize.
func NewCaseService(source DatasetSource, metrics *infrastructure.BusinessMetrics, logger *slog.Logger, maxPageSize int) *CaseService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPageSize < 1 {
		maxPageSize = DefaultPageSize
	}
	return &CaseService{
		source:      source,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "case_service")),
		maxPageSize: maxPageSize,
		csv:         exporter.NewCSVWriter(),
		xlsx:        exporter.NewXLSXWriter(),
	}
}

// ParseFilter parses a dropdown value into a status filter.
func ParseFilter(raw string) (domain.StatusFilter, error) {
	filter, err := domain.ParseStatusFilter(raw)
	if err != nil {
		return domain.FilterAll, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return filter, nil
}

// ParseSort parses a table sort column and direction.
func ParseSort(rawKey, rawOrder string) (domain.SortKey, domain.SortOrder, error) {
	key, err := domain.ParseSortKey(rawKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSort, err)
	}
	order, err := domain.ParseSortOrder(rawOrder, key)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSort, err)
	}
	return key, order, nil
}

// ParseFormat parses an export format name.
func ParseFormat(raw string) (exporter.Format, error) {
	format := exporter.Format(strings.ToLower(strings.TrimSpace(raw)))
	if !format.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
	return format, nil
}

// MaxPageSize returns the largest page Cases will serve.
func (s *CaseService) MaxPageSize() int {
	return s.maxPageSize
}

// snapshot returns the dataset in service, or ErrNoData before the first load.
func (s *CaseService) snapshot(ctx context.Context) (*dataprocessing.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds := s.source.Current()
	if ds == nil {
		return nil, ErrNoData
	}
	return ds, nil
}

// Summary returns the card totals.
func (s *CaseService) Summary(ctx context.Context) (domain.CaseSummary, error) {
	ds, err := s.snapshot(ctx)
	if err != nil {
		return domain.CaseSummary{}, err
	}
	infrastructure.RecordQuery(ctx, s.metrics, "summary", domain.FilterAll.String())
	return ds.Summary(), nil
}

// StateCounts returns per-state counts of the records passing filter,
// largest first.
func (s *CaseService) StateCounts(ctx context.Context, filter domain.StatusFilter) ([]domain.StateCount, error) {
	ds, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	infrastructure.RecordQuery(ctx, s.metrics, "states", filter.String())
	return dataprocessing.CountByState(ds.Records, filter), nil
}

// Chart returns the "State Total Cases" bar chart for filter.
func (s *CaseService) Chart(ctx context.Context, filter domain.StatusFilter) (domain.ChartFigure, error) {
	ds, err := s.snapshot(ctx)
	if err != nil {
		return domain.ChartFigure{}, err
	}
	infrastructure.RecordQuery(ctx, s.metrics, "chart", filter.String())
	return dataprocessing.BuildChart(dataprocessing.CountByState(ds.Records, filter), filter), nil
}

// Breakdown returns the state table for filter sorted by key and order.
func (s *CaseService) Breakdown(ctx context.Context, filter domain.StatusFilter, key domain.SortKey, order domain.SortOrder) ([]domain.StateBreakdown, error) {
	ds, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	infrastructure.RecordQuery(ctx, s.metrics, "table", filter.String())

	rows := dataprocessing.BreakdownByState(ds.Records, filter)
	dataprocessing.SortBreakdown(rows, key, order)
	return rows, nil
}

// Dashboard assembles the cards, chart and table from a single snapshot.
func (s *CaseService) Dashboard(ctx context.Context, filter domain.StatusFilter, key domain.SortKey, order domain.SortOrder) (Dashboard, error) {
	ds, err := s.snapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	infrastructure.RecordQuery(ctx, s.metrics, "dashboard", filter.String())

	rows := dataprocessing.BreakdownByState(ds.Records, filter)
	dataprocessing.SortBreakdown(rows, key, order)

	return Dashboard{
		Summary: ds.Summary(),
		Filter:  filter.String(),
		Options: s.Statuses(),
		Chart:   dataprocessing.BuildChart(dataprocessing.CountByState(ds.Records, filter), filter),
		Table:   rows,
		Sort:    key,
		Order:   order,
	}, nil
}

// Cases returns one page of case rows matching the status filter and, when
// set, the state (case-insensitive). Pages are 1-based.
func (s *CaseService) Cases(ctx context.Context, q CaseQuery) (CasePage, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = min(DefaultPageSize, s.maxPageSize)
	}
	if q.Page < 1 {
		return CasePage{}, fmt.Errorf("%w: page must be at least 1", ErrInvalidPage)
	}
	if q.PageSize < 1 || q.PageSize > s.maxPageSize {
		return CasePage{}, fmt.Errorf("%w: page_size must be between 1 and %d", ErrInvalidPage, s.maxPageSize)
	}

	ds, err := s.snapshot(ctx)
	if err != nil {
		return CasePage{}, err
	}
	infrastructure.RecordQuery(ctx, s.metrics, "cases", q.Filter.String())

	state := strings.TrimSpace(q.State)
	matched := make([]domain.CaseRecord, 0)
	for _, r := range ds.Records {
		if !q.Filter.Matches(r) {
			continue
		}
		if state != "" && !strings.EqualFold(r.DetectedState, state) {
			continue
		}
		matched = append(matched, r)
	}

	page := CasePage{
		Page:       q.Page,
		PageSize:   q.PageSize,
		Total:      len(matched),
		TotalPages: (len(matched) + q.PageSize - 1) / q.PageSize,
		Filter:     q.Filter.String(),
		State:      state,
	}

	start := (q.Page - 1) * q.PageSize
	if start >= len(matched) {
		page.Cases = []domain.CaseRecord{}
		return page, nil
	}
	end := min(start+q.PageSize, len(matched))
	page.Cases = matched[start:end]
	return page, nil
}

// Statuses returns the dropdown options, "All" first.
func (s *CaseService) Statuses() []domain.StatusOption {
	return domain.StatusOptions()
}

// Export writes the state table for filter to w in the given format.
func (s *CaseService) Export(ctx context.Context, format exporter.Format, filter domain.StatusFilter, w io.Writer) error {
	if !format.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	ds, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	rows := dataprocessing.BreakdownByState(ds.Records, filter)

	switch format {
	case exporter.FormatXLSX:
		err = s.xlsx.Write(w, ds.Summary(), filter, rows)
	default:
		err = s.csv.WriteBreakdown(w, rows)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "export failed",
			slog.String("format", string(format)),
			slog.String("filter", filter.String()),
			slog.String("error", err.Error()))
		return apierrors.NewExportError("export "+string(format), err).WithContext("filter", filter.String())
	}

	infrastructure.RecordExport(ctx, s.metrics, string(format))
	s.logger.InfoContext(ctx, "export written",
		slog.String("format", string(format)),
		slog.String("filter", filter.String()),
		slog.Int("states", len(rows)))
	return nil
}

// ExportStateCounts writes the chart data for filter as State,Count CSV.
func (s *CaseService) ExportStateCounts(ctx context.Context, filter domain.StatusFilter, w io.Writer) error {
	ds, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	counts := dataprocessing.CountByState(ds.Records, filter)
	if err := s.csv.WriteStateCounts(w, counts); err != nil {
		return apierrors.NewExportError("export state counts", err)
	}
	infrastructure.RecordExport(ctx, s.metrics, "csv_chart")
	return nil
}

// ExportCases writes every case row matching filter and, when set, state as
// CSV. Unlike Cases it is not paged.
func (s *CaseService) ExportCases(ctx context.Context, filter domain.StatusFilter, state string, w io.Writer) error {
	ds, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	state = strings.TrimSpace(state)
	rows := make([]domain.CaseRecord, 0, len(ds.Records))
	for _, r := range dataprocessing.FilterRecords(ds.Records, filter) {
		if state == "" || strings.EqualFold(r.DetectedState, state) {
			rows = append(rows, r)
		}
	}

	if err := s.csv.WriteCases(w, rows); err != nil {
		return apierrors.NewExportError("export cases", err)
	}
	infrastructure.RecordExport(ctx, s.metrics, "csv_cases")
	s.logger.InfoContext(ctx, "case rows exported",
		slog.String("filter", filter.String()),
		slog.Int("rows", len(rows)))
	return nil
}

// Reload re-reads the case file and returns the new totals.
func (s *CaseService) Reload(ctx context.Context) (domain.CaseSummary, error) {
	ds, err := s.source.Reload(ctx)
	if err != nil {
		return domain.CaseSummary{}, fmt.Errorf("reload %s: %w", s.source.Path(), err)
	}
	return ds.Summary(), nil
}

package http

import (
	"context"
	"io"

	"casepulse/internal/exporter"
	"casepulse/internal/services"
	"casepulse/pkg/contracts/domain"
)

// CaseReader is the part of services.CaseService the handlers use.
type CaseReader interface {
	Summary(ctx context.Context) (domain.CaseSummary, error)
	StateCounts(ctx context.Context, filter domain.StatusFilter) ([]domain.StateCount, error)
	Chart(ctx context.Context, filter domain.StatusFilter) (domain.ChartFigure, error)
	Breakdown(ctx context.Context, filter domain.StatusFilter, key domain.SortKey, order domain.SortOrder) ([]domain.StateBreakdown, error)
	Dashboard(ctx context.Context, filter domain.StatusFilter, key domain.SortKey, order domain.SortOrder) (services.Dashboard, error)
	Cases(ctx context.Context, q services.CaseQuery) (services.CasePage, error)
	Statuses() []domain.StatusOption
	Export(ctx context.Context, format exporter.Format, filter domain.StatusFilter, w io.Writer) error
	Reload(ctx context.Context) (domain.CaseSummary, error)
	MaxPageSize() int
}

var _ CaseReader = (*services.CaseService)(nil)

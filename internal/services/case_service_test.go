package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"casepulse/internal/dataprocessing"
	apierrors "casepulse/internal/errors"
	"casepulse/internal/exporter"
	"casepulse/internal/shared/testutil"
	"casepulse/pkg/contracts/domain"
)

// mockSource is a testify mock of DatasetSource
type mockSource struct {
	mock.Mock
}

func (m *mockSource) Current() *dataprocessing.Dataset {
	args := m.Called()
	ds, _ := args.Get(0).(*dataprocessing.Dataset)
	return ds
}

func (m *mockSource) Reload(ctx context.Context) (*dataprocessing.Dataset, error) {
	args := m.Called(ctx)
	ds, _ := args.Get(0).(*dataprocessing.Dataset)
	return ds, args.Error(1)
}

func (m *mockSource) Path() string {
	return "Dataset/IndividualDetails.csv"
}

func sampleDataset() *dataprocessing.Dataset {
	return &dataprocessing.Dataset{
		Records:  testutil.CaseRecords(testutil.SampleCaseRows()),
		Source:   "Dataset/IndividualDetails.csv",
		LoadedAt: time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(t *testing.T, ds *dataprocessing.Dataset) (*CaseService, *mockSource) {
	t.Helper()
	source := &mockSource{}
	source.On("Current").Return(ds)
	logger, _ := testutil.NewTestLogger(t)
	return NewCaseService(source, nil, logger, 500), source
}

func TestCaseService_Summary(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 3, summary.Active)
	assert.Equal(t, 2, summary.Recovered)
	assert.Equal(t, 1, summary.Deceased)
	assert.Equal(t, 1, summary.Migrated)
	assert.Equal(t, 3, summary.States)
	assert.True(t, summary.Consistent())
	assert.False(t, summary.Missing)
}

func TestCaseService_NoData(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Summary(ctx)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = svc.Chart(ctx, domain.FilterAll)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = svc.Cases(ctx, CaseQuery{})
	assert.ErrorIs(t, err, ErrNoData)

	err = svc.Export(ctx, exporter.FormatCSV, domain.FilterAll, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCaseService_CancelledContext(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Summary(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCaseService_MissingFileServesEmptyTable(t *testing.T) {
	svc, _ := newTestService(t, dataprocessing.Empty("Dataset/IndividualDetails.csv"))
	ctx := context.Background()

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.True(t, summary.Missing)

	rows, err := svc.Breakdown(ctx, domain.FilterAll, domain.SortByTotal, domain.SortDesc)
	require.NoError(t, err)
	assert.Empty(t, rows)

	chart, err := svc.Chart(ctx, domain.FilterAll)
	require.NoError(t, err)
	require.Len(t, chart.Data, 1)
	assert.Empty(t, chart.Data[0].X)
}

func TestCaseService_StateCounts(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	ctx := context.Background()

	tests := []struct {
		filter domain.StatusFilter
		want   []domain.StateCount
	}{
		{
			filter: domain.FilterAll,
			want:   []domain.StateCount{{State: "Kerala", Count: 3}, {State: "Delhi", Count: 2}, {State: "Goa", Count: 1}},
		},
		{
			filter: domain.FilterFor(domain.StatusHospitalized),
			want:   []domain.StateCount{{State: "Delhi", Count: 1}, {State: "Kerala", Count: 1}},
		},
		{
			filter: domain.FilterFor(domain.StatusRecovered),
			want:   []domain.StateCount{{State: "Kerala", Count: 2}},
		},
		{
			filter: domain.FilterFor(domain.StatusDeceased),
			want:   []domain.StateCount{{State: "Delhi", Count: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			got, err := svc.StateCounts(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCaseService_FilterNarrowsRows(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	ctx := context.Background()

	all, err := svc.Breakdown(ctx, domain.FilterAll, domain.SortByTotal, domain.SortDesc)
	require.NoError(t, err)

	for _, status := range domain.FilterStatuses {
		filtered, err := svc.Breakdown(ctx, domain.FilterFor(status), domain.SortByTotal, domain.SortDesc)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(filtered), len(all), status)

		sum := 0
		for _, row := range filtered {
			sum += row.Total
		}
		page, err := svc.Cases(ctx, CaseQuery{Filter: domain.FilterFor(status), PageSize: 500})
		require.NoError(t, err)
		for _, c := range page.Cases {
			assert.Equal(t, status, c.CurrentStatus)
		}
		// the blank-state row shows up in cases but not in the state table
		assert.LessOrEqual(t, sum, page.Total)
	}
}

func TestCaseService_Chart(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())

	chart, err := svc.Chart(context.Background(), domain.FilterFor(domain.StatusRecovered))
	require.NoError(t, err)

	assert.Equal(t, domain.ChartTitle, chart.Layout.Title.Text)
	require.Len(t, chart.Data, 1)
	assert.Equal(t, "bar", chart.Data[0].Type)
	assert.Equal(t, []string{"Kerala"}, chart.Data[0].X)
	assert.Equal(t, []int{2}, chart.Data[0].Y)
}

func TestCaseService_BreakdownSorting(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	ctx := context.Background()

	states := func(rows []domain.StateBreakdown) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.State
		}
		return out
	}

	rows, err := svc.Breakdown(ctx, domain.FilterAll, domain.SortByState, domain.SortAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Delhi", "Goa", "Kerala"}, states(rows))

	rows, err = svc.Breakdown(ctx, domain.FilterAll, domain.SortByDeceased, domain.SortDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Delhi", "Goa", "Kerala"}, states(rows))

	rows, err = svc.Breakdown(ctx, domain.FilterAll, domain.SortByTotal, domain.SortAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Goa", "Delhi", "Kerala"}, states(rows))
}

func TestCaseService_Dashboard(t *testing.T) {
	svc, source := newTestService(t, sampleDataset())

	dash, err := svc.Dashboard(context.Background(), domain.FilterAll, domain.SortByTotal, domain.SortDesc)
	require.NoError(t, err)

	assert.Equal(t, 7, dash.Summary.Total)
	assert.Equal(t, "All", dash.Filter)
	assert.Len(t, dash.Options, 4)
	assert.Len(t, dash.Table, 3)
	assert.Equal(t, []string{"Kerala", "Delhi", "Goa"}, dash.Chart.Data[0].X)
	source.AssertNumberOfCalls(t, "Current", 1)
}

func TestCaseService_Cases(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	ctx := context.Background()

	page, err := svc.Cases(ctx, CaseQuery{Filter: domain.FilterAll, Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Cases, 3)
	assert.Equal(t, 4, page.Cases[0].RowID)

	page, err = svc.Cases(ctx, CaseQuery{Filter: domain.FilterAll, Page: 9, PageSize: 3})
	require.NoError(t, err)
	assert.Empty(t, page.Cases)
	assert.NotNil(t, page.Cases)

	page, err = svc.Cases(ctx, CaseQuery{Filter: domain.FilterAll, State: "kerala"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	_, err = svc.Cases(ctx, CaseQuery{Page: -1})
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = svc.Cases(ctx, CaseQuery{PageSize: 501})
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestCaseService_ExportCSV(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), exporter.FormatCSV, domain.FilterFor(domain.StatusRecovered), &buf))

	out := strings.TrimPrefix(buf.String(), "\uFEFF")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "State,Total,Active,Recovered,Deceased,Migrated,Unknown", strings.TrimSpace(lines[0]))
	assert.Equal(t, "Kerala,2,0,2,0,0,0", strings.TrimSpace(lines[1]))
}

func TestCaseService_ExportXLSX(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), exporter.FormatXLSX, domain.FilterAll, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exporter.StatesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Kerala", rows[1][0])
}

func TestCaseService_ExportUnsupported(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	err := svc.Export(context.Background(), exporter.Format("pdf"), domain.FilterAll, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCaseService_ExportWriteFailure(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	ctx := context.Background()

	tests := []struct {
		name  string
		write func() error
	}{
		{name: "table csv", write: func() error { return svc.Export(ctx, exporter.FormatCSV, domain.FilterAll, failingWriter{}) }},
		{name: "table xlsx", write: func() error { return svc.Export(ctx, exporter.FormatXLSX, domain.FilterAll, failingWriter{}) }},
		{name: "chart", write: func() error { return svc.ExportStateCounts(ctx, domain.FilterAll, failingWriter{}) }},
		{name: "cases", write: func() error { return svc.ExportCases(ctx, domain.FilterAll, "", failingWriter{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.write()

			var appErr *apierrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apierrors.ErrTypeExport, appErr.Type)
			assert.Contains(t, err.Error(), "disk full")
		})
	}
}

func TestCaseService_ExportStateCounts(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())

	var buf bytes.Buffer
	require.NoError(t, svc.ExportStateCounts(context.Background(), domain.FilterAll, &buf))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), "\uFEFF")), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "State,Count", strings.TrimSpace(lines[0]))
	assert.Equal(t, "Kerala,3", strings.TrimSpace(lines[1]))
	assert.Equal(t, "Delhi,2", strings.TrimSpace(lines[2]))
	assert.Equal(t, "Goa,1", strings.TrimSpace(lines[3]))
}

func TestCaseService_ExportCases(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	active := domain.FilterFor(domain.StatusHospitalized)

	tests := []struct {
		name  string
		state string
		rows  int
	}{
		{"all states", "", 3},
		{"one state, any case", "kerala", 1},
		{"no match", "Goa", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, svc.ExportCases(context.Background(), active, tt.state, &buf))

			lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), "\uFEFF")), "\n")
			require.Len(t, lines, tt.rows+1)
			assert.True(t, strings.HasPrefix(lines[0], "RowID,ID,DetectedState,CurrentStatus"))
		})
	}
}

func TestCaseService_ExportNoData(t *testing.T) {
	svc, _ := newTestService(t, nil)

	assert.ErrorIs(t, svc.ExportStateCounts(context.Background(), domain.FilterAll, &bytes.Buffer{}), ErrNoData)
	assert.ErrorIs(t, svc.ExportCases(context.Background(), domain.FilterAll, "", &bytes.Buffer{}), ErrNoData)
}

func TestCaseService_Reload(t *testing.T) {
	svc, source := newTestService(t, sampleDataset())
	ctx := context.Background()

	source.On("Reload", ctx).Return(sampleDataset(), nil).Once()
	summary, err := svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Total)

	source.On("Reload", ctx).Return(nil, errors.New("missing columns")).Once()
	_, err = svc.Reload(ctx)
	assert.ErrorContains(t, err, "missing columns")
	source.AssertExpectations(t)
}

func TestParseHelpers(t *testing.T) {
	filter, err := ParseFilter("recovered")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecovered, filter.Status())

	_, err = ParseFilter("critical")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	key, order, err := ParseSort("state", "")
	require.NoError(t, err)
	assert.Equal(t, domain.SortByState, key)
	assert.Equal(t, domain.SortAsc, order)

	_, _, err = ParseSort("age", "")
	assert.ErrorIs(t, err, ErrInvalidSort)
	_, _, err = ParseSort("total", "up")
	assert.ErrorIs(t, err, ErrInvalidSort)

	format, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, exporter.FormatXLSX, format)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCaseService_Statuses(t *testing.T) {
	svc, _ := newTestService(t, sampleDataset())
	assert.Equal(t, domain.StatusOptions(), svc.Statuses())
}

package dataprocessing

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apierrors "casepulse/internal/errors"
	"casepulse/pkg/contracts/domain"
)

// Column names understood by the loader. Only the first two are required.
const (
	ColumnDetectedState    = "detected_state"
	ColumnCurrentStatus    = "current_status"
	ColumnID               = "id"
	ColumnDiagnosedDate    = "diagnosed_date"
	ColumnAge              = "age"
	ColumnGender           = "gender"
	ColumnDetectedCity     = "detected_city"
	ColumnDetectedDistrict = "detected_district"
	ColumnNationality      = "nationality"
	ColumnStatusChangeDate = "status_change_date"
	ColumnNotes            = "notes"
)

// ctxCheckInterval is how many rows are read between cancellation checks.
const ctxCheckInterval = 1000

var (
	// ErrNoHeader is returned for a file without a header row.
	ErrNoHeader = errors.New("case file has no header row")
	// ErrMissingColumns is returned when a required column is absent.
	ErrMissingColumns = errors.New("case file is missing required columns")
	// ErrNoSheet is returned for a workbook without worksheets.
	ErrNoSheet = errors.New("workbook has no worksheets")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset is an immutable snapshot of a loaded case file.
type Dataset struct {
	Records         []domain.CaseRecord
	Source          string
	LoadedAt        time.Time
	Missing         bool
	UnknownStatuses int
}

// Empty returns a dataset with no rows for a file that does not exist.
func Empty(source string) *Dataset {
	return &Dataset{
		Records:  []domain.CaseRecord{},
		Source:   source,
		LoadedAt: time.Now(),
		Missing:  true,
	}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Summary computes the card totals with the dataset metadata attached.
func (d *Dataset) Summary() domain.CaseSummary {
	if d == nil {
		return domain.CaseSummary{}
	}
	s := Summarize(d.Records)
	s.LoadedAt = d.LoadedAt
	s.Source = d.Source
	s.Missing = d.Missing
	return s
}

// Loader reads case files into datasets.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With("component", "loader")}
}

// Load reads path as a workbook when it has an .xlsx extension and as CSV
// otherwise.
func (l *Loader) Load(ctx context.Context, path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return l.LoadXLSX(ctx, path)
	default:
		return l.LoadCSV(ctx, path)
	}
}

// LoadOrEmpty behaves like Load except that a missing file yields an empty
// dataset instead of an error.
func (l *Loader) LoadOrEmpty(ctx context.Context, path string) (*Dataset, error) {
	ds, err := l.Load(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.ErrorContext(ctx, "case file not found, serving empty dataset",
			slog.String("path", path))
		return Empty(path), nil
	}
	return ds, err
}

// LoadCSV reads a comma separated case file with a header row.
func (l *Loader) LoadCSV(ctx context.Context, path string) (*Dataset, error) {
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		return nil, apierrors.NewStorageError("open case file", err).WithContext("path", path)
	}
	defer file.Close()

	reader := csv.NewReader(skipBOM(file))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, parseError(path, ErrNoHeader)
	}
	if err != nil {
		return nil, parseError(path, fmt.Errorf("read header: %w", err))
	}

	b, err := newDatasetBuilder(path, header)
	if err != nil {
		return nil, err
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(path, err)
		}
		if err := b.add(ctx, row); err != nil {
			return nil, err
		}
	}

	ds := b.build()
	l.logLoaded(ctx, ds, "csv", time.Since(start))
	return ds, nil
}

// LoadXLSX reads the first worksheet of a workbook using the same rules as
// LoadCSV.
func (l *Loader) LoadXLSX(ctx context.Context, path string) (*Dataset, error) {
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		return nil, apierrors.NewStorageError("open case workbook", err).WithContext("path", path)
	}
	defer file.Close()

	wb, err := excelize.OpenReader(file)
	if err != nil {
		return nil, parseError(path, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, parseError(path, ErrNoSheet)
	}

	rows, err := wb.Rows(sheets[0])
	if err != nil {
		return nil, parseError(path, fmt.Errorf("read sheet %q: %w", sheets[0], err))
	}
	defer rows.Close()

	var b *datasetBuilder
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, parseError(path, fmt.Errorf("read sheet %q: %w", sheets[0], err))
		}

		if b == nil {
			if isBlankRow(cols) {
				continue
			}
			if b, err = newDatasetBuilder(path, cols); err != nil {
				return nil, err
			}
			continue
		}

		if isBlankRow(cols) {
			continue
		}
		if err := b.add(ctx, cols); err != nil {
			return nil, err
		}
	}
	if err := rows.Error(); err != nil {
		return nil, parseError(path, fmt.Errorf("read sheet %q: %w", sheets[0], err))
	}
	if b == nil {
		return nil, parseError(path, ErrNoHeader)
	}

	ds := b.build()
	l.logLoaded(ctx, ds, "xlsx", time.Since(start))
	return ds, nil
}

// parseError marks err as a problem with the contents of the case file.
func parseError(path string, err error) error {
	return apierrors.NewParsingError("Case file could not be parsed", err).WithContext("path", path)
}

func (l *Loader) logLoaded(ctx context.Context, ds *Dataset, format string, elapsed time.Duration) {
	l.logger.InfoContext(ctx, "case file loaded",
		slog.String("path", ds.Source),
		slog.String("format", format),
		slog.Int("rows", len(ds.Records)),
		slog.Int("unknown_statuses", ds.UnknownStatuses),
		slog.Duration("elapsed", elapsed))
}

// datasetBuilder turns header-indexed rows into case records.
type datasetBuilder struct {
	source  string
	columns map[string]int
	ds      *Dataset
}

func newDatasetBuilder(source string, header []string) (*datasetBuilder, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := normalizeColumn(name)
		if _, dup := columns[key]; !dup && key != "" {
			columns[key] = i
		}
	}

	var missing []string
	for _, required := range []string{ColumnDetectedState, ColumnCurrentStatus} {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, parseError(source, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", ")))
	}

	return &datasetBuilder{
		source:  source,
		columns: columns,
		ds: &Dataset{
			Records: []domain.CaseRecord{},
			Source:  source,
		},
	}, nil
}

func (b *datasetBuilder) add(ctx context.Context, row []string) error {
	rowID := len(b.ds.Records) + 1
	if rowID%ctxCheckInterval == 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load %s interrupted at row %d: %w", b.source, rowID, err)
		}
	}

	status, ok := domain.ParseCaseStatus(b.field(row, ColumnCurrentStatus))
	if !ok {
		b.ds.UnknownStatuses++
	}

	b.ds.Records = append(b.ds.Records, domain.CaseRecord{
		RowID:            rowID,
		ID:               b.field(row, ColumnID),
		DetectedState:    b.field(row, ColumnDetectedState),
		CurrentStatus:    status,
		DiagnosedDate:    b.field(row, ColumnDiagnosedDate),
		Age:              b.field(row, ColumnAge),
		Gender:           b.field(row, ColumnGender),
		DetectedCity:     b.field(row, ColumnDetectedCity),
		DetectedDistrict: b.field(row, ColumnDetectedDistrict),
		Nationality:      b.field(row, ColumnNationality),
		StatusChangeDate: b.field(row, ColumnStatusChangeDate),
		Notes:            b.field(row, ColumnNotes),
	})
	return nil
}

// field returns the trimmed cell for column, or "" when the column is absent
// or the row is short.
func (b *datasetBuilder) field(row []string, column string) string {
	idx, ok := b.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (b *datasetBuilder) build() *Dataset {
	b.ds.LoadedAt = time.Now()
	return b.ds
}

// normalizeColumn lower-cases a header cell and maps spaces to underscores so
// that "Detected State" and "detected_state" match.
func normalizeColumn(name string) string {
	name = strings.TrimLeft(name, "\uFEFF\u200B\u200C\u200D\u2060")
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}

func isBlankRow(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && string(head) == string(utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

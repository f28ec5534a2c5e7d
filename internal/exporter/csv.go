package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"casepulse/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatXLSX
}

var (
	stateCountHeaders = []string{"State", "Count"}
	breakdownHeaders  = []string{"State", "Total", "Active", "Recovered", "Deceased", "Migrated", "Unknown"}
	caseHeaders       = []string{"RowID", "ID", "DetectedState", "CurrentStatus", "DiagnosedDate", "Age", "Gender", "DetectedCity", "DetectedDistrict", "Nationality", "StatusChangeDate", "Notes"}
)

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	bom bool
}

// NewCSVWriter creates a CSV writer that prefixes output with a UTF-8 BOM.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{bom: true}
}

// WriteCSV writes headers and records to w.
func (c *CSVWriter) WriteCSV(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteStateCounts writes the chart data as State,Count rows.
func (c *CSVWriter) WriteStateCounts(w io.Writer, counts []domain.StateCount) error {
	records := make([][]string, len(counts))
	for i, sc := range counts {
		records[i] = []string{sc.State, strconv.Itoa(sc.Count)}
	}
	return c.WriteCSV(w, WriteOptions{Headers: stateCountHeaders, Records: records, BOMPrefix: c.bom})
}

// WriteBreakdown writes the per-state table.
func (c *CSVWriter) WriteBreakdown(w io.Writer, rows []domain.StateBreakdown) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = breakdownRecord(r)
	}
	return c.WriteCSV(w, WriteOptions{Headers: breakdownHeaders, Records: records, BOMPrefix: c.bom})
}

// WriteCases writes individual case rows.
func (c *CSVWriter) WriteCases(w io.Writer, cases []domain.CaseRecord) error {
	records := make([][]string, len(cases))
	for i, r := range cases {
		records[i] = []string{
			strconv.Itoa(r.RowID), r.ID, r.DetectedState, string(r.CurrentStatus),
			r.DiagnosedDate, r.Age, r.Gender, r.DetectedCity, r.DetectedDistrict,
			r.Nationality, r.StatusChangeDate, r.Notes,
		}
	}
	return c.WriteCSV(w, WriteOptions{Headers: caseHeaders, Records: records, BOMPrefix: c.bom})
}

func breakdownRecord(r domain.StateBreakdown) []string {
	return []string{
		r.State,
		strconv.Itoa(r.Total),
		strconv.Itoa(r.Active),
		strconv.Itoa(r.Recovered),
		strconv.Itoa(r.Deceased),
		strconv.Itoa(r.Migrated),
		strconv.Itoa(r.Unknown),
	}
}

// WriteFile creates path, including missing parent directories, and hands
// the open file to write.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	return write(file)
}

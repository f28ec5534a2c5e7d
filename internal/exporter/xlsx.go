package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"casepulse/pkg/contracts/domain"
)

const (
	SummarySheet = "Summary"
	StatesSheet  = "States"
)

// XLSXWriter writes workbooks with excelize.
type XLSXWriter struct{}

// NewXLSXWriter creates a workbook writer.
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{}
}

// Write renders summary and rows into a two sheet workbook and writes it to w.
func (x *XLSXWriter) Write(w io.Writer, summary domain.CaseSummary, filter domain.StatusFilter, rows []domain.StateBreakdown) error {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes Summary
	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	summaryRows := [][]interface{}{
		{"Metric", "Value"},
		{"Total Cases", summary.Total},
		{"Recovered Cases", summary.Recovered},
		{"Active Cases", summary.Active},
		{"Deaths", summary.Deceased},
		{"Migrated", summary.Migrated},
		{"Unknown", summary.Unknown},
		{"States", summary.States},
		{"Status Filter", filter.String()},
		{"Source", summary.Source},
		{"Loaded At", summary.LoadedAt.Format(time.RFC3339)},
	}
	if err := setRows(f, SummarySheet, summaryRows); err != nil {
		return err
	}

	if _, err := f.NewSheet(StatesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	stateRows := make([][]interface{}, 0, len(rows)+1)
	header := make([]interface{}, len(breakdownHeaders))
	for i, h := range breakdownHeaders {
		header[i] = h
	}
	stateRows = append(stateRows, header)
	for _, r := range rows {
		stateRows = append(stateRows, []interface{}{r.State, r.Total, r.Active, r.Recovered, r.Deceased, r.Migrated, r.Unknown})
	}
	if err := setRows(f, StatesSheet, stateRows); err != nil {
		return err
	}

	if err := styleHeader(f, SummarySheet, "A1", "B1"); err != nil {
		return err
	}
	if err := styleHeader(f, StatesSheet, "A1", "G1"); err != nil {
		return err
	}
	if err := f.SetColWidth(StatesSheet, "A", "A", 28); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(SummarySheet, "A", "B", 22); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func styleHeader(f *excelize.File, sheet, from, to string) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return nil
}

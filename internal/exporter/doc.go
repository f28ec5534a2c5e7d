// Package exporter writes aggregated case data as CSV or XLSX.
//
// CSVWriter produces UTF-8 CSV with a byte order mark so that spreadsheet
// programs detect the encoding. XLSXWriter produces a workbook with a
// Summary sheet holding the card totals and a States sheet holding the
// per-state table.
//
//	w := exporter.NewCSVWriter()
//	err := w.WriteStateCounts(out, counts)
//
// Both writers only write to the io.Writer they are given. WriteFile wraps
// either of them for callers that export to disk.
package exporter

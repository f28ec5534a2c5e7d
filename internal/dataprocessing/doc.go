// Package dataprocessing reads case files and aggregates them for the
// dashboard.
//
// A Loader turns a CSV file or the first sheet of an XLSX workbook into a
// Dataset. Columns are located by header name; detected_state and
// current_status are required and every other column is optional.
//
//	ds, err := dataprocessing.NewLoader(logger).LoadOrEmpty(ctx, "Dataset/IndividualDetails.csv")
//
// The aggregation functions are pure and operate on record slices:
//
//	summary := dataprocessing.Summarize(ds.Records)
//	counts := dataprocessing.CountByState(ds.Records, domain.FilterFor(domain.StatusRecovered))
//	figure := dataprocessing.BuildChart(counts, filter)
//
// Per-status counts in a CaseSummary always add up to its Total. CountByState
// leaves out rows without a state, so its counts plus the blank-state rows
// add up to Total as well.
package dataprocessing

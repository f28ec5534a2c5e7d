// Package services is the read-side facade over the case dataset. HTTP
// handlers and the casectl CLI call it instead of touching the store or the
// aggregation functions directly.
//
// # Services
//
//	CaseService    summary cards, per-state counts, chart figure, state table,
//	               paged case rows, dropdown options, CSV/XLSX export, reload
//	HealthService  health, readiness, liveness and version reports
//
// Every method takes a context and works on one immutable dataset snapshot,
// so a reload happening mid-request never mixes rows from two files.
//
// # Errors
//
// Methods return the sentinel errors from errors.go, wrapped with %w. The
// transport layer maps them to RFC 7807 responses:
//
//	ErrInvalidFilter, ErrInvalidSort, ErrInvalidPage  400
//	ErrUnsupportedFormat                              400
//	ErrNoData                                         503
package services

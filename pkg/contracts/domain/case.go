package domain

import (
	"fmt"
	"strings"
	"time"
)

// CaseStatus is the current outcome recorded for a case.
type CaseStatus string

const (
	StatusHospitalized CaseStatus = "Hospitalized"
	StatusRecovered    CaseStatus = "Recovered"
	StatusDeceased     CaseStatus = "Deceased"
	StatusMigrated     CaseStatus = "Migrated"
	StatusUnknown      CaseStatus = "Unknown"
)

// KnownStatuses lists every status a record can carry, in display order.
var KnownStatuses = []CaseStatus{
	StatusHospitalized,
	StatusRecovered,
	StatusDeceased,
	StatusMigrated,
	StatusUnknown,
}

// ParseCaseStatus normalizes a raw status cell. Values that match no known
// status, including the empty string, map to StatusUnknown with ok=false.
func ParseCaseStatus(s string) (status CaseStatus, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hospitalized", "hospitalised", "active":
		return StatusHospitalized, true
	case "recovered":
		return StatusRecovered, true
	case "deceased":
		return StatusDeceased, true
	case "migrated":
		return StatusMigrated, true
	default:
		return StatusUnknown, false
	}
}

// Label returns the dashboard caption for the status.
func (s CaseStatus) Label() string {
	switch s {
	case StatusHospitalized:
		return "Active"
	case StatusDeceased:
		return "Deaths"
	default:
		return string(s)
	}
}

// StatusFilter selects the records that take part in a per-state count.
// The zero value matches every record.
type StatusFilter struct {
	status CaseStatus
}

// FilterAll matches every record.
var FilterAll = StatusFilter{}

// FilterFor returns a filter matching a single status.
func FilterFor(s CaseStatus) StatusFilter {
	return StatusFilter{status: s}
}

// ParseStatusFilter parses a dropdown value. The empty string and "All" select
// every record.
func ParseStatusFilter(s string) (StatusFilter, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, "all") {
		return FilterAll, nil
	}

	status, ok := ParseCaseStatus(trimmed)
	if !ok {
		return FilterAll, fmt.Errorf("unknown status filter %q", s)
	}
	return FilterFor(status), nil
}

// IsAll reports whether the filter matches every record.
func (f StatusFilter) IsAll() bool {
	return f.status == ""
}

// Status returns the selected status, or "" for All.
func (f StatusFilter) Status() CaseStatus {
	return f.status
}

// Matches reports whether a record passes the filter.
func (f StatusFilter) Matches(r CaseRecord) bool {
	return f.IsAll() || r.CurrentStatus == f.status
}

// String returns the dropdown value of the filter.
func (f StatusFilter) String() string {
	if f.IsAll() {
		return "All"
	}
	return string(f.status)
}

// StatusOption is one entry of the status dropdown.
type StatusOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterStatuses are the statuses offered by the dropdown after "All".
var FilterStatuses = []CaseStatus{
	StatusHospitalized,
	StatusRecovered,
	StatusDeceased,
}

// StatusOptions returns the dropdown entries, "All" first.
func StatusOptions() []StatusOption {
	options := make([]StatusOption, 0, len(FilterStatuses)+1)
	options = append(options, StatusOption{Value: FilterAll.String(), Label: FilterAll.String()})
	for _, s := range FilterStatuses {
		options = append(options, StatusOption{Value: string(s), Label: string(s)})
	}
	return options
}

// CaseRecord is one row of the case file. RowID is the 1-based index among
// loaded records, so skipped blank rows do not consume one. It is the only
// identifier guaranteed to exist.
type CaseRecord struct {
	RowID            int        `json:"row_id"`
	ID               string     `json:"id,omitempty"`
	DetectedState    string     `json:"detected_state"`
	CurrentStatus    CaseStatus `json:"current_status"`
	DiagnosedDate    string     `json:"diagnosed_date,omitempty"`
	Age              string     `json:"age,omitempty"`
	Gender           string     `json:"gender,omitempty"`
	DetectedCity     string     `json:"detected_city,omitempty"`
	DetectedDistrict string     `json:"detected_district,omitempty"`
	Nationality      string     `json:"nationality,omitempty"`
	StatusChangeDate string     `json:"status_change_date,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// CaseSummary holds the totals shown on the summary cards.
// Active + Recovered + Deceased + Migrated + Unknown always equals Total.
type CaseSummary struct {
	Total     int       `json:"total"`
	Active    int       `json:"active"`
	Recovered int       `json:"recovered"`
	Deceased  int       `json:"deceased"`
	Migrated  int       `json:"migrated"`
	Unknown   int       `json:"unknown"`
	States    int       `json:"states"`
	LoadedAt  time.Time `json:"loaded_at"`
	Source    string    `json:"source"`
	Missing   bool      `json:"missing"`
}

// Add counts one record under its status.
func (s *CaseSummary) Add(status CaseStatus) {
	s.Total++
	switch status {
	case StatusHospitalized:
		s.Active++
	case StatusRecovered:
		s.Recovered++
	case StatusDeceased:
		s.Deceased++
	case StatusMigrated:
		s.Migrated++
	default:
		s.Unknown++
	}
}

// Consistent reports whether the per-status counts add up to Total.
func (s CaseSummary) Consistent() bool {
	return s.Active+s.Recovered+s.Deceased+s.Migrated+s.Unknown == s.Total
}

// StateCount is one bar of the state chart.
type StateCount struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

// StateBreakdown is one row of the per-state table.
type StateBreakdown struct {
	State     string `json:"state"`
	Total     int    `json:"total"`
	Active    int    `json:"active"`
	Recovered int    `json:"recovered"`
	Deceased  int    `json:"deceased"`
	Migrated  int    `json:"migrated"`
	Unknown   int    `json:"unknown"`
}

// Add counts one record under its status.
func (b *StateBreakdown) Add(status CaseStatus) {
	b.Total++
	switch status {
	case StatusHospitalized:
		b.Active++
	case StatusRecovered:
		b.Recovered++
	case StatusDeceased:
		b.Deceased++
	case StatusMigrated:
		b.Migrated++
	default:
		b.Unknown++
	}
}

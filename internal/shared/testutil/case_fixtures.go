package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"casepulse/pkg/contracts/domain"
)

// CaseCSVHeader is the header of the public individual details dataset.
const CaseCSVHeader = "id,government_id,diagnosed_date,age,gender,detected_city,detected_district,detected_state,nationality,current_status,status_change_date,notes"

// CaseRow is a minimal fixture row.
type CaseRow struct {
	State  string
	Status string
}

// SampleCaseRows is a small dataset covering every card: 7 rows, 3 states,
// one row without a state.
//
//	Kerala: 2 Recovered, 1 Hospitalized
//	Delhi:  1 Hospitalized, 1 Deceased
//	Goa:    1 Migrated
//	blank:  1 Hospitalized
func SampleCaseRows() []CaseRow {
	return []CaseRow{
		{"Kerala", "Recovered"},
		{"Kerala", "Recovered"},
		{"Kerala", "Hospitalized"},
		{"Delhi", "Hospitalized"},
		{"Delhi", "Deceased"},
		{"Goa", "Migrated"},
		{"", "Hospitalized"},
	}
}

// CaseCSV renders rows in the dataset's column layout.
func CaseCSV(rows []CaseRow) string {
	var sb strings.Builder
	sb.WriteString(CaseCSVHeader)
	sb.WriteByte('\n')
	for i, r := range rows {
		cols := make([]string, 12)
		cols[0] = strconv.Itoa(i)
		cols[7] = r.State
		cols[8] = "India"
		cols[9] = r.Status
		sb.WriteString(strings.Join(cols, ","))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteCaseCSV writes rows to dir/Dataset/IndividualDetails.csv and returns
// the path.
func WriteCaseCSV(t *testing.T, dir string, rows []CaseRow) string {
	t.Helper()

	path := filepath.Join(dir, "Dataset", "IndividualDetails.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create dataset dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(CaseCSV(rows)), 0644); err != nil {
		t.Fatalf("write case csv: %v", err)
	}
	return path
}

// CaseRecords converts fixture rows to parsed records with 1-based row IDs.
func CaseRecords(rows []CaseRow) []domain.CaseRecord {
	records := make([]domain.CaseRecord, len(rows))
	for i, r := range rows {
		status, _ := domain.ParseCaseStatus(r.Status)
		records[i] = domain.CaseRecord{
			RowID:         i + 1,
			ID:            strconv.Itoa(i),
			DetectedState: r.State,
			CurrentStatus: status,
			Nationality:   "India",
		}
	}
	return records
}

package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCaseStatus(t *testing.T) {
	tests := []struct {
		input  string
		want   CaseStatus
		wantOK bool
	}{
		{"Hospitalized", StatusHospitalized, true},
		{"  hospitalized ", StatusHospitalized, true},
		{"Active", StatusHospitalized, true},
		{"RECOVERED", StatusRecovered, true},
		{"Deceased", StatusDeceased, true},
		{"Migrated", StatusMigrated, true},
		{"", StatusUnknown, false},
		{"Quarantined", StatusUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseCaseStatus(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Active", StatusHospitalized.Label())
	assert.Equal(t, "Deaths", StatusDeceased.Label())
	assert.Equal(t, "Recovered", StatusRecovered.Label())
}

func TestParseStatusFilter(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    StatusFilter
		wantErr bool
	}{
		{name: "empty is all", input: "", want: FilterAll},
		{name: "all", input: "All", want: FilterAll},
		{name: "all lowercase", input: "all", want: FilterAll},
		{name: "recovered", input: "Recovered", want: FilterFor(StatusRecovered)},
		{name: "active alias", input: "active", want: FilterFor(StatusHospitalized)},
		{name: "unknown value", input: "Critical", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatusFilter(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusFilterMatches(t *testing.T) {
	recovered := CaseRecord{CurrentStatus: StatusRecovered}
	deceased := CaseRecord{CurrentStatus: StatusDeceased}

	assert.True(t, FilterAll.Matches(recovered))
	assert.True(t, FilterAll.Matches(deceased))
	assert.True(t, FilterFor(StatusRecovered).Matches(recovered))
	assert.False(t, FilterFor(StatusRecovered).Matches(deceased))

	assert.Equal(t, "All", FilterAll.String())
	assert.Equal(t, "Deceased", FilterFor(StatusDeceased).String())
	assert.True(t, FilterAll.IsAll())
	assert.Equal(t, StatusDeceased, FilterFor(StatusDeceased).Status())
}

func TestCaseSummaryAdd(t *testing.T) {
	var s CaseSummary
	for _, st := range []CaseStatus{StatusHospitalized, StatusHospitalized, StatusRecovered, StatusDeceased, StatusMigrated, StatusUnknown} {
		s.Add(st)
	}

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 2, s.Active)
	assert.Equal(t, 1, s.Recovered)
	assert.Equal(t, 1, s.Deceased)
	assert.Equal(t, 1, s.Migrated)
	assert.Equal(t, 1, s.Unknown)
	assert.True(t, s.Consistent())

	s.Total++
	assert.False(t, s.Consistent())
}

func TestStateBreakdownAdd(t *testing.T) {
	b := StateBreakdown{State: "Kerala"}
	b.Add(StatusRecovered)
	b.Add(StatusRecovered)
	b.Add(StatusUnknown)

	assert.Equal(t, StateBreakdown{State: "Kerala", Total: 3, Recovered: 2, Unknown: 1}, b)
}

func TestParseSort(t *testing.T) {
	key, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortByTotal, key)

	key, err = ParseSortKey(" Recovered ")
	require.NoError(t, err)
	assert.Equal(t, SortByRecovered, key)

	_, err = ParseSortKey("age")
	assert.Error(t, err)

	order, err := ParseSortOrder("", SortByState)
	require.NoError(t, err)
	assert.Equal(t, SortAsc, order)

	order, err = ParseSortOrder("", SortByTotal)
	require.NoError(t, err)
	assert.Equal(t, SortDesc, order)

	order, err = ParseSortOrder("ASC", SortByTotal)
	require.NoError(t, err)
	assert.Equal(t, SortAsc, order)

	_, err = ParseSortOrder("sideways", SortByTotal)
	assert.Error(t, err)
}

func TestChartFigureJSON(t *testing.T) {
	fig := ChartFigure{
		Data:   []BarTrace{{Type: "bar", X: []string{"Kerala"}, Y: []int{3}}},
		Layout: ChartLayout{Title: ChartText{Text: ChartTitle}},
	}

	raw, err := json.Marshal(fig)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	data := decoded["data"].([]any)
	require.Len(t, data, 1)
	trace := data[0].(map[string]any)
	assert.Equal(t, "bar", trace["type"])
	assert.Equal(t, []any{"Kerala"}, trace["x"])
	assert.Equal(t, []any{float64(3)}, trace["y"])

	layout := decoded["layout"].(map[string]any)
	assert.Equal(t, "State Total Cases", layout["title"].(map[string]any)["text"])
}

func TestStatusOptions(t *testing.T) {
	options := StatusOptions()

	require.Len(t, options, 4)
	assert.Equal(t, StatusOption{Value: "All", Label: "All"}, options[0])

	var values []string
	for _, o := range options[1:] {
		values = append(values, o.Value)
		_, err := ParseStatusFilter(o.Value)
		assert.NoError(t, err, o.Value)
	}
	assert.Equal(t, []string{"Hospitalized", "Recovered", "Deceased"}, values)
}

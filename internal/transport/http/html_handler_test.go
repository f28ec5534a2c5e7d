package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casepulse/internal/dataprocessing"
	apierrors "casepulse/internal/errors"
	"casepulse/pkg/contracts/domain"
)

func TestDashboardHandler_Page(t *testing.T) {
	env := newTestEnv(t, sampleDataset())

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Corona Virus Pandemic</title>")
	assert.Contains(t, body, "bootstrap@5.3.0")
	for _, label := range []string{"Total Cases", "Recovered Cases", "Active Cases", "Deaths"} {
		assert.Contains(t, body, label)
	}
	for _, class := range []string{"card bg-danger", "card bg-success", "card bg-warning", "card bg-dark"} {
		assert.Contains(t, body, class)
	}
	assert.Contains(t, body, `<h4 class="text-light" id="total-cases">7</h4>`)
	assert.Contains(t, body, `<h4 class="text-light" id="recovered-cases">2</h4>`)
	assert.Contains(t, body, `<h4 class="text-light" id="active-cases">3</h4>`)
	assert.Contains(t, body, `<h4 class="text-light" id="deaths">1</h4>`)

	assert.Contains(t, body, `id="picker"`)
	assert.Contains(t, body, `<option value="All" selected>All</option>`)
	assert.Contains(t, body, `id="bar"`)
	assert.Contains(t, body, "State Total Cases")
	assert.Contains(t, body, "<td>Kerala</td>")
	assert.NotContains(t, body, "missing-note")
}

func TestDashboardHandler_Filtered(t *testing.T) {
	env := newTestEnv(t, sampleDataset())

	rec := env.do(t, http.MethodGet, "/?status=Recovered&sort=state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `<option value="Recovered" selected>Recovered</option>`)
	assert.Contains(t, body, "<td>Kerala</td>")
	assert.NotContains(t, body, "Delhi")
	// cards always show the whole dataset
	assert.Contains(t, body, `id="total-cases">7<`)
}

func TestDashboardHandler_MissingFile(t *testing.T) {
	env := newTestEnv(t, dataprocessing.Empty("Dataset/IndividualDetails.csv"))

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "missing-note")
	assert.Contains(t, body, "No cases to show")
	assert.Contains(t, body, `id="total-cases">0<`)
}

func TestDashboardHandler_BadQuery(t *testing.T) {
	env := newTestEnv(t, sampleDataset())

	rec := env.do(t, http.MethodGet, "/?sort=population", "")
	assertProblem(t, rec, http.StatusBadRequest, apierrors.TypeValidation)
}

func TestColumns(t *testing.T) {
	cols := columns("Recovered", domain.SortByTotal, domain.SortDesc)
	require.Len(t, cols, 5)

	byKey := make(map[domain.SortKey]column)
	for _, c := range cols {
		byKey[c.Key] = c
	}

	total := byKey[domain.SortByTotal]
	assert.True(t, total.Sorted)
	assert.Equal(t, "▼", total.Arrow)
	assert.Equal(t, "/?order=asc&sort=total&status=Recovered", total.Href)

	state := byKey[domain.SortByState]
	assert.False(t, state.Sorted)
	assert.Equal(t, "/?order=asc&sort=state&status=Recovered", state.Href)

	deaths := byKey[domain.SortByDeceased]
	assert.Equal(t, "Deaths", deaths.Label)
	assert.Equal(t, "/?order=desc&sort=deceased&status=Recovered", deaths.Href)
}

func TestCards(t *testing.T) {
	got := cards(domain.CaseSummary{Total: 10, Active: 4, Recovered: 3, Deceased: 2, Migrated: 1})
	require.Len(t, got, 4)
	assert.Equal(t, card{ID: "total-cases", Label: "Total Cases", Class: "bg-danger", Value: 10}, got[0])
	assert.Equal(t, 3, got[1].Value)
	assert.Equal(t, 4, got[2].Value)
	assert.Equal(t, 2, got[3].Value)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "casepulse/internal/errors"
)

type testTableQuery struct {
	Status   string `query:"status" validate:"omitempty,status_filter"`
	Sort     string `query:"sort" validate:"omitempty,sort_key"`
	Order    string `query:"order" validate:"omitempty,sort_order"`
	Format   string `query:"format" validate:"omitempty,export_format"`
	Page     int    `query:"page" validate:"gte=1"`
	PageSize int    `query:"page_size" validate:"gte=1,lte=500"`
	Download bool   `query:"download"`
}

func bindQuery(t *testing.T, rawQuery string) (testTableQuery, error) {
	t.Helper()
	q := testTableQuery{Page: 1, PageSize: 50}
	req := httptest.NewRequest(http.MethodGet, "/api/data/table?"+rawQuery, nil)
	err := NewQueryValidator().Bind(req, &q)
	return q, err
}

func TestQueryValidator_Bind(t *testing.T) {
	q, err := bindQuery(t, "status=Recovered&sort=state&order=asc&format=XLSX&page=3&page_size=20&download=true")
	require.NoError(t, err)

	assert.Equal(t, testTableQuery{
		Status:   "Recovered",
		Sort:     "state",
		Order:    "asc",
		Format:   "XLSX",
		Page:     3,
		PageSize: 20,
		Download: true,
	}, q)
}

func TestQueryValidator_Defaults(t *testing.T) {
	q, err := bindQuery(t, "")
	require.NoError(t, err)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 50, q.PageSize)
	assert.Empty(t, q.Status)
}

func TestQueryValidator_Errors(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantField string
		wantMsg   string
	}{
		{name: "unknown status", query: "status=Critical", wantField: "status", wantMsg: "status must be one of: All, Hospitalized, Recovered, Deceased"},
		{name: "unknown sort", query: "sort=age", wantField: "sort", wantMsg: "sort must be one of: state, total, active, recovered, deceased"},
		{name: "bad order", query: "order=up", wantField: "order", wantMsg: "order must be asc or desc"},
		{name: "bad format", query: "format=pdf", wantField: "format", wantMsg: "format must be csv or xlsx"},
		{name: "page too small", query: "page=0", wantField: "page", wantMsg: "page must be at least 1"},
		{name: "page size too large", query: "page_size=1000", wantField: "page_size", wantMsg: "page_size must be at most 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bindQuery(t, tt.query)
			require.Error(t, err)

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, apierrors.CodeValidationFailed, apiErr.ErrorCode)

			details := apiErr.Details.(apierrors.ValidationErrors)
			require.Len(t, details.Errors, 1)
			assert.Equal(t, tt.wantField, details.Errors[0].Field)
			assert.Equal(t, tt.wantMsg, details.Errors[0].Message)
		})
	}
}

func TestQueryValidator_NonInteger(t *testing.T) {
	_, err := bindQuery(t, "page=two")

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierrors.CodeInvalidParameter, apiErr.ErrorCode)
	assert.Equal(t, "Invalid value for page", apiErr.Message)
}

func TestQueryValidator_BadTarget(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Error(t, NewQueryValidator().Bind(req, testTableQuery{}))
}

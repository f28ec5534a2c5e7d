package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casepulse/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	assert.Equal(t, ProblemContentType, rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantCode   string
	}{
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("load: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "invalid parameter",
			err:        InvalidParameter("status", fmt.Errorf("unknown status filter %q", "Critical")),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantCode:   CodeInvalidParameter,
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("summary: %w", ErrDataUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeDataUnavailable,
			wantCode:   CodeDataUnavailable,
		},
		{
			name:       "unsupported format",
			err:        ErrUnsupportedFormat,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeUnsupportedFormat,
			wantCode:   CodeUnsupportedFormat,
		},
		{
			name:       "app storage error",
			err:        fmt.Errorf("reload: %w", NewStorageError("open case file", fs.ErrPermission)),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeDataUnavailable,
			wantCode:   CodeDataUnavailable,
		},
		{
			name:       "app parsing error",
			err:        NewParsingError("Case file could not be parsed", fmt.Errorf("missing columns")),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeDataCorrupted,
			wantCode:   CodeDataCorrupted,
		},
		{
			name:       "app export error",
			err:        NewExportError("export csv", nil),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeExportFailed,
			wantCode:   CodeExportFailed,
		},
		{
			name:       "plain error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/data/states", nil)
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-1"))
			rec := httptest.NewRecorder()

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/data/states", body["instance"])
			assert.Equal(t, "req-1", body["trace_id"])
			assert.NotContains(t, body, "stack")
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error_code"])
			}

			assert.True(t, logs.ContainsAttr("request_id", "req-1"))
		})
	}
}

func TestErrorHandler_ParsingDetails(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()

	err := NewParsingError("Case file could not be parsed", fmt.Errorf("missing columns: current_status")).
		WithContext("path", "/srv/cases.csv")
	NewErrorHandler(logger, false).HandleError(rec, httptest.NewRequest(http.MethodPost, "/api/data/reload", nil), err)

	body := decodeProblem(t, rec)
	assert.Equal(t, "Case file could not be parsed", body["detail"])
	assert.Equal(t, "missing columns: current_status", body["details"])
	assert.NotContains(t, rec.Body.String(), "/srv/cases.csv")
}

func TestErrorHandler_HandleNilError(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()

	NewErrorHandler(logger, false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Zero(t, rec.Body.Len())
	assert.Zero(t, logs.Count())
}

func TestErrorHandler_LogLevels(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.HandleError(httptest.NewRecorder(), req, ErrInvalidParameter)
	h.HandleError(httptest.NewRecorder(), req, ErrInternalServer)

	assert.Len(t, logs.GetRecordsByLevel(slog.LevelWarn), 1)
	assert.Len(t, logs.GetRecordsByLevel(slog.LevelError), 1)
}

func TestErrorHandler_ValidationDetails(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/api/data/cases", nil), NewValidationErrors([]ValidationError{
		{Field: "page_size", Message: "must be at most 500"},
	}))

	body := decodeProblem(t, rec)
	details := body["details"].(map[string]interface{})
	errs := details["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, "page_size", errs[0].(map[string]interface{})["field"])
}

func TestErrorHandler_StackOnlyWhenEnabled(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	rec := httptest.NewRecorder()

	NewErrorHandler(logger, true).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))

	assert.Contains(t, decodeProblem(t, rec), "stack")
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	handler := RecoveryMiddleware(h)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data/summary", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body, "panic")
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, rec)["type"])

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/data/summary", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "DELETE")
}

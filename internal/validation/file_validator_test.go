package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casepulse/internal/shared/testutil"
)

func TestFileValidator_ValidateCaseFile(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		wantErr   error
	}{
		{
			name: "csv case file",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteCaseCSV(t, t.TempDir(), testutil.SampleCaseRows())
			},
		},
		{
			name: "xlsx extension in upper case",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "Cases.XLSX")
				require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
				return file
			},
		},
		{
			name: "missing file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "IndividualDetails.csv")
			},
			wantErr: ErrFileNotFound,
		},
		{
			name: "directory",
			setupFunc: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "cases.csv")
				require.NoError(t, os.Mkdir(dir, 0755))
				return dir
			},
			wantErr: ErrNotRegularFile,
		},
		{
			name: "unsupported extension",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "cases.json")
				require.NoError(t, os.WriteFile(file, []byte("[]"), 0644))
				return file
			},
			wantErr: ErrUnsupportedType,
		},
		{
			name: "excel lock file",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "~$cases.xlsx")
				require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
				return file
			},
			wantErr: ErrTemporaryFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			validator := NewFileValidator(logger)

			err := validator.ValidateCaseFile(tt.setupFunc(t))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_ValidateExportTarget(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	validator := NewFileValidator(logger)
	dir := t.TempDir()

	t.Run("creates missing directory", func(t *testing.T) {
		target := filepath.Join(dir, "nested", "out", "states.csv")
		require.NoError(t, validator.ValidateExportTarget(target, ".csv"))

		info, err := os.Stat(filepath.Dir(target))
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		entries, err := os.ReadDir(filepath.Dir(target))
		require.NoError(t, err)
		assert.Empty(t, entries, "write probe should be removed")
	})

	t.Run("extension mismatch", func(t *testing.T) {
		err := validator.ValidateExportTarget(filepath.Join(dir, "states.csv"), ".xlsx")
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("parent is a file", func(t *testing.T) {
		blocker := filepath.Join(dir, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

		err := validator.ValidateExportTarget(filepath.Join(blocker, "states.csv"), ".csv")
		assert.Error(t, err)
	})
}

func TestFileValidator_NilLogger(t *testing.T) {
	validator := NewFileValidator(nil)
	assert.NotNil(t, validator.logger)
}

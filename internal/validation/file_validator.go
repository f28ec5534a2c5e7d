package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrFileNotFound         = errors.New("file does not exist")
	ErrNotRegularFile       = errors.New("not a regular file")
	ErrUnsupportedType      = errors.New("unsupported file type")
	ErrTemporaryFile        = errors.New("temporary spreadsheet file")
	ErrDirectoryNotWritable = errors.New("directory is not writable")
)

// CaseFileExtensions are the extensions the case file loader understands.
var CaseFileExtensions = []string{".csv", ".xlsx", ".xlsm"}

// FileValidator checks case files and export targets before they are used.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateCaseFile checks that path is a readable case file the loader can
// parse. It does not read the contents.
func (v *FileValidator) ValidateCaseFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Case file is an editor lock file",
			slog.String("file", path))
		return fmt.Errorf("%s: %w", path, ErrTemporaryFile)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !hasExtension(CaseFileExtensions, ext) {
		v.logger.Error("Case file has an unsupported extension",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("%s (extension %q): %w", path, ext, ErrUnsupportedType)
	}

	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		v.logger.Error("Path is not a regular file",
			slog.String("path", path))
		return fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateExportTarget checks that path ends in ext and that its directory
// exists or can be created and is writable.
func (v *FileValidator) ValidateExportTarget(path, ext string) error {
	if got := strings.ToLower(filepath.Ext(path)); got != ext {
		v.logger.Error("Export target has the wrong extension",
			slog.String("file", path),
			slog.String("want", ext),
			slog.String("got", got))
		return fmt.Errorf("%s should end in %s: %w", path, ext, ErrUnsupportedType)
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w: %v", dir, ErrDirectoryNotWritable, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

func hasExtension(allowed []string, ext string) bool {
	for _, a := range allowed {
		if a == ext {
			return true
		}
	}
	return false
}

package services

import "errors"

// Case service errors
var (
	// Query errors
	ErrInvalidFilter = errors.New("invalid status filter")
	ErrInvalidSort   = errors.New("invalid sort")
	ErrInvalidPage   = errors.New("invalid page")

	// Export errors
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// Data errors
	ErrNoData = errors.New("case data not loaded")
)

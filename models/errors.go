package models

import "fmt"

// Error codes used across the scraping pipelines.
const (
	ErrCodeTimeout      = "RUN_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeStructure    = "PAGE_STRUCTURE_MISMATCH"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodePageClose    = "PAGE_CLOSE_FAILED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeMapsFailure  = "MAPS_FAILURE"
	ErrCodeBadTable     = "BAD_TABLE"
)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

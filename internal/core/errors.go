// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Panel errors
	ErrEmptyPanel   = &Error{Code: "EMPTY_PANEL", Message: "price panel is empty"}
	ErrInvalidPanel = &Error{Code: "INVALID_PANEL", Message: "price panel is malformed"}
	ErrNoData       = &Error{Code: "NO_DATA", Message: "no data available"}

	// Selection outcomes. The engine treats these as "no change this period".
	ErrInsufficientHistory      = &Error{Code: "INSUFFICIENT_HISTORY", Message: "not enough history for lookback window"}
	ErrInsufficientCandidates   = &Error{Code: "INSUFFICIENT_CANDIDATES", Message: "not enough assets with finite momentum"}
	ErrInsufficientReplacements = &Error{Code: "INSUFFICIENT_REPLACEMENTS", Message: "not enough assets available to replace evictions"}

	// Strategy errors
	ErrStrategyUnknown = &Error{Code: "STRATEGY_UNKNOWN", Message: "unknown strategy"}
	ErrStrategyFailed  = &Error{Code: "STRATEGY_FAILED", Message: "strategy selection failed"}

	// Collector errors
	ErrSymbolNotFound   = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrCollectorFailed  = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}
	ErrCollectorTimeout = &Error{Code: "COLLECTOR_TIMEOUT", Message: "collector timeout"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}
	ErrNotFound      = &Error{Code: "NOT_FOUND", Message: "resource not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid api key"}
)

package dashboard

import (
	"errors"
	"net/http"
	"sync"
)

// Category classifies errors by how the dashboard surfaces them
type Category int

const (
	// CategoryUnknown represents an unclassified error
	CategoryUnknown Category = iota
	// CategoryFatalStartup is a configuration or dataset error that stops the process
	CategoryFatalStartup
	// CategoryToleratedAbsence is an optional input that is missing; the view degrades
	CategoryToleratedAbsence
	// CategoryUserInput is bad input shown inline; the user may retry
	CategoryUserInput
	// CategoryExportFailure is a failed report export
	CategoryExportFailure
)

// String returns the string representation of a category
func (c Category) String() string {
	switch c {
	case CategoryFatalStartup:
		return "fatal_startup"
	case CategoryToleratedAbsence:
		return "tolerated_absence"
	case CategoryUserInput:
		return "user_input"
	case CategoryExportFailure:
		return "export_failure"
	default:
		return "unknown"
	}
}

// StatusCode maps a category to the HTTP status used when it ends a request.
func (c Category) StatusCode() int {
	switch c {
	case CategoryUserInput:
		return http.StatusBadRequest
	case CategoryToleratedAbsence:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error with a category and a user-facing message.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a category and message.
func NewError(c Category, msg string, err error) *Error {
	return &Error{Category: c, Message: msg, Err: err}
}

// Fatal marks a startup error.
func Fatal(msg string, err error) *Error { return NewError(CategoryFatalStartup, msg, err) }

// Categorize returns the category of err, or CategoryUnknown when err does not
// carry one.
func Categorize(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnknown
}

// ErrorStats tracks error statistics by category
type ErrorStats struct {
	mu     sync.Mutex
	counts map[Category]int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats() *ErrorStats {
	return &ErrorStats{counts: make(map[Category]int)}
}

// Record adds an error to the statistics
func (s *ErrorStats) Record(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.counts[Categorize(err)]++
	s.mu.Unlock()
}

// GetCounts returns a copy of the error counts keyed by category name
func (s *ErrorStats) GetCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		result[k.String()] = v
	}
	return result
}

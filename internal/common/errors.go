package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies application errors for HTTP mapping and worker
// recovery decisions.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindInvalidInput    ErrorKind = "INVALID_INPUT"
	KindExternalService ErrorKind = "EXTERNAL_SERVICE_ERROR"
	KindQueue           ErrorKind = "QUEUE_ERROR"
	KindStorage         ErrorKind = "STORAGE_ERROR"
	KindDatabase        ErrorKind = "DATABASE_ERROR"
	KindMarkdownService ErrorKind = "MARKDOWN_SERVICE_ERROR"
	KindScraper         ErrorKind = "SCRAPER_ERROR"
	KindInternal        ErrorKind = "INTERNAL_ERROR"
)

// AppError is the typed error carried across service boundaries.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by kind so callers can compare against sentinel
// values built with the same constructor.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Kind == appErr.Kind
	}
	return false
}

func newError(kind ErrorKind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...interface{}) *AppError {
	return newError(KindNotFound, format, args...)
}

// InvalidInputf builds an InvalidInput error.
func InvalidInputf(format string, args ...interface{}) *AppError {
	return newError(KindInvalidInput, format, args...)
}

// ExternalServicef builds an ExternalServiceError.
func ExternalServicef(format string, args ...interface{}) *AppError {
	return newError(KindExternalService, format, args...)
}

// QueueError wraps a queue infrastructure fault.
func QueueError(err error) *AppError {
	return &AppError{Kind: KindQueue, Message: "queue error", Err: err}
}

// StorageError wraps an object-store fault.
func StorageError(err error) *AppError {
	return &AppError{Kind: KindStorage, Message: "storage error", Err: err}
}

// DatabaseError wraps a database fault.
func DatabaseError(err error) *AppError {
	return &AppError{Kind: KindDatabase, Message: "database error", Err: err}
}

// MarkdownError wraps a markdown converter fault.
func MarkdownError(err error) *AppError {
	return &AppError{Kind: KindMarkdownService, Message: "markdown service error", Err: err}
}

// ScraperErrorf builds a catch-all scraper error.
func ScraperErrorf(format string, args ...interface{}) *AppError {
	return newError(KindScraper, format, args...)
}

// KindOf returns the error kind, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the API status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

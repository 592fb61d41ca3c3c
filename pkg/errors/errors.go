package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents a fetch that failed even after its retry
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeNotFound represents an expected DOM element or control that is absent
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeMalformedRecord represents a record whose required field is missing
	ErrorTypeMalformedRecord ErrorType = "malformed_record"
	// ErrorTypeOutOfRange represents a summary query outside the scraped dates
	ErrorTypeOutOfRange ErrorType = "out_of_range"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeStorage represents result persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError is the error type shared by every component of the scraper.
// Target names what was being worked on: a URL, a selector, a file or a date.
type ScrapeError struct {
	Type    ErrorType
	Target  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Target, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Target, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeParsing, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, target, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Target:  target,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new transient fetch error
func NewNetwork(target, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, target, message, err)
}

// NewNotFound creates a new not-found error for a missing element or control
func NewNotFound(target, message string) *ScrapeError {
	return New(ErrorTypeNotFound, target, message, nil)
}

// NewMalformedRecord creates a new malformed record error
func NewMalformedRecord(target, message string) *ScrapeError {
	return New(ErrorTypeMalformedRecord, target, message, nil)
}

// NewOutOfRange creates a new out-of-range query error
func NewOutOfRange(target, message string) *ScrapeError {
	return New(ErrorTypeOutOfRange, target, message, nil)
}

// NewParsing creates a new parsing error
func NewParsing(target, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, target, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(target string, retryAfter string) *ScrapeError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	return New(ErrorTypeRateLimit, target, message, nil)
}

// NewCache creates a new cache error
func NewCache(target, message string, err error) *ScrapeError {
	return New(ErrorTypeCache, target, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(target, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, target, message, err)
}

// NewStorage creates a new storage error
func NewStorage(target, message string, err error) *ScrapeError {
	return New(ErrorTypeStorage, target, message, err)
}

// NewValidation creates a new validation error
func NewValidation(target, message string) *ScrapeError {
	return New(ErrorTypeValidation, target, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "config", message, err)
}

// TypeOf returns the type of the first ScrapeError in err's chain, or "" if there is none.
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// IsRetryable reports whether a failed fetch is worth repeating.
// Errors outside the taxonomy count as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.IsRetryable()
	}
	return true
}

// IsNotFound reports whether err marks an absent element or control.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsNetwork reports whether err is a transient fetch failure.
func IsNetwork(err error) bool {
	return TypeOf(err) == ErrorTypeNetwork
}

// IsMalformedRecord reports whether err is a malformed record.
func IsMalformedRecord(err error) bool {
	return TypeOf(err) == ErrorTypeMalformedRecord
}

// IsOutOfRange reports whether err is an out-of-range summary query.
func IsOutOfRange(err error) bool {
	return TypeOf(err) == ErrorTypeOutOfRange
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

package errs

import (
	"errors"
)

// Code is a harness failure code.
type Code string

const (
	// NavigationTimeout: the page URL never matched the expected pattern within its ceiling.
	NavigationTimeout Code = "navigation_timeout"
	// ElementNotFound: a locator never became visible within its ceiling.
	ElementNotFound Code = "element_not_found"
	// SearchMismatch: the expected entity is absent from filtered results.
	SearchMismatch Code = "search_mismatch"
	// ConfigurationError: a fixture, URL pattern or setting is missing or malformed.
	ConfigurationError Code = "configuration_error"
	// AssertionFailed: a hard check on observed page state did not hold.
	AssertionFailed Code = "assertion_failed"
	Internal        Code = "internal"
)

// Error is a coded harness error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// MessageOf returns the outermost coded message, without the cause chain.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return err.Error()
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	for err != nil {
		var coded *Error
		if !errors.As(err, &coded) {
			return false
		}
		if coded.Code == code {
			return true
		}
		err = coded.Err
	}
	return false
}

// ExitCode maps a failure code to the process exit status of the suite runner.
func ExitCode(code Code) int {
	switch code {
	case ConfigurationError:
		return 2
	default:
		return 1
	}
}

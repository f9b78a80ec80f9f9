package errors

import "errors"

// Code identifies a structured error type used across the application.
type Code string

const (
	// Generic codes
	CodeUnknown Code = "unknown"

	// Release feed and version errors
	CodeNetwork       Code = "network_error"
	CodeParse         Code = "parse_error"
	CodeInvalidFormat Code = "invalid_format"
	CodeAssetNotFound Code = "asset_not_found"

	// Staging and replacement errors
	CodeIO              Code = "io_error"
	CodeVerification    Code = "verification_failed"
	CodePrivilegeDenied Code = "privilege_denied"

	CodeConfigurationError Code = "configuration_error"
)

// Error represents a structured error with a machine-readable code plus message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e Error) Error() string {
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

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// New wraps an error with a code/message.
func New(code Code, msg string, err error) Error {
	return Error{Code: code, Message: msg, Err: err}
}

// CodeOf walks the error chain and returns the first structured code found.
func CodeOf(err error) Code {
	var structured Error
	if errors.As(err, &structured) {
		return structured.Code
	}
	return CodeUnknown
}

// IsCode reports whether the error (or its unwrap chain) matches the provided code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Recoverable reports whether a failure with this code leaves the host in a state
// where the next scheduled check may simply retry.
func Recoverable(code Code) bool {
	switch code {
	case CodeNetwork, CodeParse, CodeInvalidFormat, CodeAssetNotFound, CodeIO, CodeVerification:
		return true
	default:
		return false
	}
}

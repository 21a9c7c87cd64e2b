package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorCode_Validation        ErrorCode = "VALIDATION_ERROR"
	ErrorCode_DataUnavailable   ErrorCode = "DATA_UNAVAILABLE"
	ErrorCode_Configuration     ErrorCode = "CONFIGURATION_ERROR"
	ErrorCode_Timeout           ErrorCode = "TIMEOUT"
	ErrorCode_InternalInvariant ErrorCode = "INTERNAL_INVARIANT_VIOLATION"
	ErrorCode_Canceled          ErrorCode = "CANCELED"
	ErrorCode_NotFound          ErrorCode = "NOT_FOUND"
	ErrorCode_Factor            ErrorCode = "FACTOR_ERROR"
	ErrorCode_Unknown           ErrorCode = "UNKNOWN"
)

type codedError interface {
	error
	Code() ErrorCode
}

// malformed input, rejected before any simulation starts
type ValidationError struct {
	Err error
}

func (e ValidationError) Error() string { return e.Err.Error() }
func (e ValidationError) Unwrap() error { return e.Err }
func (e ValidationError) Code() ErrorCode { return ErrorCode_Validation }

// missing bars/fundamentals at a required point. recovered locally,
// never fatal to a run by itself
type DataUnavailableError struct {
	Err error
}

func (e DataUnavailableError) Error() string { return e.Err.Error() }
func (e DataUnavailableError) Unwrap() error { return e.Err }
func (e DataUnavailableError) Code() ErrorCode { return ErrorCode_DataUnavailable }

type ConfigurationError struct {
	Err error
}

func (e ConfigurationError) Error() string { return e.Err.Error() }
func (e ConfigurationError) Unwrap() error { return e.Err }
func (e ConfigurationError) Code() ErrorCode { return ErrorCode_Configuration }

type TimeoutError struct {
	Err error
}

func (e TimeoutError) Error() string { return e.Err.Error() }
func (e TimeoutError) Unwrap() error { return e.Err }
func (e TimeoutError) Code() ErrorCode { return ErrorCode_Timeout }

// indicates a simulator bug. always fatal to the run
type InternalInvariantError struct {
	Err error
}

func (e InternalInvariantError) Error() string { return e.Err.Error() }
func (e InternalInvariantError) Unwrap() error { return e.Err }
func (e InternalInvariantError) Code() ErrorCode { return ErrorCode_InternalInvariant }

type CanceledError struct {
	Err error
}

func (e CanceledError) Error() string { return e.Err.Error() }
func (e CanceledError) Unwrap() error { return e.Err }
func (e CanceledError) Code() ErrorCode { return ErrorCode_Canceled }

type NotFoundError struct {
	Err error
}

func (e NotFoundError) Error() string { return e.Err.Error() }
func (e NotFoundError) Unwrap() error { return e.Err }
func (e NotFoundError) Code() ErrorCode { return ErrorCode_NotFound }

// a factor or evaluator fault while a run is in progress
type FactorError struct {
	Err error
}

func (e FactorError) Error() string { return e.Err.Error() }
func (e FactorError) Unwrap() error { return e.Err }
func (e FactorError) Code() ErrorCode { return ErrorCode_Factor }

func NewValidationError(format string, args ...any) error {
	return ValidationError{Err: fmt.Errorf(format, args...)}
}

func NewDataUnavailableError(format string, args ...any) error {
	return DataUnavailableError{Err: fmt.Errorf(format, args...)}
}

func NewConfigurationError(format string, args ...any) error {
	return ConfigurationError{Err: fmt.Errorf(format, args...)}
}

func NewInternalInvariantError(format string, args ...any) error {
	return InternalInvariantError{Err: fmt.Errorf(format, args...)}
}

func NewNotFoundError(format string, args ...any) error {
	return NotFoundError{Err: fmt.Errorf(format, args...)}
}

// ErrorFromContext converts a finished context into a timeout or
// cancellation error
func ErrorFromContext(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError{Err: fmt.Errorf("run exceeded its time limit: %w", err)}
	}
	return CanceledError{Err: fmt.Errorf("run was canceled: %w", err)}
}

// ErrorCodeOf finds the taxonomy code anywhere in err's chain
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded codedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCode_Timeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCode_Canceled
	}
	return ErrorCode_Unknown
}

func IsDataUnavailable(err error) bool {
	var e DataUnavailableError
	return errors.As(err, &e)
}

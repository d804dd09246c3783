// Package domain defines core types, interfaces, and errors for the dataset query engine.
package domain

import "fmt"

// NotFoundError indicates a dataset descriptor, datacard, file or relation was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConfigurationError indicates a descriptor exists but is malformed or incomplete.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// UnsupportedBackendError indicates the declared backend type has no registered driver.
type UnsupportedBackendError struct {
	Message string
}

func (e *UnsupportedBackendError) Error() string { return e.Message }

// SchemaMismatchError indicates the column list does not line up with the
// width of the rows returned by the backend.
type SchemaMismatchError struct {
	Message string
}

func (e *SchemaMismatchError) Error() string { return e.Message }

// CompilationError indicates a query model could not be compiled into backend SQL.
type CompilationError struct {
	Message string
}

func (e *CompilationError) Error() string { return e.Message }

// UnsupportedValueError indicates the backend produced a value type the
// serializer has no transport-safe representation for.
type UnsupportedValueError struct {
	Message string
}

func (e *UnsupportedValueError) Error() string { return e.Message }

// AccessDeniedError indicates insufficient permissions.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupportedBackend creates an UnsupportedBackendError with a formatted message.
func ErrUnsupportedBackend(format string, args ...interface{}) *UnsupportedBackendError {
	return &UnsupportedBackendError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchemaMismatch creates a SchemaMismatchError with a formatted message.
func ErrSchemaMismatch(format string, args ...interface{}) *SchemaMismatchError {
	return &SchemaMismatchError{Message: fmt.Sprintf(format, args...)}
}

// ErrCompilation creates a CompilationError with a formatted message.
func ErrCompilation(format string, args ...interface{}) *CompilationError {
	return &CompilationError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupportedValue creates an UnsupportedValueError with a formatted message.
func ErrUnsupportedValue(format string, args ...interface{}) *UnsupportedValueError {
	return &UnsupportedValueError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

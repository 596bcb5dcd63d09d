// Package domain defines core types, interfaces, and errors for the query engine.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// SchemaError indicates a model or field missing from the schema catalog.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// FilterError indicates a malformed filter criterion.
type FilterError struct {
	Message string
}

func (e *FilterError) Error() string { return e.Message }

// CompilationError indicates a selection tree that cannot be compiled.
type CompilationError struct {
	Message string
}

func (e *CompilationError) Error() string { return e.Message }

// ConnectionError indicates the tenant database could not be reached.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string { return e.Message }

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecutionError indicates SQL rejected by the tenant database.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string { return e.Message }

func (e *ExecutionError) Unwrap() error { return e.Err }

// ExportError indicates the exported file could not be stored.
type ExportError struct {
	Message string
	Err     error
}

func (e *ExportError) Error() string { return e.Message }

func (e *ExportError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchema creates a SchemaError with a formatted message.
func ErrSchema(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ErrFilter creates a FilterError with a formatted message.
func ErrFilter(format string, args ...interface{}) *FilterError {
	return &FilterError{Message: fmt.Sprintf(format, args...)}
}

// ErrCompilation creates a CompilationError with a formatted message.
func ErrCompilation(format string, args ...interface{}) *CompilationError {
	return &CompilationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConnection wraps a driver error raised while opening a tenant connection.
func ErrConnection(err error, format string, args ...interface{}) *ConnectionError {
	return &ConnectionError{Message: withCause(fmt.Sprintf(format, args...), err), Err: err}
}

// ErrExecution wraps a driver error raised while running SQL.
func ErrExecution(err error, format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Message: withCause(fmt.Sprintf(format, args...), err), Err: err}
}

// ErrExport wraps a storage error raised while writing an export.
func ErrExport(err error, format string, args ...interface{}) *ExportError {
	return &ExportError{Message: withCause(fmt.Sprintf(format, args...), err), Err: err}
}

func withCause(msg string, err error) string {
	if err == nil {
		return msg
	}
	return msg + ": " + err.Error()
}

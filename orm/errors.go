package orm

import (
	"fmt"
	"reflect"

	"github.com/xraph/go-utils/errs"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeConfigurationConflict indicates a key bound twice to different values
	CodeConfigurationConflict = "CONFIGURATION_CONFLICT"

	// CodeConfigurationFrozen indicates a mutation of a frozen configuration
	CodeConfigurationFrozen = "CONFIGURATION_FROZEN"

	// CodeInvalidMapper indicates a type that cannot be used as a mapper
	CodeInvalidMapper = "INVALID_MAPPER"

	// CodeUnknownMapper indicates a mapper that is not part of the configuration
	CodeUnknownMapper = "UNKNOWN_MAPPER"

	// CodeSessionClosed indicates use of a closed session
	CodeSessionClosed = "SESSION_CLOSED"

	// CodeResultCount indicates a single-row select returned zero or several rows
	CodeResultCount = "RESULT_COUNT"

	// CodeStatementError indicates a statement failed to execute or map
	CodeStatementError = "STATEMENT_ERROR"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrConfigurationConflict is a sentinel for conflicting bindings (for error checking).
var ErrConfigurationConflict = errs.NewError(CodeConfigurationConflict, "configuration conflict", nil)

// ErrFrozen is returned when a frozen configuration is mutated.
var ErrFrozen = errs.NewError(CodeConfigurationFrozen, "configuration is frozen", nil)

// ErrInvalidMapper is a sentinel for invalid mapper types (for error checking).
var ErrInvalidMapper = errs.NewError(CodeInvalidMapper, "invalid mapper", nil)

// ErrUnknownMapper is a sentinel for mappers missing from the configuration.
var ErrUnknownMapper = errs.NewError(CodeUnknownMapper, "unknown mapper", nil)

// ErrSessionClosed is returned when a closed session is used.
var ErrSessionClosed = errs.NewError(CodeSessionClosed, "session is closed", nil)

// ErrResultCount is a sentinel for single-row selects with zero or several rows.
var ErrResultCount = errs.NewError(CodeResultCount, "unexpected number of rows", nil)

// ErrStatement is a sentinel for statement failures (for error checking).
var ErrStatement = errs.NewError(CodeStatementError, "statement failed", nil)

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// NewConflictError creates an error for a key already bound to a different value.
func NewConflictError(kind, key string, existing, incoming any) *errs.Error {
	return errs.NewError(
		CodeConfigurationConflict,
		fmt.Sprintf("%s '%s' is already bound to %v, cannot bind it to %v", kind, key, existing, incoming),
		nil,
	).WithContext("kind", kind).
		WithContext("key", key).(*errs.Error)
}

// NewMapperError creates an error for a type that is not a valid mapper.
func NewMapperError(t reflect.Type, reason string) *errs.Error {
	return errs.NewError(
		CodeInvalidMapper,
		fmt.Sprintf("type %v is not a valid mapper: %s", t, reason),
		nil,
	).WithContext("type", fmt.Sprint(t)).(*errs.Error)
}

// NewUnknownMapperError creates an error for a mapper missing from the configuration.
func NewUnknownMapperError(t reflect.Type) *errs.Error {
	return errs.NewError(
		CodeUnknownMapper,
		fmt.Sprintf("type %v is not known to the configuration", t),
		nil,
	).WithContext("type", fmt.Sprint(t)).(*errs.Error)
}

// NewResultCountError creates an error for a single-row select returning n rows.
func NewResultCountError(statement string, n int) *errs.Error {
	return errs.NewError(
		CodeResultCount,
		fmt.Sprintf("statement '%s' expected one row, got %d", statement, n),
		nil,
	).WithContext("statement", statement).
		WithContext("rows", n).(*errs.Error)
}

// NewStatementError creates an error for a failed statement.
func NewStatementError(statement, operation string, cause error) *errs.Error {
	return errs.NewError(
		CodeStatementError,
		fmt.Sprintf("statement '%s' failed during %s", statement, operation),
		cause,
	).WithContext("statement", statement).
		WithContext("operation", operation).(*errs.Error)
}

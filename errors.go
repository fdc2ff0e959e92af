package batis

import (
	"fmt"
	"reflect"

	"github.com/xraph/go-utils/errs"

	"github.com/xraph/batis/orm"
	"github.com/xraph/batis/scan"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeInvalidArgument indicates a nil, empty or ill-typed Binder argument
	CodeInvalidArgument = "INVALID_ARGUMENT"

	// CodeConstructionFailure indicates a managed object could not be built
	CodeConstructionFailure = "CONSTRUCTION_FAILURE"

	// CodeRegistryUnavailable indicates a Binder used after its registries were sealed
	CodeRegistryUnavailable = "REGISTRY_UNAVAILABLE"

	// CodeAlreadyInstalled indicates a Module installed twice
	CodeAlreadyInstalled = "ALREADY_INSTALLED"

	// CodeTypeMismatch indicates a binding resolved to an unexpected type
	CodeTypeMismatch = "TYPE_MISMATCH"

	// CodeUnresolvedScan indicates a namespace scan that could not complete
	CodeUnresolvedScan = scan.CodeUnresolvedScan

	// CodeConfigurationConflict indicates a key bound twice to different values
	CodeConfigurationConflict = orm.CodeConfigurationConflict
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrInvalidArgument is a sentinel for rejected Binder arguments (for error checking).
var ErrInvalidArgument = errs.NewError(CodeInvalidArgument, "invalid argument", nil)

// ErrConstructionFailure is a sentinel for failed construction (for error checking).
var ErrConstructionFailure = errs.NewError(CodeConstructionFailure, "construction failure", nil)

// ErrRegistryUnavailable is returned by every Binder mutation once the
// configure callback has returned.
var ErrRegistryUnavailable = errs.NewError(CodeRegistryUnavailable, "registries are sealed: bindings can only be added inside the configure callback", nil)

// ErrAlreadyInstalled is returned when a Module is installed a second time.
var ErrAlreadyInstalled = errs.NewError(CodeAlreadyInstalled, "module is already installed", nil)

// ErrTypeMismatch is a sentinel for bindings of an unexpected type.
var ErrTypeMismatch = errs.NewError(CodeTypeMismatch, "type mismatch", nil)

// ErrUnresolvedScan is a sentinel for failed namespace scans.
var ErrUnresolvedScan = scan.ErrUnresolvedScan

// ErrConfigurationConflict is a sentinel for conflicting bindings.
var ErrConfigurationConflict = orm.ErrConfigurationConflict

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// NewInvalidArgumentError creates an error for a rejected Binder argument.
func NewInvalidArgumentError(operation, reason string) *errs.Error {
	return errs.NewError(
		CodeInvalidArgument,
		fmt.Sprintf("%s: %s", operation, reason),
		nil,
	).WithContext("operation", operation).(*errs.Error)
}

// NewTypeArgumentError creates an error for a rejected type argument.
func NewTypeArgumentError(operation string, t reflect.Type, reason string) *errs.Error {
	return errs.NewError(
		CodeInvalidArgument,
		fmt.Sprintf("%s: type %v %s", operation, t, reason),
		nil,
	).WithContext("operation", operation).
		WithContext("type", fmt.Sprint(t)).(*errs.Error)
}

// NewConstructionError creates an error for a service that failed to build.
func NewConstructionError(service string, cause error) *errs.Error {
	return errs.NewError(
		CodeConstructionFailure,
		fmt.Sprintf("service '%s' could not be constructed", service),
		cause,
	).WithContext("service", service).(*errs.Error)
}

// NewTypeMismatchError creates an error for a binding of an unexpected type.
func NewTypeMismatchError(service, want, got string) *errs.Error {
	return errs.NewError(
		CodeTypeMismatch,
		fmt.Sprintf("service '%s' is %s, not %s", service, got, want),
		nil,
	).WithContext("service", service).(*errs.Error)
}

package scan

import (
	"fmt"

	"github.com/xraph/go-utils/errs"
)

// CodeUnresolvedScan indicates a namespace could not be scanned or a discovered
// type could not be loaded.
const CodeUnresolvedScan = "UNRESOLVED_SCAN"

// ErrUnresolvedScan is a sentinel for scan failures (for error checking).
var ErrUnresolvedScan = errs.NewError(CodeUnresolvedScan, "namespace cannot be scanned", nil)

// NewScanError creates an error for a namespace that cannot be scanned.
func NewScanError(namespace, reason string, cause error) *errs.Error {
	return errs.NewError(
		CodeUnresolvedScan,
		fmt.Sprintf("cannot scan namespace '%s': %s", namespace, reason),
		cause,
	).WithContext("namespace", namespace).(*errs.Error)
}

// NewLoadError creates an error for a discovered type that cannot be loaded.
func NewLoadError(namespace, typeName string) *errs.Error {
	return errs.NewError(
		CodeUnresolvedScan,
		fmt.Sprintf("type '%s' found in namespace '%s' cannot be loaded", typeName, namespace),
		nil,
	).WithContext("namespace", namespace).
		WithContext("type", typeName).(*errs.Error)
}

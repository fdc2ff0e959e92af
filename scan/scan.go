// Package scan finds the Go types that live in a namespace (an import path and
// the packages below it).
//
// Go keeps no runtime index of the types a package declares, so packages make
// their types discoverable by registering them in a Catalog, usually from an
// init function:
//
//	func init() {
//	    scan.Register(
//	        reflect.TypeOf(User{}),
//	        reflect.TypeOf(UserMapper{}),
//	    )
//	}
//
// A Scanner then answers "which types of namespace N satisfy predicate P".
package scan

import (
	"reflect"
	"strings"
)

// Scanner returns the set of types in a namespace that satisfy a predicate.
// No match is not an error; a namespace that cannot be resolved, or a
// discovered type that cannot be loaded, fails with ErrUnresolvedScan.
type Scanner interface {
	Scan(test Predicate, namespace string) ([]reflect.Type, error)
}

// Predicate is a boolean test over a candidate type.
type Predicate func(t reflect.Type) bool

// Any accepts every type.
func Any(reflect.Type) bool {
	return true
}

// IsA accepts types assignable to target. When target is an interface, a type
// is accepted if either the type or a pointer to it implements the interface.
func IsA(target reflect.Type) Predicate {
	return func(t reflect.Type) bool {
		if t == nil || target == nil {
			return false
		}

		if target.Kind() == reflect.Interface {
			if t.Implements(target) {
				return true
			}

			return t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(target)
		}

		return t.AssignableTo(target)
	}
}

// And accepts types accepted by every predicate.
func And(tests ...Predicate) Predicate {
	return func(t reflect.Type) bool {
		for _, test := range tests {
			if !test(t) {
				return false
			}
		}

		return true
	}
}

// Not inverts a predicate.
func Not(test Predicate) Predicate {
	return func(t reflect.Type) bool {
		return !test(t)
	}
}

// NameHasSuffix accepts named types whose name ends with suffix.
func NameHasSuffix(suffix string) Predicate {
	return func(t reflect.Type) bool {
		return t.Name() != "" && strings.HasSuffix(t.Name(), suffix)
	}
}

// inNamespace reports whether pkgPath is namespace or a package below it.
func inNamespace(pkgPath, namespace string) bool {
	if pkgPath == namespace {
		return true
	}

	return strings.HasPrefix(pkgPath, namespace+"/")
}

// qualifiedName returns pkgPath.Name for a named type.
func qualifiedName(t reflect.Type) string {
	return t.PkgPath() + "." + t.Name()
}

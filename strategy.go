package batis

import (
	"fmt"
	"reflect"

	"github.com/xraph/vessel"
)

type strategyKind int

const (
	strategyUnset strategyKind = iota
	strategyValue
	strategyFactory
	strategyType
)

// Strategy selects how a pluggable collaborator (data source, transaction
// factory, object factory) is obtained. It carries exactly one of a ready
// value, a factory receiving the container, or a type that is instantiated
// from its zero value. The zero Strategy selects nothing and is rejected by
// the Binder.
type Strategy[T any] struct {
	kind    strategyKind
	value   T
	factory func(vessel.Vessel) (T, error)
	typ     reflect.Type
}

// StrategyValue selects a ready value.
func StrategyValue[T any](v T) Strategy[T] {
	return Strategy[T]{kind: strategyValue, value: v}
}

// StrategyFactory selects a factory run once, at assembly.
func StrategyFactory[T any](factory func(vessel.Vessel) (T, error)) Strategy[T] {
	return Strategy[T]{kind: strategyFactory, factory: factory}
}

// StrategyType selects a type whose zero value (or a pointer to it) is a T.
func StrategyType[T any](t reflect.Type) Strategy[T] {
	return Strategy[T]{kind: strategyType, typ: t}
}

// IsZero reports whether s selects nothing.
func (s Strategy[T]) IsZero() bool {
	return s.kind == strategyUnset
}

// String describes the selection for logs.
func (s Strategy[T]) String() string {
	switch s.kind {
	case strategyValue:
		return fmt.Sprintf("value(%T)", s.value)
	case strategyFactory:
		return "factory"
	case strategyType:
		return fmt.Sprintf("type(%v)", s.typ)
	}

	return "unset"
}

// validate checks the selection without building anything.
func (s Strategy[T]) validate() error {
	switch s.kind {
	case strategyValue:
		if isNil(reflect.ValueOf(&s.value).Elem()) {
			return fmt.Errorf("strategy value is nil")
		}
	case strategyFactory:
		if s.factory == nil {
			return fmt.Errorf("strategy factory is nil")
		}
	case strategyType:
		if s.typ == nil {
			return fmt.Errorf("strategy type is nil")
		}

		if _, ok := implementation(s.typ, TypeOf[T]()); !ok {
			return fmt.Errorf("type %v does not implement %v", s.typ, TypeOf[T]())
		}
	default:
		return fmt.Errorf("no strategy selected")
	}

	return nil
}

// resolve builds the selected collaborator.
func (s Strategy[T]) resolve(c vessel.Vessel) (T, error) {
	switch s.kind {
	case strategyValue:
		return s.value, nil
	case strategyFactory:
		return s.factory(c)
	case strategyType:
		return instantiate[T](s.typ)
	}

	var zero T

	return zero, fmt.Errorf("no strategy selected")
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}

	return false
}

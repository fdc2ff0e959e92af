package batis

import (
	"fmt"
	"reflect"
)

// implementation returns the type to construct so that the result is a
// target: t itself, or a pointer to t when only the pointer qualifies.
func implementation(t, target reflect.Type) (reflect.Type, bool) {
	if t == nil || target == nil {
		return nil, false
	}

	qualifies := func(candidate reflect.Type) bool {
		if target.Kind() == reflect.Interface {
			return candidate.Implements(target)
		}

		return candidate.AssignableTo(target)
	}

	if qualifies(t) {
		return t, true
	}

	if t.Kind() != reflect.Pointer && qualifies(reflect.PointerTo(t)) {
		return reflect.PointerTo(t), true
	}

	return nil, false
}

// instantiate builds a T from the zero value of t. Pointer types get a
// freshly allocated element.
func instantiate[T any](t reflect.Type) (T, error) {
	var zero T

	impl, ok := implementation(t, TypeOf[T]())
	if !ok {
		return zero, fmt.Errorf("type %v does not implement %v", t, TypeOf[T]())
	}

	if impl.Kind() == reflect.Interface {
		return zero, fmt.Errorf("cannot instantiate interface type %v", impl)
	}

	var v reflect.Value
	if impl.Kind() == reflect.Pointer {
		v = reflect.New(impl.Elem())
	} else {
		v = reflect.New(impl).Elem()
	}

	instance, ok := v.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("type %v does not implement %v", t, TypeOf[T]())
	}

	return instance, nil
}

package orm

import (
	"fmt"
	"reflect"
)

// ObjectFactory creates the instances results are mapped into.
type ObjectFactory interface {
	// Create returns a settable value of type t.
	Create(t reflect.Type) (reflect.Value, error)
}

// DefaultObjectFactory creates zero values, allocating pointers, maps and
// slices so they are ready to be filled.
type DefaultObjectFactory struct{}

// Create implements ObjectFactory.
func (DefaultObjectFactory) Create(t reflect.Type) (reflect.Value, error) {
	if t == nil {
		return reflect.Value{}, fmt.Errorf("object factory: nil type")
	}

	v := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.Pointer:
		v.Set(reflect.New(t.Elem()))
	case reflect.Map:
		v.Set(reflect.MakeMap(t))
	case reflect.Slice:
		v.Set(reflect.MakeSlice(t, 0, 0))
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return reflect.Value{}, fmt.Errorf("object factory: cannot create %v", t)
	}

	return v, nil
}

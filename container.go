package batis

import (
	"fmt"

	"github.com/xraph/go-utils/di"
	"github.com/xraph/vessel"
)

// ServiceKey identifies a container binding together with the type it
// resolves to.
type ServiceKey[T any] struct {
	name string
}

// NewServiceKey creates a typed key.
//
// Example:
//
//	var AuditKey = batis.NewServiceKey[*Audit]("app.audit")
func NewServiceKey[T any](name string) ServiceKey[T] {
	return ServiceKey[T]{name: name}
}

// Name returns the binding name of the key.
func (k ServiceKey[T]) Name() string {
	return k.name
}

// RegisterWithKey registers a typed factory under key.
func RegisterWithKey[T any](c vessel.Vessel, key ServiceKey[T], factory func(vessel.Vessel) (T, error), opts ...di.RegisterOption) error {
	return c.Register(key.name, func(c vessel.Vessel) (any, error) {
		return factory(c)
	}, opts...)
}

// ResolveWithKey resolves key and checks the instance type.
func ResolveWithKey[T any](c vessel.Vessel, key ServiceKey[T]) (T, error) {
	return resolveAs[T](c, key.name)
}

// resolveAs resolves name with type safety.
func resolveAs[T any](c vessel.Vessel, name string) (T, error) {
	var zero T

	instance, err := c.Resolve(name)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, NewTypeMismatchError(name, fmt.Sprintf("%T", zero), fmt.Sprintf("%T", instance))
	}

	return typed, nil
}

// registerSingleton registers a singleton factory under name.
func registerSingleton(c vessel.Vessel, name string, factory func(vessel.Vessel) (any, error), opts ...di.RegisterOption) error {
	return c.Register(name, factory, append([]di.RegisterOption{di.Singleton()}, opts...)...)
}

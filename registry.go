package batis

import (
	"reflect"
	"sync"
)

// Alias binds a short name to a type.
type Alias struct {
	Name string
	Type reflect.Type
}

// TypeHandlerRegistration binds a handled type to the type of its handler.
type TypeHandlerRegistration struct {
	HandledType reflect.Type
	HandlerType reflect.Type
}

// Registries is a snapshot of what a configure callback registered, in
// registration order.
type Registries struct {
	Aliases      []Alias
	TypeHandlers []TypeHandlerRegistration
	Interceptors []reflect.Type
	Mappers      []reflect.Type
}

// registry is an ordered set that accepts entries until it is sealed.
// Adding an entry twice keeps the first.
type registry[T comparable] struct {
	entries []T
	index   map[T]struct{}
	sealed  bool
	mu      sync.RWMutex
}

// newRegistry creates an open registry
func newRegistry[T comparable]() *registry[T] {
	return &registry[T]{
		index: make(map[T]struct{}),
	}
}

// add appends v unless it is already present. It reports whether v was new.
func (r *registry[T]) add(v T) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return false, ErrRegistryUnavailable
	}

	if _, exists := r.index[v]; exists {
		return false, nil
	}

	r.index[v] = struct{}{}
	r.entries = append(r.entries, v)

	return true, nil
}

// seal makes the registry read-only.
func (r *registry[T]) seal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sealed = true
}

// list returns a copy of the entries in insertion order.
func (r *registry[T]) list() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]T(nil), r.entries...)
}

// registries groups the four binding registries of a module.
type registries struct {
	aliases      *registry[Alias]
	typeHandlers *registry[TypeHandlerRegistration]
	interceptors *registry[reflect.Type]
	mappers      *registry[reflect.Type]
}

func newRegistries() *registries {
	return &registries{
		aliases:      newRegistry[Alias](),
		typeHandlers: newRegistry[TypeHandlerRegistration](),
		interceptors: newRegistry[reflect.Type](),
		mappers:      newRegistry[reflect.Type](),
	}
}

// seal seals all registries together.
func (r *registries) seal() {
	r.aliases.seal()
	r.typeHandlers.seal()
	r.interceptors.seal()
	r.mappers.seal()
}

func (r *registries) snapshot() Registries {
	return Registries{
		Aliases:      r.aliases.list(),
		TypeHandlers: r.typeHandlers.list(),
		Interceptors: r.interceptors.list(),
		Mappers:      r.mappers.list(),
	}
}

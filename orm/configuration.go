// Package orm is the contract of the SQL mapping engine the batis module
// assembles: an immutable Configuration, the SessionFactory built from it,
// sessions running plain SQL through database/sql, and mapper proxies.
//
// Statements are written by hand; the package maps rows to values and runs
// interceptors, type handlers and the object factory around them.
package orm

import (
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Configuration holds everything a SessionFactory needs. It is mutable until
// Freeze is called; afterwards every mutation fails with ErrFrozen and the
// configuration is safe for concurrent reads.
type Configuration struct {
	environment   *Environment
	aliases       map[string]reflect.Type
	handlers      map[reflect.Type]TypeHandler
	interceptors  []Interceptor
	mappers       map[reflect.Type]*mapperInfo
	mapperOrder   []reflect.Type
	objectFactory ObjectFactory
	frozen        bool
}

// builtinAliases are registered in every configuration.
var builtinAliases = map[string]reflect.Type{
	"string":  reflect.TypeOf(""),
	"bool":    reflect.TypeOf(false),
	"int":     reflect.TypeOf(int(0)),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"float32": reflect.TypeOf(float32(0)),
	"float64": reflect.TypeOf(float64(0)),
	"bytes":   reflect.TypeOf([]byte(nil)),
	"time":    reflect.TypeOf(time.Time{}),
	"map":     reflect.TypeOf(map[string]any(nil)),
}

// NewConfiguration creates a configuration bound to env.
func NewConfiguration(env *Environment) *Configuration {
	aliases := make(map[string]reflect.Type, len(builtinAliases))
	for name, t := range builtinAliases {
		aliases[name] = t
	}

	return &Configuration{
		environment:   env,
		aliases:       aliases,
		handlers:      make(map[reflect.Type]TypeHandler),
		mappers:       make(map[reflect.Type]*mapperInfo),
		objectFactory: DefaultObjectFactory{},
	}
}

// AddTypeAlias binds name to t. Re-binding the same type is a no-op; binding
// an existing name to a different type is a conflict.
func (c *Configuration) AddTypeAlias(name string, t reflect.Type) error {
	if c.frozen {
		return ErrFrozen
	}

	if name == "" || t == nil {
		return fmt.Errorf("type alias requires a name and a type")
	}

	if existing, ok := c.aliases[name]; ok {
		if existing == t {
			return nil
		}

		return NewConflictError("alias", name, existing, t)
	}

	c.aliases[name] = t

	return nil
}

// AddTypeHandler registers h for values of type t.
func (c *Configuration) AddTypeHandler(t reflect.Type, h TypeHandler) error {
	if c.frozen {
		return ErrFrozen
	}

	if t == nil || h == nil {
		return fmt.Errorf("type handler requires a type and a handler")
	}

	if existing, ok := c.handlers[t]; ok {
		if reflect.TypeOf(existing) == reflect.TypeOf(h) {
			return nil
		}

		return NewConflictError("type handler", t.String(), reflect.TypeOf(existing), reflect.TypeOf(h))
	}

	c.handlers[t] = h

	return nil
}

// AddInterceptor appends i to the interceptor chain.
func (c *Configuration) AddInterceptor(i Interceptor) error {
	if c.frozen {
		return ErrFrozen
	}

	if i == nil {
		return fmt.Errorf("interceptor must not be nil")
	}

	c.interceptors = append(c.interceptors, i)

	return nil
}

// AddMapper validates and registers a mapper type. Adding the same mapper
// twice is a no-op.
func (c *Configuration) AddMapper(t reflect.Type) error {
	if c.frozen {
		return ErrFrozen
	}

	info, err := analyzeMapper(t)
	if err != nil {
		return err
	}

	if _, exists := c.mappers[info.typ]; exists {
		return nil
	}

	c.mappers[info.typ] = info
	c.mapperOrder = append(c.mapperOrder, info.typ)

	return nil
}

// SetObjectFactory replaces the object factory.
func (c *Configuration) SetObjectFactory(f ObjectFactory) error {
	if c.frozen {
		return ErrFrozen
	}

	if f == nil {
		return fmt.Errorf("object factory must not be nil")
	}

	c.objectFactory = f

	return nil
}

// Freeze makes the configuration read-only.
func (c *Configuration) Freeze() {
	c.frozen = true
}

// Frozen reports whether Freeze was called.
func (c *Configuration) Frozen() bool {
	return c.frozen
}

// Environment returns the environment.
func (c *Configuration) Environment() *Environment {
	return c.environment
}

// TypeAlias returns the type bound to name.
func (c *Configuration) TypeAlias(name string) (reflect.Type, bool) {
	t, ok := c.aliases[name]

	return t, ok
}

// TypeAliases returns a copy of the alias table.
func (c *Configuration) TypeAliases() map[string]reflect.Type {
	out := make(map[string]reflect.Type, len(c.aliases))
	for name, t := range c.aliases {
		out[name] = t
	}

	return out
}

// TypeHandler returns the handler registered for t.
func (c *Configuration) TypeHandler(t reflect.Type) (TypeHandler, bool) {
	h, ok := c.handlers[t]

	return h, ok
}

// TypeHandlers returns the handled types, sorted by name.
func (c *Configuration) TypeHandlers() []reflect.Type {
	out := make([]reflect.Type, 0, len(c.handlers))
	for t := range c.handlers {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	return out
}

// Interceptors returns the interceptors in chain order.
func (c *Configuration) Interceptors() []Interceptor {
	return append([]Interceptor(nil), c.interceptors...)
}

// Mappers returns the mapper types in registration order.
func (c *Configuration) Mappers() []reflect.Type {
	return append([]reflect.Type(nil), c.mapperOrder...)
}

// HasMapper reports whether t (or the struct t points to) is a registered mapper.
func (c *Configuration) HasMapper(t reflect.Type) bool {
	_, ok := c.mapper(t)

	return ok
}

// ObjectFactory returns the object factory.
func (c *Configuration) ObjectFactory() ObjectFactory {
	return c.objectFactory
}

func (c *Configuration) mapper(t reflect.Type) (*mapperInfo, bool) {
	if t == nil {
		return nil, false
	}

	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	info, ok := c.mappers[t]

	return info, ok
}

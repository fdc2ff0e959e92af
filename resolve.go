package batis

import (
	"context"
	"fmt"

	"github.com/xraph/vessel"

	"github.com/xraph/batis/orm"
)

// ResolveMapper resolves the proxy bound for mapper type T.
func ResolveMapper[T any](c vessel.Vessel) (*T, error) {
	return ResolveWithKey(c, MapperKey[T]())
}

// MustMapper resolves a mapper or panics - use only during startup.
func MustMapper[T any](c vessel.Vessel) *T {
	mapper, err := ResolveMapper[T](c)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve mapper %v: %v", TypeOf[T](), err))
	}

	return mapper
}

// SessionFactoryFrom resolves the session factory bound by an installed Module.
func SessionFactoryFrom(c vessel.Vessel) (*orm.SessionFactory, error) {
	return ResolveWithKey(c, SessionFactoryKey)
}

// ConfigurationFrom resolves the configuration bound by an installed Module.
func ConfigurationFrom(c vessel.Vessel) (*orm.Configuration, error) {
	return ResolveWithKey(c, ConfigurationKey)
}

// EnvironmentFrom resolves the environment bound by an installed Module.
func EnvironmentFrom(c vessel.Vessel) (*orm.Environment, error) {
	return ResolveWithKey(c, EnvironmentKey)
}

// OpenSession opens a session on the container's session factory.
func OpenSession(ctx context.Context, c vessel.Vessel, opts ...orm.SessionOption) (*orm.Session, error) {
	sf, err := SessionFactoryFrom(c)
	if err != nil {
		return nil, err
	}

	return sf.OpenSession(ctx, opts...)
}

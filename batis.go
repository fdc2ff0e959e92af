// Package batis registers a SQL mapping engine into a vessel dependency
// injection container.
//
// A Module is created with a configure callback that declares, through a
// Binder, the type aliases, type handlers, interceptors and mappers of the
// engine. Installing the module runs the callback once, seals what it
// declared and registers singleton bindings for the environment, the
// configuration, the session factory and every mapper:
//
//	c := vessel.New()
//
//	m := batis.NewModule(func(b *batis.Binder) error {
//	    if err := b.AddSimpleAliases(reflect.TypeOf(User{})); err != nil {
//	        return err
//	    }
//	    return b.AddMapperClasses(reflect.TypeOf(UserMapper{}))
//	}, batis.WithConfig(batis.Config{
//	    DataSource: datasource.Settings{DSN: "file:app.db"},
//	}))
//
//	if err := m.Install(c); err != nil {
//	    log.Fatal(err)
//	}
//
//	users, err := batis.ResolveMapper[UserMapper](c)
//
// Nothing is built during Install. The configuration is assembled the first
// time it, the session factory or a mapper is resolved, exactly once, and a
// failure is reported to every later caller without being retried.
package batis

import "reflect"

// TypeOf returns the reflect.Type of T. It is handy for interface types:
//
//	b.AddInterceptorsClasses(batis.TypeOf[*AuditInterceptor]())
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

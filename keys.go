package batis

import (
	"database/sql"
	"reflect"


	"github.com/xraph/batis/orm"
)

// Fixed container keys. Every binding is a singleton.
var (
	// DataSourceKey is the *sql.DB built by the data source strategy.
	DataSourceKey = NewServiceKey[*sql.DB]("batis.datasource")

	// TransactionFactoryKey is the transaction factory strategy.
	TransactionFactoryKey = NewServiceKey[orm.TransactionFactory]("batis.transaction_factory")

	// ObjectFactoryKey is the object factory strategy.
	ObjectFactoryKey = NewServiceKey[orm.ObjectFactory]("batis.object_factory")

	// EnvironmentKey is the environment the configuration is bound to.
	EnvironmentKey = NewServiceKey[*orm.Environment]("batis.environment")

	// ConfigurationKey is the assembled, frozen configuration.
	ConfigurationKey = NewServiceKey[*orm.Configuration]("batis.configuration")

	// SessionFactoryKey is the session factory.
	SessionFactoryKey = NewServiceKey[*orm.SessionFactory]("batis.session_factory")
)

// Container groups holding the per-type bindings.
const (
	MappersGroup      = "batis.mappers"
	InterceptorsGroup = "batis.interceptors"
	TypeHandlersGroup = "batis.typehandlers"
)

// MapperKey returns the key of the proxy bound for mapper type T.
//
// Example:
//
//	users, err := batis.ResolveWithKey(c, batis.MapperKey[UserMapper]())
func MapperKey[T any]() ServiceKey[*T] {
	return NewServiceKey[*T](mapperServiceName(reflect.TypeOf((*T)(nil)).Elem()))
}

func mapperServiceName(t reflect.Type) string {
	return "batis.mapper/" + typeName(t)
}

func interceptorServiceName(t reflect.Type) string {
	return "batis.interceptor/" + typeName(t)
}

func typeHandlerServiceName(t reflect.Type) string {
	return "batis.typehandler/" + typeName(t)
}

// typeName is the package-qualified name of t, pointers removed.
func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.PkgPath() == "" {
		return t.String()
	}

	return t.PkgPath() + "." + t.Name()
}

package batis

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/batis/internal/testmodels"
)

func TestMapperKey(t *testing.T) {
	key := MapperKey[testmodels.UserMapper]()
	assert.Equal(t, "batis.mapper/github.com/xraph/batis/internal/testmodels.UserMapper", key.Name())
	assert.Equal(t, mapperServiceName(reflect.TypeOf(&testmodels.UserMapper{})), key.Name())
}

func TestServiceNames(t *testing.T) {
	audit := reflect.TypeOf(testmodels.AuditInterceptor{})

	assert.Equal(t, "batis.interceptor/github.com/xraph/batis/internal/testmodels.AuditInterceptor", interceptorServiceName(audit))
	assert.Equal(t, interceptorServiceName(audit), interceptorServiceName(reflect.PointerTo(audit)))
	assert.Equal(t, "batis.typehandler/github.com/xraph/batis.upperHandler", typeHandlerServiceName(reflect.TypeOf(upperHandler{})))
	assert.Equal(t, "[]string", typeName(reflect.TypeOf([]string{})))
}

func TestFixedKeys(t *testing.T) {
	names := map[string]bool{}
	for _, name := range []string{
		DataSourceKey.Name(),
		TransactionFactoryKey.Name(),
		ObjectFactoryKey.Name(),
		EnvironmentKey.Name(),
		ConfigurationKey.Name(),
		SessionFactoryKey.Name(),
	} {
		assert.False(t, names[name], "duplicate key %s", name)
		names[name] = true
	}
}

package orm

import (
	"database/sql/driver"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   int64
	Name string
}

type gadget struct {
	ID int64
}

type upperHandler struct{}

func (upperHandler) ToDriver(v any) (driver.Value, error) { return v, nil }
func (upperHandler) FromDriver(src any) (any, error)      { return src, nil }

type lowerHandler struct{}

func (lowerHandler) ToDriver(v any) (driver.Value, error) { return v, nil }
func (lowerHandler) FromDriver(src any) (any, error)      { return src, nil }

func TestConfiguration_BuiltinAliases(t *testing.T) {
	cfg := NewConfiguration(nil)

	for name, want := range builtinAliases {
		got, ok := cfg.TypeAlias(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestConfiguration_AddTypeAlias(t *testing.T) {
	cfg := NewConfiguration(nil)
	widgetType := reflect.TypeOf(widget{})

	require.NoError(t, cfg.AddTypeAlias("Widget", widgetType))

	// Identical re-registration is a no-op
	require.NoError(t, cfg.AddTypeAlias("Widget", widgetType))

	got, ok := cfg.TypeAlias("Widget")
	require.True(t, ok)
	assert.Equal(t, widgetType, got)

	err := cfg.AddTypeAlias("Widget", reflect.TypeOf(gadget{}))
	assert.ErrorIs(t, err, ErrConfigurationConflict)

	// Built-in names are taken too
	err = cfg.AddTypeAlias("string", widgetType)
	assert.ErrorIs(t, err, ErrConfigurationConflict)

	assert.Error(t, cfg.AddTypeAlias("", widgetType))
	assert.Error(t, cfg.AddTypeAlias("Nil", nil))
}

func TestConfiguration_TypeAliasesIsCopy(t *testing.T) {
	cfg := NewConfiguration(nil)

	aliases := cfg.TypeAliases()
	aliases["Widget"] = reflect.TypeOf(widget{})

	_, ok := cfg.TypeAlias("Widget")
	assert.False(t, ok)
}

func TestConfiguration_AddTypeHandler(t *testing.T) {
	cfg := NewConfiguration(nil)
	widgetType := reflect.TypeOf(widget{})

	require.NoError(t, cfg.AddTypeHandler(widgetType, upperHandler{}))
	require.NoError(t, cfg.AddTypeHandler(widgetType, upperHandler{}))

	err := cfg.AddTypeHandler(widgetType, lowerHandler{})
	assert.ErrorIs(t, err, ErrConfigurationConflict)

	h, ok := cfg.TypeHandler(widgetType)
	require.True(t, ok)
	assert.IsType(t, upperHandler{}, h)

	require.NoError(t, cfg.AddTypeHandler(reflect.TypeOf(gadget{}), lowerHandler{}))
	assert.Equal(t, []reflect.Type{reflect.TypeOf(gadget{}), widgetType}, cfg.TypeHandlers())
}

func TestConfiguration_AddMapper(t *testing.T) {
	cfg := NewConfiguration(nil)

	require.NoError(t, cfg.AddMapper(reflect.TypeOf(widgetMapper{})))
	require.NoError(t, cfg.AddMapper(reflect.TypeOf(&widgetMapper{})), "pointer to a known mapper is a duplicate")
	require.NoError(t, cfg.AddMapper(reflect.TypeOf(aliasMapper{})))

	assert.Equal(t, []reflect.Type{
		reflect.TypeOf(widgetMapper{}),
		reflect.TypeOf(aliasMapper{}),
	}, cfg.Mappers())

	assert.True(t, cfg.HasMapper(reflect.TypeOf(&widgetMapper{})))
	assert.False(t, cfg.HasMapper(reflect.TypeOf(widget{})))
	assert.False(t, cfg.HasMapper(nil))

	err := cfg.AddMapper(reflect.TypeOf(widget{}))
	assert.ErrorIs(t, err, ErrInvalidMapper)
}

func TestConfiguration_Freeze(t *testing.T) {
	cfg := NewConfiguration(nil)
	cfg.Freeze()

	assert.True(t, cfg.Frozen())
	assert.ErrorIs(t, cfg.AddTypeAlias("Widget", reflect.TypeOf(widget{})), ErrFrozen)
	assert.ErrorIs(t, cfg.AddTypeHandler(reflect.TypeOf(widget{}), upperHandler{}), ErrFrozen)
	assert.ErrorIs(t, cfg.AddMapper(reflect.TypeOf(widgetMapper{})), ErrFrozen)
	assert.ErrorIs(t, cfg.SetObjectFactory(DefaultObjectFactory{}), ErrFrozen)
	assert.ErrorIs(t, cfg.AddInterceptor(InterceptorFunc(nil)), ErrFrozen)
}

func TestConfiguration_Interceptors(t *testing.T) {
	cfg := NewConfiguration(nil)

	var calls []string
	first := recordingInterceptor("first", &calls)
	second := recordingInterceptor("second", &calls)

	require.NoError(t, cfg.AddInterceptor(first))
	require.NoError(t, cfg.AddInterceptor(second))
	assert.Error(t, cfg.AddInterceptor(nil))

	assert.Len(t, cfg.Interceptors(), 2)
}

func TestDefaultObjectFactory(t *testing.T) {
	f := DefaultObjectFactory{}

	v, err := f.Create(reflect.TypeOf(&widget{}))
	require.NoError(t, err)
	assert.False(t, v.IsNil())

	v, err = f.Create(reflect.TypeOf(map[string]any{}))
	require.NoError(t, err)
	assert.False(t, v.IsNil())

	v, err = f.Create(reflect.TypeOf(widget{}))
	require.NoError(t, err)
	assert.True(t, v.CanSet())

	_, err = f.Create(reflect.TypeOf((*Interceptor)(nil)).Elem())
	assert.Error(t, err)

	_, err = f.Create(nil)
	assert.Error(t, err)
}

package batis

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/vessel"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xraph/batis/datasource"
	"github.com/xraph/batis/interceptors"
	"github.com/xraph/batis/internal/testmodels"
	"github.com/xraph/batis/orm"
)

const testNamespace = "github.com/xraph/batis/internal/testmodels"

func testConfig(t *testing.T) Config {
	t.Helper()

	return Config{
		EnvironmentID: "test",
		DataSource: datasource.Settings{
			DSN: filepath.Join(t.TempDir(), "batis.db"),
		},
	}
}

// installModule installs a module over a fresh container and sqlite file.
func installModule(t *testing.T, configure func(*Binder) error, opts ...Option) (*Module, vessel.Vessel) {
	t.Helper()

	c := vessel.New()
	m := NewModule(configure, append([]Option{WithConfig(testConfig(t))}, opts...)...)
	require.NoError(t, m.Install(c))

	t.Cleanup(func() {
		if env, err := EnvironmentFrom(c); err == nil {
			_ = env.Close()
		}
	})

	return m, c
}

func TestModule_Install(t *testing.T) {
	m, c := installModule(t, nil)

	assert.True(t, m.Installed())
	assert.True(t, c.Has(DataSourceKey.Name()))
	assert.True(t, c.Has(TransactionFactoryKey.Name()))
	assert.True(t, c.Has(ObjectFactoryKey.Name()))
	assert.True(t, c.Has(EnvironmentKey.Name()))
	assert.True(t, c.Has(ConfigurationKey.Name()))
	assert.True(t, c.Has(SessionFactoryKey.Name()))
	assert.Equal(t, "batis.Module{environment=test aliases=0 type_handlers=0 interceptors=0 mappers=0}", m.String())
}

func TestModule_InstallTwice(t *testing.T) {
	m, c := installModule(t, nil)

	err := m.Install(c)
	assert.ErrorIs(t, err, ErrAlreadyInstalled)

	err = m.Install(vessel.New())
	assert.ErrorIs(t, err, ErrAlreadyInstalled)
}

func TestModule_InstallNilContainer(t *testing.T) {
	m := NewModule(nil)

	err := m.Install(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, m.Installed())
}

func TestModule_InstallNameClash(t *testing.T) {
	c := vessel.New()
	taken := mapperServiceName(reflect.TypeOf(testmodels.UserMapper{}))
	require.NoError(t, registerSingleton(c, taken, func(vessel.Vessel) (any, error) {
		return "occupied", nil
	}))

	m := NewModule(func(b *Binder) error {
		return b.AddMapperClasses(reflect.TypeOf(testmodels.UserMapper{}))
	}, WithConfig(testConfig(t)))

	err := m.Install(c)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorContains(t, err, taken)

	for _, name := range []string{DataSourceKey.Name(), EnvironmentKey.Name(), SessionFactoryKey.Name()} {
		assert.False(t, c.Has(name), "%s registered after a failed install", name)
	}
}

func TestModule_NotInstalled(t *testing.T) {
	m := NewModule(nil)

	_, err := m.Configuration(vessel.New())
	assert.ErrorIs(t, err, ErrConstructionFailure)

	_, err = m.SessionFactory(vessel.New())
	assert.ErrorIs(t, err, ErrConstructionFailure)
}

func TestModule_ConfigurationIsShared(t *testing.T) {
	m, c := installModule(t, func(b *Binder) error {
		return b.AddSimpleAliases(reflect.TypeOf(testmodels.User{}))
	})

	cfg, err := m.Configuration(c)
	require.NoError(t, err)
	assert.True(t, cfg.Frozen())
	assert.Equal(t, "test", cfg.Environment().ID())

	again, err := ConfigurationFrom(c)
	require.NoError(t, err)
	assert.Same(t, cfg, again)

	sf, err := m.SessionFactory(c)
	require.NoError(t, err)
	assert.Same(t, cfg, sf.Configuration())

	resolved, err := SessionFactoryFrom(c)
	require.NoError(t, err)
	assert.Same(t, sf, resolved)

	alias, ok := cfg.TypeAlias("User")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(testmodels.User{}), alias)
}

func TestModule_MapperEndToEnd(t *testing.T) {
	_, c := installModule(t, func(b *Binder) error {
		if err := b.AddInterceptorsClasses(reflect.TypeOf(testmodels.AuditInterceptor{})); err != nil {
			return err
		}

		return b.AddMapperClasses(reflect.TypeOf(testmodels.UserMapper{}))
	})

	ctx := context.Background()
	users := MustMapper[testmodels.UserMapper](c)

	require.NoError(t, users.CreateTable(ctx))

	affected, err := users.Insert(ctx, "ada", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = users.Insert(ctx, "grace", "grace@example.com")
	require.NoError(t, err)

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	user, err := users.FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)

	missing, err := users.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := users.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "grace", all[1].Name)

	again, err := ResolveMapper[testmodels.UserMapper](c)
	require.NoError(t, err)
	assert.Same(t, users, again)

	instance, err := c.Resolve(interceptorServiceName(reflect.TypeOf(testmodels.AuditInterceptor{})))
	require.NoError(t, err)

	audit, ok := instance.(*testmodels.AuditInterceptor)
	require.True(t, ok)
	assert.Contains(t, audit.Seen, "UserMapper.Insert")
	assert.Contains(t, audit.Seen, "UserMapper.FindAll")
}

func TestModule_OpenSession(t *testing.T) {
	_, c := installModule(t, func(b *Binder) error {
		return b.AddMapperClasses(reflect.TypeOf(testmodels.UserMapper{}))
	})

	ctx := context.Background()
	users := MustMapper[testmodels.UserMapper](c)
	require.NoError(t, users.CreateTable(ctx))

	s, err := OpenSession(ctx, c)
	require.NoError(t, err)

	_, err = users.Insert(orm.WithSession(ctx, s), "ada", "")
	require.NoError(t, err)
	require.NoError(t, s.Rollback())
	require.NoError(t, s.Close())

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestModule_UnboundMapper(t *testing.T) {
	_, c := installModule(t, nil)

	_, err := ResolveMapper[testmodels.UserMapper](c)
	assert.Error(t, err)

	assert.Panics(t, func() {
		MustMapper[testmodels.AccountMapper](c)
	})
}

func TestModule_RegistriesSealedAfterConfigure(t *testing.T) {
	var captured *Binder

	_, _ = installModule(t, func(b *Binder) error {
		captured = b

		return b.AddSimpleAliases(reflect.TypeOf(testmodels.User{}))
	})

	require.NotNil(t, captured)
	assertSealed(t, captured)
}

func TestModule_RegistriesSealedOnError(t *testing.T) {
	var captured *Binder

	boom := errors.New("boom")
	m := NewModule(func(b *Binder) error {
		captured = b

		return boom
	}, WithConfig(testConfig(t)))

	c := vessel.New()
	err := m.Install(c)
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Has(ConfigurationKey.Name()), "nothing is bound on failure")

	assertSealed(t, captured)
}

func TestModule_RegistriesSealedOnPanic(t *testing.T) {
	var captured *Binder

	m := NewModule(func(b *Binder) error {
		captured = b

		panic("configure exploded")
	})

	assert.PanicsWithValue(t, "configure exploded", func() {
		_ = m.Install(vessel.New())
	})

	assertSealed(t, captured)
}

func assertSealed(t *testing.T, b *Binder) {
	t.Helper()

	assert.ErrorIs(t, b.AddAlias("Late").To(reflect.TypeOf(testmodels.Account{})), ErrRegistryUnavailable)
	assert.ErrorIs(t, b.AddSimpleAliases(reflect.TypeOf(testmodels.Account{})), ErrRegistryUnavailable)
	assert.ErrorIs(t, b.HandleType(reflect.TypeOf("")).With(reflect.TypeOf(upperHandler{})), ErrRegistryUnavailable)
	assert.ErrorIs(t, b.AddInterceptorsClasses(reflect.TypeOf(testmodels.AuditInterceptor{})), ErrRegistryUnavailable)
	assert.ErrorIs(t, b.AddMapperClasses(reflect.TypeOf(testmodels.AccountMapper{})), ErrRegistryUnavailable)
	assert.ErrorIs(t, b.AddMapperClassesIn(testNamespace), ErrRegistryUnavailable)
	assert.ErrorIs(t, b.SetObjectFactory(StrategyValue[orm.ObjectFactory](orm.DefaultObjectFactory{})), ErrRegistryUnavailable)

	assert.NoError(t, b.Err(), "sealed registries are not recorded as binder errors")
}

func TestModule_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	m, c := installModule(t, func(b *Binder) error {
		return b.AddMapperClasses(reflect.TypeOf(testmodels.UserMapper{}))
	}, WithLogger(zap.New(core)))

	assert.Equal(t, 1, logs.FilterMessage("mapper bound").Len())
	assert.Equal(t, 1, logs.FilterMessage("batis module installed").Len())

	_, err := m.Configuration(c)
	require.NoError(t, err)

	assembled := logs.FilterMessage("batis configuration assembled").All()
	require.Len(t, assembled, 1)
	assert.Equal(t, "test", assembled[0].ContextMap()["environment"])
}

func TestModule_ConcurrentFirstResolution(t *testing.T) {
	var (
		calls int
		mu    sync.Mutex
	)

	path := filepath.Join(t.TempDir(), "concurrent.db")

	m, c := installModule(t, func(b *Binder) error {
		if err := b.AddMapperClasses(reflect.TypeOf(testmodels.UserMapper{})); err != nil {
			return err
		}

		return b.SetDataSourceProvider(StrategyFactory(func(vessel.Vessel) (*sql.DB, error) {
			mu.Lock()
			calls++
			mu.Unlock()

			return datasource.Pooled(context.Background(), datasource.Settings{DSN: path})
		}))
	})

	const workers = 24

	factories := make([]*orm.SessionFactory, workers)
	mappers := make([]*testmodels.UserMapper, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)

		// module, container and mapper resolution race for the first build
		go func(i int) {
			defer wg.Done()

			var err error

			switch i % 3 {
			case 0:
				factories[i], err = m.SessionFactory(c)
			case 1:
				factories[i], err = SessionFactoryFrom(c)
			default:
				mappers[i], err = ResolveMapper[testmodels.UserMapper](c)
			}

			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	sf, err := m.SessionFactory(c)
	require.NoError(t, err)

	for i := range workers {
		if i%3 == 2 {
			assert.NotNil(t, mappers[i])

			continue
		}

		assert.Same(t, sf, factories[i])
	}

	assert.Equal(t, 1, calls)
}

func TestModule_TracingInterceptorByType(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	_, c := installModule(t, func(b *Binder) error {
		if err := b.AddInterceptorsClasses(reflect.TypeOf(interceptors.Tracing{})); err != nil {
			return err
		}

		return b.AddMapperClasses(reflect.TypeOf(testmodels.UserMapper{}))
	})

	users := MustMapper[testmodels.UserMapper](c)
	require.NoError(t, users.CreateTable(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "batis.exec UserMapper.CreateTable", spans[0].Name)
}

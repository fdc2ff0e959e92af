package batis

import (
	"errors"

	"github.com/xraph/vessel"
	"go.uber.org/zap"

	"github.com/xraph/batis/orm"
)

// assemble builds the frozen configuration from the sealed registries.
// Conflicting bindings keep their ErrConfigurationConflict code; every other
// failure is a construction failure.
func (m *Module) assemble(c vessel.Vessel) (*orm.Configuration, error) {
	fail := func(err error) (*orm.Configuration, error) {
		if errors.Is(err, ErrConfigurationConflict) {
			return nil, err
		}

		return nil, NewConstructionError(ConfigurationKey.Name(), err)
	}

	env, err := ResolveWithKey(c, EnvironmentKey)
	if err != nil {
		return fail(err)
	}

	cfg := orm.NewConfiguration(env)
	snapshot := m.regs.snapshot()

	for _, alias := range snapshot.Aliases {
		if err := cfg.AddTypeAlias(alias.Name, alias.Type); err != nil {
			return fail(err)
		}
	}

	for _, h := range snapshot.TypeHandlers {
		handler, err := resolveAs[orm.TypeHandler](c, typeHandlerServiceName(h.HandlerType))
		if err != nil {
			return fail(err)
		}

		if err := cfg.AddTypeHandler(h.HandledType, handler); err != nil {
			return fail(err)
		}
	}

	for _, t := range snapshot.Interceptors {
		interceptor, err := resolveAs[orm.Interceptor](c, interceptorServiceName(t))
		if err != nil {
			return fail(err)
		}

		if err := cfg.AddInterceptor(interceptor); err != nil {
			return fail(err)
		}
	}

	for _, t := range snapshot.Mappers {
		if err := cfg.AddMapper(t); err != nil {
			return fail(err)
		}
	}

	objectFactory, err := ResolveWithKey(c, ObjectFactoryKey)
	if err != nil {
		return fail(err)
	}

	if err := cfg.SetObjectFactory(objectFactory); err != nil {
		return fail(err)
	}

	cfg.Freeze()

	m.logger.Info("batis configuration assembled",
		zap.String("environment", env.ID()),
		zap.Int("aliases", len(snapshot.Aliases)),
		zap.Int("type_handlers", len(snapshot.TypeHandlers)),
		zap.Int("interceptors", len(snapshot.Interceptors)),
		zap.Int("mappers", len(snapshot.Mappers)),
	)

	return cfg, nil
}

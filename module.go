package batis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/xraph/go-utils/di"
	"github.com/xraph/vessel"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xraph/batis/datasource"
	"github.com/xraph/batis/orm"
	"github.com/xraph/batis/scan"
)

var errNotInstalled = errors.New("module is not installed")

// strategies are the pluggable collaborators selected during configure.
type strategies struct {
	dataSource         Strategy[*sql.DB]
	transactionFactory Strategy[orm.TransactionFactory]
	objectFactory      Strategy[orm.ObjectFactory]
}

// Module registers a SQL mapping engine into a vessel container.
//
// The configure callback runs once, during Install, and is the only place
// bindings can be added. Everything it declares is assembled lazily, the
// first time the configuration, the session factory or a mapper is resolved,
// and at most once.
type Module struct {
	configure func(*Binder) error
	logger    *zap.Logger
	scanner   scan.Scanner
	config    Config

	installed  atomic.Bool
	bound      atomic.Bool
	regs       *registries
	strategies strategies

	dataSource         *onceValue[*sql.DB]
	transactionFactory *onceValue[orm.TransactionFactory]
	objectFactory      *onceValue[orm.ObjectFactory]
	environment        *onceValue[*orm.Environment]
	configuration      *onceValue[*orm.Configuration]
	sessionFactory     *onceValue[*orm.SessionFactory]
}

// NewModule creates a module. configure may be nil for a module without
// aliases, handlers, interceptors or mappers.
//
// Example:
//
//	m := batis.NewModule(func(b *batis.Binder) error {
//	    b.AddAlias("User").To(reflect.TypeOf(User{}))
//	    return b.AddMapperClasses(reflect.TypeOf(UserMapper{}))
//	}, batis.WithConfig(cfg))
//
//	if err := m.Install(c); err != nil {
//	    return err
//	}
func NewModule(configure func(*Binder) error, opts ...Option) *Module {
	m := &Module{
		configure: configure,
		logger:    zap.NewNop(),
		scanner:   scan.Default(),
		regs:      newRegistries(),

		dataSource:         newOnceValue[*sql.DB](DataSourceKey.Name()),
		transactionFactory: newOnceValue[orm.TransactionFactory](TransactionFactoryKey.Name()),
		objectFactory:      newOnceValue[orm.ObjectFactory](ObjectFactoryKey.Name()),
		environment:        newOnceValue[*orm.Environment](EnvironmentKey.Name()),
		configuration:      newOnceValue[*orm.Configuration](ConfigurationKey.Name()),
		sessionFactory:     newOnceValue[*orm.SessionFactory](SessionFactoryKey.Name()),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Install runs the configure callback, seals the registries and registers
// the module's bindings in c. It returns the callback error combined with
// every error recorded on the Binder. On error nothing is registered,
// including when c already holds one of the module's binding names.
//
// The registries are sealed even when the callback fails or panics. A panic
// is propagated after sealing.
func (m *Module) Install(c vessel.Vessel) error {
	if c == nil {
		return NewInvalidArgumentError("Install", "container must not be nil")
	}

	if !m.installed.CompareAndSwap(false, true) {
		return ErrAlreadyInstalled
	}

	b := &Binder{m: m, regs: m.regs}

	err := m.runConfigure(b)
	if err = multierr.Combine(err, b.Err()); err != nil {
		m.logger.Error("batis module configuration failed", zap.Error(err))

		return err
	}

	m.applyDefaults()

	if err := m.bind(c); err != nil {
		m.logger.Error("batis module binding failed", zap.Error(err))

		return err
	}

	m.bound.Store(true)

	snapshot := m.regs.snapshot()
	m.logger.Info("batis module installed",
		zap.String("environment", m.config.environmentID()),
		zap.Int("aliases", len(snapshot.Aliases)),
		zap.Int("type_handlers", len(snapshot.TypeHandlers)),
		zap.Int("interceptors", len(snapshot.Interceptors)),
		zap.Int("mappers", len(snapshot.Mappers)),
	)

	return nil
}

// runConfigure calls the configure callback and seals the registries
// however it ends.
func (m *Module) runConfigure(b *Binder) error {
	defer func() {
		m.regs.seal()
		b.regs = nil
	}()

	if m.configure == nil {
		return nil
	}

	return m.configure(b)
}

// applyDefaults fills the strategies configure left unset.
func (m *Module) applyDefaults() {
	if m.strategies.dataSource.IsZero() {
		m.strategies.dataSource = StrategyFactory(datasource.Provider(m.config.DataSource, m.config.Pooled))
	}

	if m.strategies.transactionFactory.IsZero() {
		m.strategies.transactionFactory = StrategyValue[orm.TransactionFactory](orm.JDBCTransactionFactory{})
	}

	if m.strategies.objectFactory.IsZero() {
		m.strategies.objectFactory = StrategyValue[orm.ObjectFactory](orm.DefaultObjectFactory{})
	}
}

// bindingNames lists every name bind registers.
func (m *Module) bindingNames() []string {
	names := []string{
		DataSourceKey.Name(),
		TransactionFactoryKey.Name(),
		ObjectFactoryKey.Name(),
		EnvironmentKey.Name(),
		ConfigurationKey.Name(),
		SessionFactoryKey.Name(),
	}

	snapshot := m.regs.snapshot()
	for _, h := range snapshot.TypeHandlers {
		names = append(names, typeHandlerServiceName(h.HandlerType))
	}

	for _, t := range snapshot.Interceptors {
		names = append(names, interceptorServiceName(t))
	}

	for _, t := range snapshot.Mappers {
		names = append(names, mapperServiceName(t))
	}

	return names
}

// bind registers the fixed and per-type singleton bindings. Every name is
// checked first, so a clash leaves c untouched.
func (m *Module) bind(c vessel.Vessel) error {
	for _, name := range m.bindingNames() {
		if c.Has(name) {
			return NewInvalidArgumentError("Install", fmt.Sprintf("container already has a binding named '%s'", name))
		}
	}

	err := RegisterWithKey(c, DataSourceKey, func(c vessel.Vessel) (*sql.DB, error) {
		return m.dataSource.get(func() (*sql.DB, error) {
			db, err := m.strategies.dataSource.resolve(c)
			if err != nil {
				return nil, NewConstructionError(DataSourceKey.Name(), err)
			}

			if db == nil {
				return nil, NewConstructionError(DataSourceKey.Name(), errors.New("data source strategy returned nil"))
			}

			return db, nil
		})
	}, di.Singleton(), di.WithDIMetadata("strategy", m.strategies.dataSource.String()))
	if err != nil {
		return err
	}

	err = RegisterWithKey(c, TransactionFactoryKey, func(c vessel.Vessel) (orm.TransactionFactory, error) {
		return m.transactionFactory.get(func() (orm.TransactionFactory, error) {
			tf, err := m.strategies.transactionFactory.resolve(c)
			if err != nil {
				return nil, NewConstructionError(TransactionFactoryKey.Name(), err)
			}

			return tf, nil
		})
	}, di.Singleton(), di.WithDIMetadata("strategy", m.strategies.transactionFactory.String()))
	if err != nil {
		return err
	}

	err = RegisterWithKey(c, ObjectFactoryKey, func(c vessel.Vessel) (orm.ObjectFactory, error) {
		return m.objectFactory.get(func() (orm.ObjectFactory, error) {
			of, err := m.strategies.objectFactory.resolve(c)
			if err != nil {
				return nil, NewConstructionError(ObjectFactoryKey.Name(), err)
			}

			return of, nil
		})
	}, di.Singleton(), di.WithDIMetadata("strategy", m.strategies.objectFactory.String()))
	if err != nil {
		return err
	}

	err = RegisterWithKey(c, EnvironmentKey, func(c vessel.Vessel) (*orm.Environment, error) {
		return m.environment.get(func() (*orm.Environment, error) {
			return m.newEnvironment(c)
		})
	}, di.Singleton(), di.WithDependencies(DataSourceKey.Name(), TransactionFactoryKey.Name()))
	if err != nil {
		return err
	}

	err = RegisterWithKey(c, ConfigurationKey, func(c vessel.Vessel) (*orm.Configuration, error) {
		return m.Configuration(c)
	}, di.Singleton(), di.WithDependencies(EnvironmentKey.Name(), ObjectFactoryKey.Name()))
	if err != nil {
		return err
	}

	err = RegisterWithKey(c, SessionFactoryKey, func(c vessel.Vessel) (*orm.SessionFactory, error) {
		return m.SessionFactory(c)
	}, di.Singleton(), di.WithDependencies(ConfigurationKey.Name()))
	if err != nil {
		return err
	}

	return m.bindTypes(c)
}

// bindTypes registers one singleton per type handler, interceptor and mapper.
func (m *Module) bindTypes(c vessel.Vessel) error {
	snapshot := m.regs.snapshot()
	seen := make(map[string]bool)

	for _, h := range snapshot.TypeHandlers {
		name := typeHandlerServiceName(h.HandlerType)
		if seen[name] {
			continue
		}

		seen[name] = true

		handlerType := h.HandlerType

		err := registerSingleton(c, name, func(vessel.Vessel) (any, error) {
			handler, err := instantiate[orm.TypeHandler](handlerType)
			if err != nil {
				return nil, NewConstructionError(name, err)
			}

			return handler, nil
		}, di.WithGroup(TypeHandlersGroup), di.WithDIMetadata("type", typeName(handlerType)))
		if err != nil {
			return err
		}
	}

	for _, t := range snapshot.Interceptors {
		name := interceptorServiceName(t)
		interceptor := t

		err := registerSingleton(c, name, func(vessel.Vessel) (any, error) {
			i, err := instantiate[orm.Interceptor](interceptor)
			if err != nil {
				return nil, NewConstructionError(name, err)
			}

			return i, nil
		}, di.WithGroup(InterceptorsGroup), di.WithDIMetadata("type", typeName(interceptor)))
		if err != nil {
			return err
		}
	}

	for _, t := range snapshot.Mappers {
		name := mapperServiceName(t)
		mapper := t

		err := registerSingleton(c, name, func(c vessel.Vessel) (any, error) {
			sf, err := m.SessionFactory(c)
			if err != nil {
				return nil, err
			}

			proxy, err := orm.NewMapper(sf, mapper)
			if err != nil {
				return nil, NewConstructionError(name, err)
			}

			return proxy, nil
		}, di.WithGroup(MappersGroup), di.WithDependencies(SessionFactoryKey.Name()),
			di.WithDIMetadata("type", typeName(mapper)))
		if err != nil {
			return err
		}
	}

	return nil
}

// newEnvironment pairs the data source with the transaction factory and
// checks the data source is reachable.
func (m *Module) newEnvironment(c vessel.Vessel) (*orm.Environment, error) {
	db, err := ResolveWithKey(c, DataSourceKey)
	if err != nil {
		return nil, NewConstructionError(EnvironmentKey.Name(), err)
	}

	tf, err := ResolveWithKey(c, TransactionFactoryKey)
	if err != nil {
		return nil, NewConstructionError(EnvironmentKey.Name(), err)
	}

	env, err := orm.NewEnvironment(m.config.environmentID(), db, tf)
	if err != nil {
		return nil, NewConstructionError(EnvironmentKey.Name(), err)
	}

	if err := env.Ping(context.Background()); err != nil {
		return nil, NewConstructionError(EnvironmentKey.Name(), err)
	}

	return env, nil
}

// Configuration returns the assembled configuration, assembling it on the
// first call. Every call returns the same pointer or the same error.
func (m *Module) Configuration(c vessel.Vessel) (*orm.Configuration, error) {
	if !m.bound.Load() {
		return nil, NewConstructionError(ConfigurationKey.Name(), errNotInstalled)
	}

	return m.configuration.get(func() (*orm.Configuration, error) {
		return m.assemble(c)
	})
}

// SessionFactory returns the session factory, building it (and the
// configuration) on the first call. Every call returns the same pointer or
// the same error.
func (m *Module) SessionFactory(c vessel.Vessel) (*orm.SessionFactory, error) {
	if !m.bound.Load() {
		return nil, NewConstructionError(SessionFactoryKey.Name(), errNotInstalled)
	}

	return m.sessionFactory.get(func() (*orm.SessionFactory, error) {
		cfg, err := m.Configuration(c)
		if err != nil {
			return nil, err
		}

		sf, err := orm.NewSessionFactory(cfg)
		if err != nil {
			return nil, NewConstructionError(SessionFactoryKey.Name(), err)
		}

		m.logger.Debug("session factory built", zap.String("environment", cfg.Environment().ID()))

		return sf, nil
	})
}

// Registries returns what the configure callback registered.
func (m *Module) Registries() Registries {
	return m.regs.snapshot()
}

// Installed reports whether Install has been called.
func (m *Module) Installed() bool {
	return m.installed.Load()
}

// String describes the module for logs.
func (m *Module) String() string {
	s := m.regs.snapshot()

	return fmt.Sprintf("batis.Module{environment=%s aliases=%d type_handlers=%d interceptors=%d mappers=%d}",
		m.config.environmentID(), len(s.Aliases), len(s.TypeHandlers), len(s.Interceptors), len(s.Mappers))
}

package batis

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xraph/batis/orm"
	"github.com/xraph/batis/scan"
)

var (
	interceptorType = TypeOf[orm.Interceptor]()
	typeHandlerType = TypeOf[orm.TypeHandler]()
)

// Binder collects the bindings of a Module. It is only usable inside the
// configure callback; once the callback returns every mutation fails with
// ErrRegistryUnavailable.
//
// Rejected arguments are returned by the call that received them and also
// recorded on the Binder, so Install fails even when a return value is
// ignored.
type Binder struct {
	m    *Module
	regs *registries // nil once sealed
	err  error
}

// Err returns every error recorded so far.
func (b *Binder) Err() error {
	return b.err
}

// record keeps err for Install and returns it.
func (b *Binder) record(err error) error {
	if err != nil && !errors.Is(err, ErrRegistryUnavailable) {
		b.err = multierr.Append(b.err, err)
	}

	return err
}

func (b *Binder) open() (*registries, error) {
	if b.regs == nil {
		return nil, ErrRegistryUnavailable
	}

	return b.regs, nil
}

// =============================================================================
// ALIASES
// =============================================================================

// AliasBinding is the pending half of AddAlias. Nothing is bound until To
// succeeds.
type AliasBinding struct {
	b    *Binder
	name string
	err  error
}

// Err returns the error that makes this binding unusable, if any.
func (a AliasBinding) Err() error {
	return a.err
}

// To binds the alias to t.
func (a AliasBinding) To(t reflect.Type) error {
	if a.err != nil {
		return a.err
	}

	if t == nil {
		return a.b.record(NewInvalidArgumentError("AddAlias.To", fmt.Sprintf("alias '%s' needs a type", a.name)))
	}

	return a.b.addAliases(Alias{Name: a.name, Type: t})
}

// AddAlias starts binding name to a type:
//
//	b.AddAlias("User").To(reflect.TypeOf(User{}))
func (b *Binder) AddAlias(name string) AliasBinding {
	binding := AliasBinding{b: b, name: name}

	if _, err := b.open(); err != nil {
		binding.err = err
	} else if name == "" {
		binding.err = b.record(NewInvalidArgumentError("AddAlias", "alias name must not be empty"))
	}

	return binding
}

// AddSimpleAliases binds every type to its unqualified name.
func (b *Binder) AddSimpleAliases(types ...reflect.Type) error {
	aliases := make([]Alias, 0, len(types))

	for _, t := range types {
		name, err := simpleName("AddSimpleAliases", t)
		if err != nil {
			return b.record(err)
		}

		aliases = append(aliases, Alias{Name: name, Type: t})
	}

	return b.addAliases(aliases...)
}

// AddSimpleAliasesIn binds every type of namespace (and the packages below
// it) that passes all tests to its unqualified name. Without tests every
// type is bound.
func (b *Binder) AddSimpleAliasesIn(namespace string, tests ...scan.Predicate) error {
	types, err := b.scan("AddSimpleAliasesIn", namespace, tests...)
	if err != nil {
		return err
	}

	return b.AddSimpleAliases(types...)
}

func (b *Binder) addAliases(aliases ...Alias) error {
	regs, err := b.open()
	if err != nil {
		return err
	}

	for _, alias := range aliases {
		if _, err := regs.aliases.add(alias); err != nil {
			return err
		}

		b.m.logger.Debug("alias bound",
			zap.String("alias", alias.Name),
			zap.Stringer("type", alias.Type),
		)
	}

	return nil
}

// simpleName is the unqualified identifier of t, pointers removed.
func simpleName(operation string, t reflect.Type) (string, error) {
	if t == nil {
		return "", NewInvalidArgumentError(operation, "type must not be nil")
	}

	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	if base.Name() == "" {
		return "", NewTypeArgumentError(operation, t, "has no simple name")
	}

	return base.Name(), nil
}

// =============================================================================
// TYPE HANDLERS
// =============================================================================

// TypeHandlerBinding is the pending half of HandleType. Nothing is bound
// until With succeeds.
type TypeHandlerBinding struct {
	b       *Binder
	handled reflect.Type
	err     error
}

// Err returns the error that makes this binding unusable, if any.
func (h TypeHandlerBinding) Err() error {
	return h.err
}

// With sets the handler type. Its zero value (or a pointer to it) must
// implement orm.TypeHandler.
func (h TypeHandlerBinding) With(handler reflect.Type) error {
	if h.err != nil {
		return h.err
	}

	if handler == nil {
		return h.b.record(NewInvalidArgumentError("HandleType.With", "handler type must not be nil"))
	}

	if _, ok := implementation(handler, typeHandlerType); !ok || handler.Kind() == reflect.Interface {
		return h.b.record(NewTypeArgumentError("HandleType.With", handler, "does not implement orm.TypeHandler"))
	}

	regs, err := h.b.open()
	if err != nil {
		return err
	}

	binding := TypeHandlerRegistration{HandledType: h.handled, HandlerType: handler}
	if _, err := regs.typeHandlers.add(binding); err != nil {
		return err
	}

	h.b.m.logger.Debug("type handler bound",
		zap.Stringer("handled_type", h.handled),
		zap.Stringer("handler_type", handler),
	)

	return nil
}

// HandleType starts binding a handler for values of t:
//
//	b.HandleType(reflect.TypeOf(Money{})).With(reflect.TypeOf(MoneyHandler{}))
func (b *Binder) HandleType(t reflect.Type) TypeHandlerBinding {
	binding := TypeHandlerBinding{b: b, handled: t}

	if _, err := b.open(); err != nil {
		binding.err = err
	} else if t == nil {
		binding.err = b.record(NewInvalidArgumentError("HandleType", "handled type must not be nil"))
	}

	return binding
}

// =============================================================================
// INTERCEPTORS
// =============================================================================

// AddInterceptorsClasses adds interceptor types. The zero value of each
// type (or a pointer to it) must implement orm.Interceptor; one instance per
// type is built and bound in the container. T and *T are the same entry.
func (b *Binder) AddInterceptorsClasses(types ...reflect.Type) error {
	interceptors := make([]reflect.Type, 0, len(types))

	for _, t := range types {
		if t == nil {
			return b.record(NewInvalidArgumentError("AddInterceptorsClasses", "type must not be nil"))
		}

		if _, ok := implementation(t, interceptorType); !ok || t.Kind() == reflect.Interface {
			return b.record(NewTypeArgumentError("AddInterceptorsClasses", t, "does not implement orm.Interceptor"))
		}

		if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
			t = t.Elem()
		}

		interceptors = append(interceptors, t)
	}

	regs, err := b.open()
	if err != nil {
		return err
	}

	for _, t := range interceptors {
		added, err := regs.interceptors.add(t)
		if err != nil {
			return err
		}

		if added {
			b.m.logger.Debug("interceptor bound", zap.Stringer("type", t))
		}
	}

	return nil
}

// AddInterceptorsClassesIn adds every concrete interceptor type of namespace.
func (b *Binder) AddInterceptorsClassesIn(namespace string) error {
	types, err := b.scan("AddInterceptorsClassesIn", namespace, scan.IsA(interceptorType), scan.Not(isInterface))
	if err != nil {
		return err
	}

	return b.AddInterceptorsClasses(types...)
}

func isInterface(t reflect.Type) bool {
	return t.Kind() == reflect.Interface
}

// =============================================================================
// MAPPERS
// =============================================================================

// AddMapperClasses adds mapper types. Each one gets a proxy bound in the
// container under MapperKey.
func (b *Binder) AddMapperClasses(types ...reflect.Type) error {
	mappers := make([]reflect.Type, 0, len(types))

	for _, t := range types {
		if t == nil {
			return b.record(NewInvalidArgumentError("AddMapperClasses", "type must not be nil"))
		}

		if err := orm.ValidateMapper(t); err != nil {
			return b.record(NewTypeArgumentError("AddMapperClasses", t, err.Error()))
		}

		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}

		mappers = append(mappers, t)
	}

	regs, err := b.open()
	if err != nil {
		return err
	}

	for _, t := range mappers {
		added, err := regs.mappers.add(t)
		if err != nil {
			return err
		}

		if added {
			b.m.logger.Debug("mapper bound", zap.Stringer("type", t))
		}
	}

	return nil
}

// AddMapperClassesIn adds every mapper of namespace that passes all tests.
// Types that are not valid mappers are skipped.
func (b *Binder) AddMapperClassesIn(namespace string, tests ...scan.Predicate) error {
	types, err := b.scan("AddMapperClassesIn", namespace, append([]scan.Predicate{orm.IsMapper}, tests...)...)
	if err != nil {
		return err
	}

	return b.AddMapperClasses(types...)
}

// =============================================================================
// STRATEGIES
// =============================================================================

// SetDataSourceProvider selects how the data source is built. The default
// opens the module Config's data source settings.
func (b *Binder) SetDataSourceProvider(s Strategy[*sql.DB]) error {
	return setStrategy(b, "SetDataSourceProvider", &b.m.strategies.dataSource, s)
}

// SetTransactionFactory selects the transaction factory. The default is
// orm.JDBCTransactionFactory.
func (b *Binder) SetTransactionFactory(s Strategy[orm.TransactionFactory]) error {
	return setStrategy(b, "SetTransactionFactory", &b.m.strategies.transactionFactory, s)
}

// SetObjectFactory selects the object factory. The default is
// orm.DefaultObjectFactory.
func (b *Binder) SetObjectFactory(s Strategy[orm.ObjectFactory]) error {
	return setStrategy(b, "SetObjectFactory", &b.m.strategies.objectFactory, s)
}

func setStrategy[T any](b *Binder, operation string, slot *Strategy[T], s Strategy[T]) error {
	if _, err := b.open(); err != nil {
		return err
	}

	if s.IsZero() {
		return b.record(NewInvalidArgumentError(operation, "strategy must not be empty"))
	}

	if err := s.validate(); err != nil {
		return b.record(NewInvalidArgumentError(operation, err.Error()))
	}

	if !slot.IsZero() {
		return b.record(NewInvalidArgumentError(operation, "strategy is already set"))
	}

	*slot = s

	b.m.logger.Debug("strategy selected",
		zap.String("operation", operation),
		zap.Stringer("strategy", s),
	)

	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

// scan runs the module scanner with all tests combined. Scanner errors are
// returned as they are.
func (b *Binder) scan(operation, namespace string, tests ...scan.Predicate) ([]reflect.Type, error) {
	if _, err := b.open(); err != nil {
		return nil, err
	}

	for _, test := range tests {
		if test == nil {
			return nil, b.record(NewInvalidArgumentError(operation, "predicate must not be nil"))
		}
	}

	var test scan.Predicate = scan.Any
	if len(tests) > 0 {
		test = scan.And(tests...)
	}

	types, err := b.m.scanner.Scan(test, namespace)
	if err != nil {
		return nil, b.record(err)
	}

	b.m.logger.Debug("namespace scanned",
		zap.String("operation", operation),
		zap.String("namespace", namespace),
		zap.Int("matches", len(types)),
	)

	return types, nil
}

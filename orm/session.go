package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// SessionFactory opens sessions over one frozen Configuration.
type SessionFactory struct {
	cfg   *Configuration
	chain *interceptorChain
}

// NewSessionFactory creates a session factory. The configuration must be
// frozen so every session observes the same bindings.
func NewSessionFactory(cfg *Configuration) (*SessionFactory, error) {
	if cfg == nil {
		return nil, errors.New("session factory requires a configuration")
	}

	if !cfg.Frozen() {
		return nil, errors.New("session factory requires a frozen configuration")
	}

	if cfg.Environment() == nil {
		return nil, errors.New("session factory requires an environment")
	}

	return &SessionFactory{
		cfg:   cfg,
		chain: newInterceptorChain(cfg.Interceptors()),
	}, nil
}

// Configuration returns the configuration the factory was built from.
func (f *SessionFactory) Configuration() *Configuration {
	return f.cfg
}

// sessionOptions holds OpenSession settings
type sessionOptions struct {
	autoCommit bool
}

// SessionOption configures OpenSession.
type SessionOption func(*sessionOptions)

// WithAutoCommit makes every statement of the session commit on its own.
func WithAutoCommit(autoCommit bool) SessionOption {
	return func(o *sessionOptions) {
		o.autoCommit = autoCommit
	}
}

// OpenSession opens a session. Sessions are transactional unless
// WithAutoCommit(true) is given.
func (f *SessionFactory) OpenSession(ctx context.Context, opts ...SessionOption) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	env := f.cfg.Environment()

	tx, err := env.TransactionFactory().NewTransaction(ctx, env.DataSource(), o.autoCommit)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	return &Session{
		id:         uuid.NewString(),
		factory:    f,
		tx:         tx,
		autoCommit: o.autoCommit,
	}, nil
}

// Session runs statements inside one transaction. A Session must be closed.
type Session struct {
	id         string
	factory    *SessionFactory
	tx         Transaction
	autoCommit bool

	mu     sync.Mutex
	closed bool
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Factory returns the factory that opened the session.
func (s *Session) Factory() *SessionFactory {
	return s.factory
}

// AutoCommit reports whether statements commit on their own.
func (s *Session) AutoCommit() bool {
	return s.autoCommit
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.exec(ctx, "", query, args)
}

// SelectList runs a query and maps every row into a value of resultType.
func (s *Session) SelectList(ctx context.Context, resultType reflect.Type, query string, args ...any) ([]any, error) {
	if resultType == nil {
		return nil, errors.New("select: result type is nil")
	}

	rows, err := s.query(ctx, "", resultType, query, args)
	if err != nil {
		return nil, err
	}

	return toAnySlice(rows), nil
}

// SelectAlias is SelectList with the result type looked up in the alias table.
func (s *Session) SelectAlias(ctx context.Context, alias, query string, args ...any) ([]any, error) {
	t, ok := s.factory.cfg.TypeAlias(alias)
	if !ok {
		return nil, fmt.Errorf("select: unknown type alias '%s'", alias)
	}

	return s.SelectList(ctx, t, query, args...)
}

// Commit commits the session's transaction.
func (s *Session) Commit() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.tx.Commit()
}

// Rollback rolls back the session's transaction.
func (s *Session) Rollback() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.tx.Rollback()
}

// Close releases the session, rolling back uncommitted work. Closing twice
// is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.tx.Close()
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	return nil
}

// exec runs an exec statement through the interceptor chain.
func (s *Session) exec(ctx context.Context, id, query string, args []any) (sql.Result, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	inv := &Invocation{
		Operation:   OperationExec,
		StatementID: id,
		SQL:         query,
		Args:        args,
		SessionID:   s.id,
	}

	out, err := s.factory.chain.wrap(s.runExec)(ctx, inv)
	if err != nil {
		return nil, err
	}

	if out == nil {
		return driverlessResult{}, nil
	}

	res, ok := out.(sql.Result)
	if !ok {
		return nil, NewStatementError(statementName(inv), "exec", fmt.Errorf("interceptor returned %T, want sql.Result", out))
	}

	return res, nil
}

// query runs a query statement through the interceptor chain and returns a
// slice value of elem.
func (s *Session) query(ctx context.Context, id string, elem reflect.Type, query string, args []any) (reflect.Value, error) {
	sliceType := reflect.SliceOf(elem)

	if err := s.checkOpen(); err != nil {
		return reflect.Value{}, err
	}

	inv := &Invocation{
		Operation:   OperationQuery,
		StatementID: id,
		SQL:         query,
		Args:        args,
		SessionID:   s.id,
	}

	final := func(ctx context.Context, inv *Invocation) (any, error) {
		return s.runQuery(ctx, inv, elem)
	}

	out, err := s.factory.chain.wrap(final)(ctx, inv)
	if err != nil {
		return reflect.Value{}, err
	}

	if out == nil {
		return reflect.MakeSlice(sliceType, 0, 0), nil
	}

	rv := reflect.ValueOf(out)
	if rv.Type() != sliceType {
		return reflect.Value{}, NewStatementError(statementName(inv), "query", fmt.Errorf("interceptor returned %T, want %v", out, sliceType))
	}

	return rv, nil
}

func (s *Session) runExec(ctx context.Context, inv *Invocation) (any, error) {
	args, err := s.factory.cfg.convertArgs(inv.Args)
	if err != nil {
		return nil, NewStatementError(statementName(inv), "argument conversion", err)
	}

	res, err := s.tx.Executor().ExecContext(ctx, inv.SQL, args...)
	if err != nil {
		return nil, NewStatementError(statementName(inv), "exec", err)
	}

	return res, nil
}

func (s *Session) runQuery(ctx context.Context, inv *Invocation, elem reflect.Type) (any, error) {
	args, err := s.factory.cfg.convertArgs(inv.Args)
	if err != nil {
		return nil, NewStatementError(statementName(inv), "argument conversion", err)
	}

	rows, err := s.tx.Executor().QueryContext(ctx, inv.SQL, args...)
	if err != nil {
		return nil, NewStatementError(statementName(inv), "query", err)
	}
	defer rows.Close()

	out, err := s.factory.cfg.mapRows(rows, elem)
	if err != nil {
		return nil, NewStatementError(statementName(inv), "result mapping", err)
	}

	return out.Interface(), nil
}

// SelectList runs a query on s and maps every row into a T.
func SelectList[T any](ctx context.Context, s *Session, query string, args ...any) ([]T, error) {
	rows, err := s.query(ctx, "", reflect.TypeOf((*T)(nil)).Elem(), query, args)
	if err != nil {
		return nil, err
	}

	return rows.Interface().([]T), nil
}

// SelectOne runs a query on s that must return one row. No rows yields the
// zero value for pointer results and ErrResultCount otherwise; several rows
// always yield ErrResultCount.
func SelectOne[T any](ctx context.Context, s *Session, query string, args ...any) (T, error) {
	var zero T

	elem := reflect.TypeOf((*T)(nil)).Elem()

	rows, err := s.query(ctx, "", elem, query, args)
	if err != nil {
		return zero, err
	}

	one, err := single(rows, elem, query)
	if err != nil {
		return zero, err
	}

	return one.Interface().(T), nil
}

// single picks the only element of rows.
func single(rows reflect.Value, elem reflect.Type, statement string) (reflect.Value, error) {
	switch rows.Len() {
	case 1:
		return rows.Index(0), nil
	case 0:
		if elem.Kind() == reflect.Pointer {
			return reflect.Zero(elem), nil
		}
	}

	return reflect.Value{}, NewResultCountError(statement, rows.Len())
}

func toAnySlice(rows reflect.Value) []any {
	out := make([]any, rows.Len())
	for i := range out {
		out[i] = rows.Index(i).Interface()
	}

	return out
}

func statementName(inv *Invocation) string {
	if inv.StatementID != "" {
		return inv.StatementID
	}

	return inv.SQL
}

// driverlessResult is returned when an interceptor short-circuits an exec.
type driverlessResult struct{}

func (driverlessResult) LastInsertId() (int64, error) { return 0, nil }
func (driverlessResult) RowsAffected() (int64, error) { return 0, nil }

type sessionKey struct{}

// WithSession binds mapper calls made with the returned context to s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session bound by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)

	return s, ok && s != nil
}

package orm

import (
	"context"
	"database/sql"
)

// Executor runs statements. *sql.DB, *sql.Conn and *sql.Tx implement it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Transaction is the unit of work a session runs its statements in.
type Transaction interface {
	Executor() Executor
	Commit() error
	Rollback() error
	Close() error
}

// TransactionFactory creates transactions on a data source.
type TransactionFactory interface {
	NewTransaction(ctx context.Context, db *sql.DB, autoCommit bool) (Transaction, error)
}

// JDBCTransactionFactory runs sessions in database/sql transactions. In
// auto-commit mode statements run directly on the data source.
type JDBCTransactionFactory struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// NewTransaction implements TransactionFactory.
func (f JDBCTransactionFactory) NewTransaction(ctx context.Context, db *sql.DB, autoCommit bool) (Transaction, error) {
	if autoCommit {
		return &autoCommitTransaction{db: db}, nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: f.Isolation, ReadOnly: f.ReadOnly})
	if err != nil {
		return nil, err
	}

	return &jdbcTransaction{tx: tx}, nil
}

type jdbcTransaction struct {
	tx   *sql.Tx
	done bool
}

func (t *jdbcTransaction) Executor() Executor { return t.tx }

func (t *jdbcTransaction) Commit() error {
	if t.done {
		return nil
	}

	t.done = true

	return t.tx.Commit()
}

func (t *jdbcTransaction) Rollback() error {
	if t.done {
		return nil
	}

	t.done = true

	return t.tx.Rollback()
}

// Close rolls back work that was neither committed nor rolled back.
func (t *jdbcTransaction) Close() error {
	return t.Rollback()
}

type autoCommitTransaction struct {
	db *sql.DB
}

func (t *autoCommitTransaction) Executor() Executor { return t.db }
func (t *autoCommitTransaction) Commit() error      { return nil }
func (t *autoCommitTransaction) Rollback() error    { return nil }
func (t *autoCommitTransaction) Close() error       { return nil }

// ManagedTransactionFactory leaves commit and rollback to the caller. Sessions
// run on the *sql.Tx carried by the context (see WithTx), or on the data source
// when there is none.
type ManagedTransactionFactory struct{}

// NewTransaction implements TransactionFactory.
func (ManagedTransactionFactory) NewTransaction(ctx context.Context, db *sql.DB, _ bool) (Transaction, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return &managedTransaction{exec: tx}, nil
	}

	return &managedTransaction{exec: db}, nil
}

type managedTransaction struct {
	exec Executor
}

func (t *managedTransaction) Executor() Executor { return t.exec }
func (t *managedTransaction) Commit() error      { return nil }
func (t *managedTransaction) Rollback() error    { return nil }
func (t *managedTransaction) Close() error       { return nil }

type txKey struct{}

// WithTx attaches an externally managed transaction to ctx.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction attached by WithTx.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)

	return tx, ok && tx != nil
}

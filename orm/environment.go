package orm

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"go.uber.org/multierr"
)

// DefaultEnvironmentID is the environment id used when none is configured.
const DefaultEnvironmentID = "development"

// Environment pairs a data source with a transaction-management strategy.
type Environment struct {
	id                 string
	dataSource         *sql.DB
	transactionFactory TransactionFactory
}

// NewEnvironment creates an environment. An empty id means DefaultEnvironmentID.
func NewEnvironment(id string, dataSource *sql.DB, transactionFactory TransactionFactory) (*Environment, error) {
	if dataSource == nil {
		return nil, errors.New("environment requires a data source")
	}

	if transactionFactory == nil {
		return nil, errors.New("environment requires a transaction factory")
	}

	if id == "" {
		id = DefaultEnvironmentID
	}

	return &Environment{
		id:                 id,
		dataSource:         dataSource,
		transactionFactory: transactionFactory,
	}, nil
}

// ID returns the environment id.
func (e *Environment) ID() string {
	return e.id
}

// DataSource returns the data source.
func (e *Environment) DataSource() *sql.DB {
	return e.dataSource
}

// TransactionFactory returns the transaction factory.
func (e *Environment) TransactionFactory() TransactionFactory {
	return e.transactionFactory
}

// Ping checks the data source is reachable.
func (e *Environment) Ping(ctx context.Context) error {
	return e.dataSource.PingContext(ctx)
}

// Close closes the data source, and the transaction factory when it holds
// resources of its own.
func (e *Environment) Close() error {
	var err error
	if closer, ok := e.transactionFactory.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}

	return multierr.Append(err, e.dataSource.Close())
}

// Package datasource opens the *sql.DB a batis environment runs on.
//
// The pure Go SQLite driver is registered by this package and is the default
// driver; any other database/sql driver can be used by importing it and
// naming it in Settings.Driver.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/vessel"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultDriver is the driver used when Settings.Driver is empty.
const DefaultDriver = "sqlite"

// ErrNoDSN is returned when Settings carry no data source name.
var ErrNoDSN = errors.New("datasource: dsn is required")

// Settings describe a data source.
type Settings struct {
	Driver          string        `yaml:"driver" json:"driver"`
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`

	// PingOnOpen verifies connectivity before the data source is returned.
	PingOnOpen bool `yaml:"ping_on_open" json:"ping_on_open"`
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.DSN == "" {
		return ErrNoDSN
	}

	if s.MaxOpenConns < 0 || s.MaxIdleConns < 0 {
		return fmt.Errorf("datasource: connection limits must not be negative")
	}

	return nil
}

func (s Settings) driver() string {
	if s.Driver == "" {
		return DefaultDriver
	}

	return s.Driver
}

// Unpooled opens a data source that keeps no idle connections, so every
// statement dials a fresh connection.
func Unpooled(ctx context.Context, s Settings) (*sql.DB, error) {
	s.MaxIdleConns = 0

	db, err := open(ctx, s)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(0)

	return db, nil
}

// Pooled opens a data source with the pool limits of s.
func Pooled(ctx context.Context, s Settings) (*sql.DB, error) {
	db, err := open(ctx, s)
	if err != nil {
		return nil, err
	}

	if s.MaxIdleConns > 0 {
		db.SetMaxIdleConns(s.MaxIdleConns)
	}

	if s.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(s.ConnMaxIdleTime)
	}

	return db, nil
}

// Provider returns a container factory opening s, pooled or not. It is meant
// for batis.StrategyFactory.
func Provider(s Settings, pooled bool) func(vessel.Vessel) (*sql.DB, error) {
	return func(vessel.Vessel) (*sql.DB, error) {
		if pooled {
			return Pooled(context.Background(), s)
		}

		return Unpooled(context.Background(), s)
	}
}

func open(ctx context.Context, s Settings) (*sql.DB, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(s.driver(), s.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if s.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.MaxOpenConns)
	}

	if s.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.ConnMaxLifetime)
	}

	if s.PingOnOpen {
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
	}

	return db, nil
}

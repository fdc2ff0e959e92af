package batis

import (
	"go.uber.org/zap"

	"github.com/xraph/batis/scan"
)

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the module logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithScanner sets the scanner used by the namespace variants of the Binder.
// The default is scan.Default().
func WithScanner(scanner scan.Scanner) Option {
	return func(m *Module) {
		if scanner != nil {
			m.scanner = scanner
		}
	}
}

// WithConfig sets the environment id and the settings of the default data source.
func WithConfig(cfg Config) Option {
	return func(m *Module) {
		m.config = cfg
	}
}

// WithEnvironmentID overrides the environment id.
func WithEnvironmentID(id string) Option {
	return func(m *Module) {
		m.config.EnvironmentID = id
	}
}

package batis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xraph/batis/datasource"
	"github.com/xraph/batis/orm"
)

// Config carries the environment id and the default data source settings.
//
//	environment_id: production
//	pooled: true
//	datasource:
//	  driver: sqlite
//	  dsn: file:app.db
//	  max_open_conns: 4
//	  conn_max_lifetime: 30m
type Config struct {
	EnvironmentID string              `yaml:"environment_id" json:"environment_id"`
	Pooled        bool                `yaml:"pooled" json:"pooled"`
	DataSource    datasource.Settings `yaml:"datasource" json:"datasource"`
}

// environmentID returns the configured id or orm.DefaultEnvironmentID.
func (c Config) environmentID() string {
	if c.EnvironmentID == "" {
		return orm.DefaultEnvironmentID
	}

	return c.EnvironmentID
}

// LoadConfig loads a Config from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
		// JSON is a subset of YAML.
		return ParseConfig(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// ParseConfig parses YAML (or JSON) data into a Config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

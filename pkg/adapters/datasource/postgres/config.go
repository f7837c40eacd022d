package postgres

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// DefaultDatabase is the maintenance database every server carries.
func DefaultDatabase() string {
	return "postgres"
}

// FromConnectionConfig builds a Config from a resolved target connection.
// The only adapter option is ssl_mode.
func FromConnectionConfig(c datasource.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.Option("ssl_mode", DefaultSSLMode()),
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	switch c.SSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("invalid ssl_mode %q", c.SSLMode)
	}
	return nil
}

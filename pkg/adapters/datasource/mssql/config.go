package mssql

import (
	"fmt"
	"strconv"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod determines which authentication to use
	// Options: "sql", "service_principal"
	AuthMethod string

	// SQL Authentication fields
	Username string
	Password string

	// Service Principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	// Connection options
	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromConnectionConfig builds a Config from a resolved target connection.
// Adapter options: auth_method, encrypt, trust_server_certificate,
// connection_timeout and tenant_id. For service principals the target's
// user and password hold the client id and secret.
func FromConnectionConfig(c datasource.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:              c.Host,
		Port:              c.Port,
		Database:          c.Database,
		AuthMethod:        c.Option("auth_method", "sql"),
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout(),
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.Database == "" {
		cfg.Database = "master"
	}

	if encrypt, ok := c.Options["encrypt"]; ok {
		// Support string values: "true", "false", "strict"
		cfg.Encrypt = encrypt == "true" || encrypt == "strict"
	}
	cfg.TrustServerCertificate = c.Option("trust_server_certificate", "false") == "true"
	if timeout, ok := c.Options["connection_timeout"]; ok {
		n, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid connection_timeout %q: %w", timeout, err)
		}
		cfg.ConnectionTimeout = n
	}

	switch cfg.AuthMethod {
	case "sql":
		cfg.Username = c.User
		cfg.Password = c.Password
	case "service_principal":
		cfg.TenantID = c.Option("tenant_id", "")
		cfg.ClientID = c.User
		cfg.ClientSecret = c.Password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config has all required fields for the selected auth method.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case "sql":
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case "service_principal":
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", c.AuthMethod)
	}

	return nil
}

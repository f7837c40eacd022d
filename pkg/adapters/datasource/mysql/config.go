package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string // optional; metadata queries name the schema explicitly
	TLS      string // "true", "false", "skip-verify", "preferred"
	Timeout  time.Duration
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// DefaultTLS returns the default TLS mode.
func DefaultTLS() string {
	return "preferred"
}

// FromConnectionConfig builds a Config from a resolved target connection.
// Adapter options: tls and connection_timeout (seconds).
func FromConnectionConfig(c datasource.ConnectionConfig) (*Config, error) {
	cfg := &Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		TLS:      c.Option("tls", DefaultTLS()),
		Timeout:  30 * time.Second,
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if timeout, ok := c.Options["connection_timeout"]; ok {
		n, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid connection_timeout %q: %w", timeout, err)
		}
		cfg.Timeout = time.Duration(n) * time.Second
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
	switch c.TLS {
	case "true", "false", "skip-verify", "preferred":
	default:
		return fmt.Errorf("invalid tls mode %q", c.TLS)
	}
	return nil
}

// DSN renders the driver connection string.
func (c *Config) DSN() string {
	dc := mysql.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dc.DBName = c.Database
	dc.TLSConfig = c.TLS
	dc.Timeout = c.Timeout
	dc.ParseTime = true
	return dc.FormatDSN()
}

package mysql

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
)

func TestFromConnectionConfig(t *testing.T) {
	cfg, err := FromConnectionConfig(datasource.ConnectionConfig{
		Host:    "db.internal",
		User:    "reader",
		Options: map[string]string{"connection_timeout": "5"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, "preferred", cfg.TLS)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Database)
}

func TestFromConnectionConfig_Invalid(t *testing.T) {
	_, err := FromConnectionConfig(datasource.ConnectionConfig{Host: "db", User: "reader", Options: map[string]string{"tls": "maybe"}})
	assert.Error(t, err)

	_, err = FromConnectionConfig(datasource.ConnectionConfig{Host: "db", User: "reader", Options: map[string]string{"connection_timeout": "soon"}})
	assert.Error(t, err)

	_, err = FromConnectionConfig(datasource.ConnectionConfig{User: "reader"})
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{Host: "db.internal", Port: 3307, User: "app", Password: "p@ss:word", Database: "sales", TLS: "false", Timeout: 10 * time.Second}

	parsed, err := mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)

	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "sales", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 10*time.Second, parsed.Timeout)
}

func TestConfig_DSNSanitizedForLogs(t *testing.T) {
	cfg := &Config{Host: "db.internal", Port: 3307, User: "app", Password: "p@ss:word", Database: "sales"}

	got := logging.SanitizeConnectionString(cfg.DSN())

	assert.NotContains(t, got, "p@ss:word")
	assert.Contains(t, got, "app:"+logging.RedactedText+"@tcp(db.internal:3307)/sales")
}

func TestBuildProfileQuery(t *testing.T) {
	got := buildProfileQuery("sales", "orders", []string{"status"}, 500)

	assert.Equal(t, "SELECT COUNT(*), COUNT(*) - COUNT(`status`), COUNT(DISTINCT `status`) "+
		"FROM (SELECT * FROM `sales`.`orders` LIMIT 500) AS sampled", got)
}

func TestQuoteName(t *testing.T) {
	assert.Equal(t, "`odd``name`", quoteName("odd`name"))
}

func TestIsProfilable(t *testing.T) {
	assert.True(t, isProfilable("varchar"))
	assert.False(t, isProfilable("longblob"))
	assert.False(t, isProfilable("LONGTEXT"))
	assert.False(t, isProfilable("json"))
}

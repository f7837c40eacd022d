package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
)

const targetsYAML = `
targets:
  oms:
    name: OMS Production
    host_env: OMS_HOST
    user_env: OMS_USER
    password_env: OMS_PASSWORD
    include_databases: [Orders, Billing]
  warehouse:
    type: postgres
    host_env: WH_HOST
    user_env: WH_USER
    password_env: WH_PASSWORD
    database: analytics
    exclude_databases: [scratch]
`

func writeTargets(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(targetsYAML), 0o600))
	return path
}

func TestLoadTargets(t *testing.T) {
	targets, err := LoadTargets(writeTargets(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"oms", "warehouse"}, targets.Keys())

	oms := targets["oms"]
	assert.Equal(t, "OMS Production", oms.Name)
	assert.Equal(t, "mssql", oms.Type, "type defaults to mssql")
	assert.True(t, oms.IncludesDatabase("Orders"))
	assert.False(t, oms.IncludesDatabase("Scratch"))

	wh := targets["warehouse"]
	assert.Equal(t, "warehouse", wh.Name, "name defaults to key")
	assert.Equal(t, []string{"*"}, wh.IncludeDatabases)
	assert.True(t, wh.IncludesDatabase("sales"))
	assert.False(t, wh.IncludesDatabase("scratch"))
}

func TestLoadTargets_MissingFile(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, apperrors.ErrConfigNotFound)
}

const targetsTOML = `
[targets.oms]
name = "OMS Production"
host_env = "OMS_HOST"
user_env = "OMS_USER"
password_env = "OMS_PASSWORD"
include_databases = ["Orders"]
port = 1433
`

func TestLoadTargets_TOMLFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets.toml"), []byte(targetsTOML), 0o600))

	targets, err := LoadTargets(filepath.Join(dir, "targets.yaml"))
	require.NoError(t, err)
	require.Equal(t, []string{"oms"}, targets.Keys())

	oms := targets["oms"]
	assert.Equal(t, "OMS Production", oms.Name)
	assert.Equal(t, "mssql", oms.Type)
	assert.Equal(t, 1433, oms.Port)
	assert.Equal(t, "OMS_PASSWORD", oms.PasswordEnv)
	assert.True(t, oms.IncludesDatabase("Orders"))
	assert.False(t, oms.IncludesDatabase("Billing"))
}

func TestLoadTargets_YAMLWinsOverTOML(t *testing.T) {
	path := writeTargets(t)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "targets.toml"), []byte(targetsTOML), 0o600))

	targets, err := LoadTargets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"oms", "warehouse"}, targets.Keys())
}

func TestTarget_Credentials(t *testing.T) {
	target := Target{Name: "oms", HostEnv: "H", UserEnv: "U", PasswordEnv: "P"}
	env := map[string]string{"H": "db.internal", "U": "reader"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	_, err := target.Credentials(lookup)
	require.ErrorIs(t, err, apperrors.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "P")

	env["P"] = "secret"
	creds, err := target.Credentials(lookup)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", creds.Host)
	assert.Equal(t, "reader", creds.User)
	assert.Equal(t, "secret", creds.Password)
}

func TestResolveHostForDocker(t *testing.T) {
	for _, host := range []string{"mydb.example.com", "192.168.1.100", "host.docker.internal"} {
		assert.Equal(t, host, ResolveHostForDocker(host))
	}
	for _, host := range []string{"localhost", "127.0.0.1"} {
		if IsRunningInDocker() {
			assert.Equal(t, "host.docker.internal", ResolveHostForDocker(host))
		} else {
			assert.Equal(t, host, ResolveHostForDocker(host))
		}
	}
}

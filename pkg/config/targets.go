package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
)

// Target is one source server in targets.yaml. Credentials are never stored in
// the file: HostEnv, UserEnv and PasswordEnv name environment variables.
type Target struct {
	Name             string            `yaml:"name" toml:"name"`
	Type             string            `yaml:"type" toml:"type"`
	HostEnv          string            `yaml:"host_env" toml:"host_env"`
	Port             int               `yaml:"port" toml:"port"`
	UserEnv          string            `yaml:"user_env" toml:"user_env"`
	PasswordEnv      string            `yaml:"password_env" toml:"password_env"`
	Database         string            `yaml:"database" toml:"database"` // initial database for engines that need one
	IncludeDatabases []string          `yaml:"include_databases" toml:"include_databases"`
	ExcludeDatabases []string          `yaml:"exclude_databases" toml:"exclude_databases"`
	Options          map[string]string `yaml:"options" toml:"options"`
}

// Credentials are the resolved connection secrets of a target.
type Credentials struct {
	Host     string
	User     string
	Password string
}

type targetsFile struct {
	Targets map[string]Target `yaml:"targets" toml:"targets"`
}

// Targets is the source inventory keyed by target key.
type Targets map[string]Target

// LoadTargets reads the source inventory. Files ending in .toml are decoded
// as TOML ([targets.<key>] tables); anything else as YAML. When a YAML path
// is missing, a targets.toml next to it is used instead. A missing file
// wraps apperrors.ErrConfigNotFound.
func LoadTargets(path string) (Targets, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && filepath.Ext(path) != ".toml" {
		legacy := strings.TrimSuffix(path, filepath.Ext(path)) + ".toml"
		if _, statErr := os.Stat(legacy); statErr == nil {
			return LoadTargets(legacy)
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read targets: %w", err)
	}

	var file targetsFile
	if filepath.Ext(path) == ".toml" {
		err = toml.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("parse targets %s: %w", path, err)
	}

	targets := make(Targets, len(file.Targets))
	for key, t := range file.Targets {
		if t.Type == "" {
			t.Type = "mssql"
		}
		if t.Name == "" {
			t.Name = key
		}
		if len(t.IncludeDatabases) == 0 {
			t.IncludeDatabases = []string{"*"}
		}
		targets[key] = t
	}
	return targets, nil
}

// Keys returns the target keys in sorted order.
func (t Targets) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Credentials resolves the target's secrets through lookup (os.LookupEnv in
// production). Every missing variable is named in the returned error.
func (t Target) Credentials(lookup func(string) (string, bool)) (Credentials, error) {
	var missing []string
	get := func(name string) string {
		if name == "" {
			return ""
		}
		v, ok := lookup(name)
		if !ok || v == "" {
			missing = append(missing, name)
		}
		return v
	}

	creds := Credentials{
		Host:     get(t.HostEnv),
		User:     get(t.UserEnv),
		Password: get(t.PasswordEnv),
	}
	if t.HostEnv == "" {
		missing = append(missing, "host_env")
	}
	if len(missing) > 0 {
		return Credentials{}, fmt.Errorf("%w for target %s: %s", apperrors.ErrMissingCredentials, t.Name, strings.Join(missing, ", "))
	}
	creds.Host = ResolveHostForDocker(creds.Host)
	return creds, nil
}

// IncludesDatabase reports whether a discovered database should be scanned.
func (t Target) IncludesDatabase(name string) bool {
	if slices.Contains(t.ExcludeDatabases, name) {
		return false
	}
	return slices.Contains(t.IncludeDatabases, "*") || slices.Contains(t.IncludeDatabases, name)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the process runs inside a Docker container,
// based on the presence of /.dockerenv. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker rewrites localhost to host.docker.internal when running
// inside Docker so that sources on the host machine stay reachable.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}

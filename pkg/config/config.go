package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-catalog.
// Configuration can come from an optional YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Source credentials never live here:
// targets.yaml names the environment variables that hold them.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// CatalogDir holds every artifact: the snapshot, the ontology, analyses, annotations.
	// Defaults to ~/.ds_catalog when empty.
	CatalogDir string `yaml:"catalog_dir" env:"DENG_CATALOG_DIR" env-default:""`

	// Username attributes annotations and review feedback. Resolved further by
	// annotations.ResolveAuthor when empty.
	Username string `yaml:"username" env:"DENG_USERNAME" env-default:""`

	Scan     ScanConfig     `yaml:"scan"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Serve    ServeConfig    `yaml:"serve"`

	// Paths is derived from CatalogDir (not from config file).
	Paths Paths `yaml:"-"`
}

// ScanConfig controls catalog refreshes.
type ScanConfig struct {
	// Profile enables null-rate and distinct-count profiling (slow).
	Profile bool `yaml:"profile" env:"CATALOG_PROFILE" env-default:"false"`
	// ProfileSample is the number of rows sampled per table; 0 scans the whole table.
	ProfileSample int `yaml:"profile_sample" env:"CATALOG_PROFILE_SAMPLE" env-default:"1000"`
	// TimeoutSeconds bounds the scan of a single database.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"SCAN_TIMEOUT_SECONDS" env-default:"300"`
	// Parallelism is the number of databases scanned at once within a target.
	Parallelism int `yaml:"parallelism" env:"SCAN_PARALLELISM" env-default:"4"`
	// StaleDays is the age after which status reports a target as stale.
	StaleDays int `yaml:"stale_days" env:"CATALOG_STALE_DAYS" env-default:"7"`
}

// Timeout returns the per-database scan timeout.
func (s ScanConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// AnalysisConfig controls procedure analysis.
type AnalysisConfig struct {
	// TopN is how many of the most important procedures get parsed.
	TopN int `yaml:"top_n" env:"ANALYZE_TOP_N" env-default:"100"`
	// Namespace prefixes procedure identifiers in the analysis document.
	Namespace string `yaml:"namespace" env:"ANALYZE_NAMESPACE" env-default:"catalog"`
}

// ServeConfig controls the HTTP server started by the serve command.
type ServeConfig struct {
	Addr string `yaml:"addr" env:"SERVE_ADDR" env-default:"127.0.0.1:3480"`
}

// Load reads configuration from config.yaml (when present) with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	dir, err := resolveCatalogDir(cfg.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog directory: %w", err)
	}
	cfg.CatalogDir = dir
	cfg.Paths = NewPaths(dir)

	return cfg, nil
}

// resolveCatalogDir expands a leading ~ and applies the ~/.ds_catalog default.
func resolveCatalogDir(dir string) (string, error) {
	if dir != "" && dir != "~" && !strings.HasPrefix(dir, "~/") {
		return filepath.Clean(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if dir == "" {
		return filepath.Join(home, ".ds_catalog"), nil
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
}

// Paths locates every artifact under the catalog directory.
type Paths struct {
	Dir             string
	Metadata        string // SQLite catalog snapshot
	LastScan        string
	CatalogSummary  string
	Targets         string
	Rules           string
	Ontology        string
	OntologySummary string
	Analysis        string
	AnnotationsDir  string
	ReviewsDir      string
	ReviewWorkbook  string
}

// NewPaths derives artifact paths from a catalog directory.
func NewPaths(dir string) Paths {
	return Paths{
		Dir:             dir,
		Metadata:        filepath.Join(dir, "metadata.db"),
		LastScan:        filepath.Join(dir, "last_scan.json"),
		CatalogSummary:  filepath.Join(dir, "DATA_CATALOG_SUMMARY.md"),
		Targets:         filepath.Join(dir, "targets.yaml"),
		Rules:           filepath.Join(dir, "ontology_config.yaml"),
		Ontology:        filepath.Join(dir, "ontology.jsonld"),
		OntologySummary: filepath.Join(dir, "ONTOLOGY_SUMMARY.md"),
		Analysis:        filepath.Join(dir, "procedure_analysis.json"),
		AnnotationsDir:  filepath.Join(dir, "annotations"),
		ReviewsDir:      filepath.Join(dir, "reviews"),
		ReviewWorkbook:  filepath.Join(dir, "procedure_review.xlsx"),
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
)

const (
	// DefaultPriority applies to rules that declare none.
	DefaultPriority = 50

	defaultNamespace = "catalog"
	defaultBaseURI   = "https://example.com/ontology#"
)

// Rules is the classification configuration read from ontology_config.yaml.
type Rules struct {
	Ontology          OntologySettings       `yaml:"ontology"`
	Domains           []DomainRule           `yaml:"domains"`
	SemanticRoles     []RoleRule             `yaml:"semantic_roles"`
	RelationshipTypes []RelationshipRule     `yaml:"relationship_types"`
	Metrics           []MetricDefinition     `yaml:"metrics"`
	CoreEntities      []CoreEntityDefinition `yaml:"core_entities"`
}

// OntologySettings names the generated document.
type OntologySettings struct {
	Namespace string            `yaml:"namespace"`
	BaseURI   string            `yaml:"base_uri"`
	Label     string            `yaml:"label"`
	Comment   string            `yaml:"comment"`
	Context   map[string]string `yaml:"context"`
}

// DomainRule assigns tables to a business domain.
type DomainRule struct {
	ID               string   `yaml:"id"`
	Label            string   `yaml:"label"`
	Description      string   `yaml:"description"`
	Priority         *int     `yaml:"priority"`
	TablePatterns    []string `yaml:"table_patterns"`
	DatabaseAffinity []string `yaml:"database_affinity"`
	IsFallback       bool     `yaml:"is_fallback"`
}

// RoleRule assigns a semantic role to columns.
type RoleRule struct {
	ID          string         `yaml:"id"`
	Label       string         `yaml:"label"`
	Description string         `yaml:"description"`
	Priority    *int           `yaml:"priority"`
	Patterns    []string       `yaml:"patterns"`
	DataTypes   []string       `yaml:"data_types"`
	Conditions  RoleConditions `yaml:"conditions"`
	IsFallback  bool           `yaml:"is_fallback"`
}

// RoleConditions are key constraints a column must satisfy for a role rule to apply.
type RoleConditions struct {
	IsPrimaryKey bool `yaml:"is_primary_key"`
	IsForeignKey bool `yaml:"is_foreign_key"`
}

// RelationshipRule names the relationship implied by a foreign key column pattern.
type RelationshipRule struct {
	Pattern string `yaml:"pattern"`
	Type    string `yaml:"type"`
	Inverse string `yaml:"inverse"`
}

// MetricDefinition is a curated business metric passed through to the ontology.
type MetricDefinition struct {
	ID                    string            `yaml:"id"`
	Label                 string            `yaml:"label"`
	Description           string            `yaml:"description"`
	Formula               string            `yaml:"formula"`
	SourceColumns         []string          `yaml:"source_columns"`
	Conditions            []MetricCondition `yaml:"conditions"`
	ObservationWindowDays *int              `yaml:"observation_window_days"`
	Notes                 string            `yaml:"notes"`
}

// MetricCondition is one predicate of a curated metric.
type MetricCondition struct {
	Field    string `yaml:"field" json:"field"`
	Operator string `yaml:"operator" json:"operator"`
	Value    any    `yaml:"value" json:"value"`
}

// CoreEntityDefinition marks a table as a core business entity.
type CoreEntityDefinition struct {
	Table           string `yaml:"table"`
	Label           string `yaml:"label"`
	Description     string `yaml:"description"`
	KeyColumn       string `yaml:"key_column"`
	IsAggregateRoot bool   `yaml:"is_aggregate_root"`
	BelongsTo       string `yaml:"belongs_to"`
}

// EffectivePriority returns the declared priority or DefaultPriority.
func (r DomainRule) EffectivePriority() int { return priorityOrDefault(r.Priority) }

// EffectivePriority returns the declared priority or DefaultPriority.
func (r RoleRule) EffectivePriority() int { return priorityOrDefault(r.Priority) }

func priorityOrDefault(p *int) int {
	if p == nil {
		return DefaultPriority
	}
	return *p
}

// LoadRules reads the classification configuration. A missing file wraps
// apperrors.ErrConfigNotFound; more than one fallback rule per rule set wraps
// apperrors.ErrValidation.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if rules.Ontology.Namespace == "" {
		rules.Ontology.Namespace = defaultNamespace
	}
	if rules.Ontology.BaseURI == "" {
		rules.Ontology.BaseURI = defaultBaseURI
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *Rules) validate() error {
	fallbacks := 0
	for _, d := range r.Domains {
		if d.ID == "" {
			return fmt.Errorf("%w: domain without id", apperrors.ErrValidation)
		}
		if d.IsFallback {
			fallbacks++
		}
	}
	if fallbacks > 1 {
		return fmt.Errorf("%w: %d fallback domains, expected at most one", apperrors.ErrValidation, fallbacks)
	}

	fallbacks = 0
	for _, role := range r.SemanticRoles {
		if role.ID == "" {
			return fmt.Errorf("%w: semantic role without id", apperrors.ErrValidation)
		}
		if role.IsFallback {
			fallbacks++
		}
	}
	if fallbacks > 1 {
		return fmt.Errorf("%w: %d fallback semantic roles, expected at most one", apperrors.ErrValidation, fallbacks)
	}

	for _, m := range r.Metrics {
		if m.ID == "" {
			return fmt.Errorf("%w: metric without id", apperrors.ErrValidation)
		}
	}
	for _, c := range r.CoreEntities {
		if c.Table == "" {
			return fmt.Errorf("%w: core entity without table", apperrors.ErrValidation)
		}
	}
	return nil
}

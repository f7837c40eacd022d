package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
)

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(`
ontology:
  namespace: oms
domains:
  - id: OrderDomain
    priority: 10
    table_patterns: ["Order*", "*Item"]
  - id: BillingDomain
    database_affinity: [Billing]
  - id: UncategorizedDomain
    is_fallback: true
semantic_roles:
  - id: Identifier
    priority: 0
    patterns: ["*ID"]
    conditions:
      is_primary_key: true
  - id: Monetary
    patterns: [amount, price]
    data_types: [money, decimal]
relationship_types:
  - pattern: "*CustomerID"
    type: placedBy
    inverse: placed
metrics:
  - id: churn
    formula: "cancelled / total"
    conditions:
      - field: StatusCode
        operator: "="
        value: CNCL
    observation_window_days: 30
core_entities:
  - table: Orders
    is_aggregate_root: true
`))
	require.NoError(t, err)

	assert.Equal(t, "oms", rules.Ontology.Namespace)
	assert.Equal(t, defaultBaseURI, rules.Ontology.BaseURI)
	require.Len(t, rules.Domains, 3)
	assert.Equal(t, 10, rules.Domains[0].EffectivePriority())
	assert.Equal(t, DefaultPriority, rules.Domains[1].EffectivePriority())
	assert.Equal(t, 0, rules.SemanticRoles[0].EffectivePriority())
	assert.True(t, rules.SemanticRoles[0].Conditions.IsPrimaryKey)
	assert.Equal(t, []string{"money", "decimal"}, rules.SemanticRoles[1].DataTypes)
	require.Len(t, rules.Metrics, 1)
	require.NotNil(t, rules.Metrics[0].ObservationWindowDays)
	assert.Equal(t, 30, *rules.Metrics[0].ObservationWindowDays)
	assert.Equal(t, "CNCL", rules.Metrics[0].Conditions[0].Value)
}

func TestParseRules_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"two fallback domains", "domains: [{id: A, is_fallback: true}, {id: B, is_fallback: true}]"},
		{"two fallback roles", "semantic_roles: [{id: A, is_fallback: true}, {id: B, is_fallback: true}]"},
		{"domain without id", "domains: [{label: x}]"},
		{"core entity without table", "core_entities: [{label: x}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			require.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "ontology_config.yaml"))
	require.ErrorIs(t, err, apperrors.ErrConfigNotFound)
}

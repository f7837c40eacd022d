package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
)

// Unclassified is returned when no role rule matches and no fallback is configured.
const Unclassified = "Unclassified"

type roleRule struct {
	id        string
	patterns  []Pattern
	dataTypes map[string]bool
	requirePK bool
	requireFK bool
}

// RoleClassifier assigns semantic roles to columns.
type RoleClassifier struct {
	rules    []roleRule
	fallback string
}

// NewRoleClassifier compiles role rules and orders them by priority.
func NewRoleClassifier(rules []config.RoleRule) (*RoleClassifier, error) {
	sorted := append([]config.RoleRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectivePriority() < sorted[j].EffectivePriority()
	})

	c := &RoleClassifier{fallback: Unclassified}
	for _, r := range sorted {
		if r.IsFallback {
			c.fallback = r.ID
			continue
		}
		patterns, err := compileAll(r.Patterns)
		if err != nil {
			return nil, fmt.Errorf("semantic role %s: %w", r.ID, err)
		}
		var types map[string]bool
		if len(r.DataTypes) > 0 {
			types = make(map[string]bool, len(r.DataTypes))
			for _, t := range r.DataTypes {
				types[strings.ToLower(t)] = true
			}
		}
		c.rules = append(c.rules, roleRule{
			id:        r.ID,
			patterns:  patterns,
			dataTypes: types,
			requirePK: r.Conditions.IsPrimaryKey,
			requireFK: r.Conditions.IsForeignKey,
		})
	}
	return c, nil
}

// Classify returns the semantic role of a column. A rule whose name pattern
// matches but whose data types exclude the column falls through to the next rule.
func (c *RoleClassifier) Classify(column, dataType string, isPrimaryKey, isForeignKey bool) string {
	dataType = strings.ToLower(dataType)
	for _, r := range c.rules {
		if (r.requirePK && !isPrimaryKey) || (r.requireFK && !isForeignKey) {
			continue
		}
		if !anyMatch(r.patterns, column) {
			continue
		}
		if r.dataTypes == nil || r.dataTypes[dataType] {
			return r.id
		}
	}
	return c.fallback
}

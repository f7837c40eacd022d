package classify

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
)

const (
	defaultRelationship        = "references"
	defaultInverseRelationship = "referencedBy"
)

// Relationship is the inferred meaning of a foreign key edge.
type Relationship struct {
	Type    string
	Inverse string
}

type relationshipRule struct {
	pattern glob.Glob
	rel     Relationship
}

// RelationshipInferencer names foreign key edges from the FK column name.
type RelationshipInferencer struct {
	rules []relationshipRule
}

// NewRelationshipInferencer compiles relationship rules in declaration order.
// Patterns are shell globs matched against the whole, case-sensitive column name.
func NewRelationshipInferencer(rules []config.RelationshipRule) (*RelationshipInferencer, error) {
	r := &RelationshipInferencer{}
	for _, rule := range rules {
		g, err := glob.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("relationship pattern %q: %w", rule.Pattern, err)
		}
		rel := Relationship{Type: rule.Type, Inverse: rule.Inverse}
		if rel.Type == "" {
			rel.Type = defaultRelationship
		}
		if rel.Inverse == "" {
			rel.Inverse = defaultInverseRelationship
		}
		r.rules = append(r.rules, relationshipRule{pattern: g, rel: rel})
	}
	return r, nil
}

// Infer returns the first rule matching the FK column, or references/referencedBy.
func (r *RelationshipInferencer) Infer(column string) Relationship {
	for _, rule := range r.rules {
		if rule.pattern.Match(column) {
			return rule.rel
		}
	}
	return Relationship{Type: defaultRelationship, Inverse: defaultInverseRelationship}
}

package classify

import (
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
)

// Classifier bundles the three rule sets of one configuration.
type Classifier struct {
	Domains       *DomainClassifier
	Roles         *RoleClassifier
	Relationships *RelationshipInferencer
}

// New compiles every rule set of rules.
func New(rules *config.Rules) (*Classifier, error) {
	domains, err := NewDomainClassifier(rules.Domains)
	if err != nil {
		return nil, err
	}
	roles, err := NewRoleClassifier(rules.SemanticRoles)
	if err != nil {
		return nil, err
	}
	rels, err := NewRelationshipInferencer(rules.RelationshipTypes)
	if err != nil {
		return nil, err
	}
	return &Classifier{Domains: domains, Roles: roles, Relationships: rels}, nil
}

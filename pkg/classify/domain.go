package classify

import (
	"fmt"
	"sort"

	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
)

// UncategorizedDomain is returned when no domain rule matches and no fallback is configured.
const UncategorizedDomain = "UncategorizedDomain"

type domainRule struct {
	id       string
	patterns []Pattern
	affinity map[string]bool
}

// DomainClassifier assigns tables to business domains.
type DomainClassifier struct {
	rules    []domainRule
	fallback string
}

// NewDomainClassifier compiles domain rules and orders them by priority.
// Rules with equal priority keep their declaration order.
func NewDomainClassifier(rules []config.DomainRule) (*DomainClassifier, error) {
	sorted := append([]config.DomainRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectivePriority() < sorted[j].EffectivePriority()
	})

	c := &DomainClassifier{fallback: UncategorizedDomain}
	for _, r := range sorted {
		if r.IsFallback {
			c.fallback = r.ID
			continue
		}
		patterns, err := compileAll(r.TablePatterns)
		if err != nil {
			return nil, fmt.Errorf("domain %s: %w", r.ID, err)
		}
		var affinity map[string]bool
		if len(r.DatabaseAffinity) > 0 {
			affinity = make(map[string]bool, len(r.DatabaseAffinity))
			for _, db := range r.DatabaseAffinity {
				affinity[db] = true
			}
		}
		c.rules = append(c.rules, domainRule{id: r.ID, patterns: patterns, affinity: affinity})
	}
	return c, nil
}

// Classify returns the domain id of a table. Rules without database affinity
// match on table patterns alone. Rules with affinity only apply to tables of
// those databases; with no patterns they claim every table of the database.
func (c *DomainClassifier) Classify(database, table string) string {
	for _, r := range c.rules {
		if r.affinity == nil {
			if anyMatch(r.patterns, table) {
				return r.id
			}
			continue
		}
		if !r.affinity[database] {
			continue
		}
		if len(r.patterns) == 0 || anyMatch(r.patterns, table) {
			return r.id
		}
	}
	return c.fallback
}

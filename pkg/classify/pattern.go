// Package classify assigns business domains to tables, semantic roles to
// columns, and relationship types to foreign keys using ordered, priority
// based rules from ontology_config.yaml.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Pattern matches table or column names case-insensitively.
type Pattern interface {
	Match(name string) bool
}

// CompilePattern translates a rule pattern into a matcher:
//
//	*Item    ends with "item"
//	Order*   starts with "order"
//	Ord*Line whole name, * matches anything
//	status   contains "status"
//
// A pattern without * that starts with ^ or ends with $ is a regular expression.
func CompilePattern(pattern string) (Pattern, error) {
	if !strings.Contains(pattern, "*") && (strings.HasPrefix(pattern, "^") || strings.HasSuffix(pattern, "$")) {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		return regexPattern{re}, nil
	}

	lower := strings.ToLower(pattern)
	var expr string
	if !strings.Contains(lower, "*") {
		expr = "*" + glob.QuoteMeta(lower) + "*"
	} else {
		parts := strings.Split(lower, "*")
		for i, p := range parts {
			parts[i] = glob.QuoteMeta(p)
		}
		expr = strings.Join(parts, "*")
	}

	g, err := glob.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return foldedGlob{g}, nil
}

type foldedGlob struct {
	g glob.Glob
}

func (f foldedGlob) Match(name string) bool {
	return f.g.Match(strings.ToLower(name))
}

type regexPattern struct {
	re *regexp.Regexp
}

func (r regexPattern) Match(name string) bool {
	return r.re.MatchString(name)
}

func compileAll(patterns []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		m, err := CompilePattern(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func anyMatch(patterns []Pattern, name string) bool {
	for _, p := range patterns {
		if p.Match(name) {
			return true
		}
	}
	return false
}

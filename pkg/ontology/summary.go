package ontology

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

const (
	largeTableRows      = 1_000_000
	maxLargeTables      = 15
	maxDomainReviewRows = 10
	maxUnclassifiedRows = 15
	maxNullRateRows     = 10
	maxDomainComment    = 50
	maxRolePatterns     = 3
)

// Summary renders ONTOLOGY_SUMMARY.md for people who will not read JSON-LD.
func Summary(doc *models.OntologyDocument, rules *config.Rules) string {
	p := message.NewPrinter(language.English)
	var sb strings.Builder
	line := func(format string, args ...any) {
		sb.WriteString(p.Sprintf(format, args...))
		sb.WriteByte('\n')
	}

	line("# %s Summary", doc.Label)
	line("")
	line("*Generated: %s*", doc.GeneratedAt.Format("2006-01-02 15:04"))
	line("")
	line("## Overview")
	line("")
	line("%s", doc.Comment)
	line("")
	line("### Statistics")
	line("")
	line("- **Total Columns:** %d", doc.SourceStats.TotalColumns)
	line("- **Total Tables:** %d", doc.SourceStats.TotalTables)
	line("- **Total Databases:** %d", doc.SourceStats.TotalDatabases)
	line("- **Foreign Key Relationships:** %d", doc.SourceStats.TotalForeignKeys)
	line("")

	line("## Business Domains")
	line("")
	line("| Domain | Description | Tables |")
	line("|--------|-------------|--------|")
	for _, d := range doc.Domains {
		line("| %s | %s | %d |", d.Label, truncateRunes(d.Comment, maxDomainComment), d.TableCount)
	}
	line("")

	line("## Core Entities")
	line("")
	line("| Entity | Table | Aggregate Root | Key Column |")
	line("|--------|-------|----------------|------------|")
	for _, e := range doc.CoreEntities {
		root := "No"
		if e.IsAggregateRoot {
			root = "Yes"
		}
		line("| %s | %s | %s | %s |", e.Label, e.Table, root, e.KeyColumn)
	}
	line("")

	line("## Semantic Roles")
	line("")
	line("| Role | Patterns |")
	line("|------|----------|")
	for _, r := range rules.SemanticRoles {
		if r.IsFallback {
			continue
		}
		pats := r.Patterns
		if len(pats) > maxRolePatterns {
			pats = pats[:maxRolePatterns]
		}
		line("| %s | `%s` |", valueOr(r.Label, r.ID), strings.Join(pats, ", "))
	}
	line("")

	line("## Business Metrics")
	line("")
	for _, m := range doc.Metrics {
		line("### %s", m.Label)
		line("")
		line("**Description:** %s", m.Comment)
		line("")
		line("**Formula:** `%s`", m.Formula)
		line("")
		if len(m.SourceColumns) > 0 {
			line("**Source Columns:**")
			for _, c := range m.SourceColumns {
				line("- `%s`", c)
			}
			line("")
		}
		if len(m.Conditions) > 0 {
			line("**Conditions:**")
			for _, c := range m.Conditions {
				line("- `%s %s %s`", c.Field, c.Operator, jsonutil.FlexibleString(c.Value))
			}
			line("")
		}
		if m.Notes != "" {
			line("**Notes:** %s", m.Notes)
			line("")
		}
	}

	line("## Relationships")
	line("")
	line("The ontology contains **%d** foreign key relationships.", len(doc.Relationships))
	line("")
	line("### Relationship Types")
	line("")
	line("| Pattern | Type | Inverse |")
	line("|---------|------|---------|")
	for _, r := range rules.RelationshipTypes {
		line("| `%s` | %s | %s |", r.Pattern, r.Type, r.Inverse)
	}
	line("")

	line("## Large Tables (>1M rows)")
	line("")
	line("| Table | Domain | Rows | Columns |")
	line("|-------|--------|------|---------|")
	for _, e := range largeEntities(doc.Entities) {
		domain := e.BelongsToDomain[strings.LastIndex(e.BelongsToDomain, ":")+1:]
		line("| %s.%s | %s | %d | %d |", e.Database, e.Label, domain, e.RowCount, e.ColumnCount)
	}
	line("")

	q := doc.ReviewQueue
	by := q.Summary.ByCategory
	line("## Items Requiring Human Review")
	line("")
	line("**Total items needing review: %d**", q.Summary.TotalItemsNeedingReview)
	line("")
	line("| Category | Count | Description |")
	line("|----------|-------|-------------|")
	line("| Domain Classification | %d | Tables not assigned to a business domain |", by[models.ReviewCategoryDomain])
	line("| Unclassified Columns | %d | Columns with no semantic role |", by[models.ReviewCategoryUnclassified])
	line("| High Null Rate | %d | Columns >50%% null |", by[models.ReviewCategoryHighNullRate])
	line("| Low Cardinality | %d | Potential reference/code columns |", by[models.ReviewCategoryLowCardinality])
	line("")

	if len(q.DomainReview) > 0 {
		line("### Tables Needing Domain Classification")
		line("")
		line("| Table | Rows | Suggested Action |")
		line("|-------|------|------------------|")
		for _, item := range head(q.DomainReview, maxDomainReviewRows) {
			line("| %s | %d | %s |", item.Table, item.RowCount, item.SuggestedAction)
		}
		if extra := len(q.DomainReview) - maxDomainReviewRows; extra > 0 {
			line("| ... | ... | *(%d more)* |", extra)
		}
		line("")
	}

	if len(q.UnclassifiedColumns) > 0 {
		line("### Sample Unclassified Columns")
		line("")
		line("| Column | Table | Data Type |")
		line("|--------|-------|-----------|")
		for _, item := range head(q.UnclassifiedColumns, maxUnclassifiedRows) {
			line("| %s | %s | %s |", item.Column, item.Table, item.DataType)
		}
		if extra := len(q.UnclassifiedColumns) - maxUnclassifiedRows; extra > 0 {
			line("| ... | ... | *(%d more)* |", extra)
		}
		line("")
	}

	if len(q.HighNullRateColumns) > 0 {
		line("### High Null Rate Columns (>50%%)")
		line("")
		line("| Column | Table | Null Rate |")
		line("|--------|-------|-----------|")
		for _, item := range head(q.HighNullRateColumns, maxNullRateRows) {
			line("| %s | %s | %s |", item.Column, item.Table, percent(*item.NullRate))
		}
		line("")
	}

	return sb.String()
}

func largeEntities(entities []models.EntityNode) []models.EntityNode {
	var large []models.EntityNode
	for _, e := range entities {
		if e.RowCount > largeTableRows {
			large = append(large, e)
		}
	}
	sort.SliceStable(large, func(i, j int) bool { return large[i].RowCount > large[j].RowCount })
	return head(large, maxLargeTables)
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

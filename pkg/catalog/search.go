package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/sql"
)

// Keyword weights and key bonuses of the relevance score.
const (
	tableMatchScore    = 3
	columnMatchScore   = 2
	databaseMatchScore = 1
	primaryKeyBonus    = 2
	foreignKeyBonus    = 1

	DefaultSearchLimit = 20
)

// ValidateKeywords rejects keywords that look like SQL injection payloads.
// Search itself never builds SQL from keywords; the check keeps hostile
// input out of logs and tool transcripts.
func ValidateKeywords(keywords []string) error {
	if suspicious := sql.CheckKeywords(keywords); len(suspicious) > 0 {
		return fmt.Errorf("%w: keyword %q looks like SQL injection (fingerprint %s)",
			apperrors.ErrValidation, suspicious[0].Keyword, suspicious[0].Fingerprint)
	}
	return nil
}

// Search ranks rows against keywords. Each keyword scores 3 when the table
// name contains it, 2 for the column name and 1 for the database name, case
// insensitively. Rows scoring 0 are dropped; the rest are ranked by
// relevance (score plus key bonuses) with row count as the tie-break and
// truncated to topN. No keywords means no matches.
func Search(rows []models.CatalogRow, keywords []string, topN int) []models.ScoredRow {
	terms := normalizeKeywords(keywords)
	if len(terms) == 0 || topN <= 0 {
		return []models.ScoredRow{}
	}

	results := []models.ScoredRow{}
	for i := range rows {
		r := &rows[i]
		score := keywordScore(r, terms)
		if score == 0 {
			continue
		}
		scored := models.ScoredRow{CatalogRow: *r, KeywordScore: score}
		if r.IsPrimaryKey {
			scored.PKBonus = primaryKeyBonus
		}
		if r.IsForeignKey {
			scored.FKBonus = foreignKeyBonus
		}
		scored.Relevance = scored.KeywordScore + scored.PKBonus + scored.FKBonus
		results = append(results, scored)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].RowCountEstimate > results[j].RowCountEstimate
	})

	if len(results) > topN {
		results = results[:topN]
	}
	return results
}

func normalizeKeywords(keywords []string) []string {
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			terms = append(terms, kw)
		}
	}
	return terms
}

func keywordScore(r *models.CatalogRow, terms []string) int {
	table := strings.ToLower(r.TableName)
	column := strings.ToLower(r.ColumnName)
	db := strings.ToLower(r.Database)

	score := 0
	for _, t := range terms {
		if strings.Contains(table, t) {
			score += tableMatchScore
		}
		if strings.Contains(column, t) {
			score += columnMatchScore
		}
		if strings.Contains(db, t) {
			score += databaseMatchScore
		}
	}
	return score
}

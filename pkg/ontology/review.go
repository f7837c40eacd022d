package ontology

import (
	"fmt"
	"math"
	"strings"

	"github.com/ekaya-inc/ekaya-catalog/pkg/classify"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

const (
	lowCardinalityMaxDistinct = 20
	lowCardinalityMinRows     = 100
)

// categoricalRoles already describe low-cardinality columns.
var categoricalRoles = map[string]bool{
	"BooleanFlag":     true,
	"StatusIndicator": true,
	"Code":            true,
}

// BuildReviewQueue rescans assembled entities for tables without a domain
// and columns that are unclassified, mostly null, or suspiciously
// low-cardinality.
func BuildReviewQueue(entities []models.EntityNode) models.ReviewQueue {
	q := models.ReviewQueue{
		DomainReview:          []models.DomainReviewItem{},
		SemanticRoleReview:    []models.ColumnReviewItem{},
		UnclassifiedColumns:   []models.ColumnReviewItem{},
		HighNullRateColumns:   []models.ColumnReviewItem{},
		LowCardinalityColumns: []models.ColumnReviewItem{},
	}

	for i := range entities {
		e := &entities[i]
		if strings.HasSuffix(e.BelongsToDomain, ":"+classify.UncategorizedDomain) {
			q.DomainReview = append(q.DomainReview, models.DomainReviewItem{
				ID:              e.ID,
				Table:           e.Database + "." + e.Label,
				RowCount:        e.RowCount,
				Reason:          "Table not classified into any business domain",
				SuggestedAction: "Review table purpose and assign to appropriate domain",
			})
		}

		for j := range e.Columns {
			c := &e.Columns[j]
			if c.SemanticRole == classify.Unclassified {
				q.UnclassifiedColumns = append(q.UnclassifiedColumns, models.ColumnReviewItem{
					ID:              c.ID,
					Column:          c.Label,
					Table:           e.Label,
					DataType:        c.DataType,
					Reason:          "No semantic role pattern matched",
					SuggestedAction: "Add a pattern to ontology_config.yaml or classify manually",
				})
			}

			if c.NullRate != nil && *c.NullRate > HighNullRate {
				q.HighNullRateColumns = append(q.HighNullRateColumns, models.ColumnReviewItem{
					ID:              c.ID,
					Column:          c.Label,
					Table:           e.Label,
					NullRate:        c.NullRate,
					Reason:          fmt.Sprintf("Column is %s null", percent(*c.NullRate)),
					SuggestedAction: "Verify if column is deprecated or has data quality issues",
				})
			}

			if isLowCardinality(c) {
				q.LowCardinalityColumns = append(q.LowCardinalityColumns, models.ColumnReviewItem{
					ID:              c.ID,
					Column:          c.Label,
					Table:           e.Label,
					DistinctCount:   c.DistinctCount,
					CurrentRole:     c.SemanticRole,
					Reason:          fmt.Sprintf("Only %d distinct values - may be a code/status field", *c.DistinctCount),
					SuggestedAction: "Consider reclassifying as Code or StatusIndicator",
				})
			}
		}
	}

	q.Summary = models.ReviewSummary{
		TotalItemsNeedingReview: len(q.DomainReview) + len(q.UnclassifiedColumns) +
			len(q.HighNullRateColumns) + len(q.LowCardinalityColumns),
		ByCategory: map[string]int{
			models.ReviewCategoryDomain:         len(q.DomainReview),
			models.ReviewCategoryUnclassified:   len(q.UnclassifiedColumns),
			models.ReviewCategoryHighNullRate:   len(q.HighNullRateColumns),
			models.ReviewCategoryLowCardinality: len(q.LowCardinalityColumns),
		},
	}
	return q
}

func isLowCardinality(c *models.ColumnNode) bool {
	if c.DistinctCount == nil || c.ProfiledRows == nil {
		return false
	}
	distinct := *c.DistinctCount
	return *c.ProfiledRows > lowCardinalityMinRows &&
		distinct > 0 && distinct < lowCardinalityMaxDistinct &&
		!categoricalRoles[c.SemanticRole]
}

// percent renders a rate as a whole percentage, "0.734" -> "73%".
func percent(rate float64) string {
	return fmt.Sprintf("%d%%", int(math.RoundToEven(rate*100)))
}

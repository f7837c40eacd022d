package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

func searchCatalog() []models.CatalogRow {
	id := row("prod", "Sales", "Customer", "CustomerID")
	id.IsPrimaryKey = true
	id.RowCountEstimate = 100

	name := row("prod", "Sales", "Customer", "Name")
	name.RowCountEstimate = 100

	fk := row("prod", "Sales", "Orders", "CustomerID")
	fk.IsForeignKey = true
	fk.FKReferences = "dbo.Customer.CustomerID"
	fk.RowCountEstimate = 5000

	big := row("prod", "Billing", "Invoice", "Total")
	big.RowCountEstimate = 9_000_000

	small := row("prod", "Billing", "Payment", "Total")
	small.RowCountEstimate = 10

	return []models.CatalogRow{name, id, fk, big, small}
}

func TestSearch_Scoring(t *testing.T) {
	results := Search(searchCatalog(), []string{"customer"}, 10)

	require.Len(t, results, 3)
	// table 3 + column 2 + pk 2
	assert.Equal(t, "CustomerID", results[0].ColumnName)
	assert.Equal(t, "Customer", results[0].TableName)
	assert.Equal(t, 5, results[0].KeywordScore)
	assert.Equal(t, 2, results[0].PKBonus)
	assert.Equal(t, 7, results[0].Relevance)

	// column 2 + fk 1 beats table-only 3 on row count
	assert.Equal(t, "Orders", results[1].TableName)
	assert.Equal(t, 3, results[1].Relevance)
	assert.Equal(t, "Name", results[2].ColumnName)
	assert.Equal(t, 3, results[2].Relevance)
}

func TestSearch_DatabaseMatchAndCaseFolding(t *testing.T) {
	results := Search(searchCatalog(), []string{"BILLING"}, 10)

	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Relevance)
	assert.Equal(t, "Invoice", results[0].TableName, "row count breaks the tie")
	assert.Equal(t, "Payment", results[1].TableName)
}

func TestSearch_KeywordOrderIndependent(t *testing.T) {
	a := Search(searchCatalog(), []string{"customer", "total"}, 10)
	b := Search(searchCatalog(), []string{"total", "customer"}, 10)

	assert.Equal(t, a, b)
	assert.Len(t, a, 5)
}

func TestSearch_AddingKeywordNeverLowersScore(t *testing.T) {
	one := Search(searchCatalog(), []string{"customer"}, 10)
	two := Search(searchCatalog(), []string{"customer", "id"}, 10)

	scores := map[string]int{}
	for _, r := range two {
		scores[r.Key().String()+"."+r.ColumnName] = r.KeywordScore
	}
	for _, r := range one {
		assert.GreaterOrEqual(t, scores[r.Key().String()+"."+r.ColumnName], r.KeywordScore)
	}
}

func TestSearch_ExcludesZeroScoreAndTruncates(t *testing.T) {
	assert.Empty(t, Search(searchCatalog(), []string{"nothing"}, 10))

	results := Search(searchCatalog(), []string{"customer"}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, 7, results[0].Relevance)
}

func TestSearch_EmptyKeywords(t *testing.T) {
	assert.Empty(t, Search(searchCatalog(), nil, 10))
	assert.Empty(t, Search(searchCatalog(), []string{"  ", ""}, 10))
	assert.NotNil(t, Search(searchCatalog(), nil, 10))
}

func TestValidateKeywords(t *testing.T) {
	require.NoError(t, ValidateKeywords([]string{"customer", "order_total"}))

	err := ValidateKeywords([]string{"customer", "' OR '1'='1"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

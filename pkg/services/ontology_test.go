package services

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/ontology"
	"github.com/ekaya-inc/ekaya-catalog/pkg/procedures"
	"github.com/ekaya-inc/ekaya-catalog/pkg/testhelpers"
)

const salesRules = `
ontology:
  namespace: sales
  label: Sales Ontology
domains:
  - id: CustomerDomain
    table_patterns: ["customer*"]
  - id: OrderDomain
    table_patterns: ["order*"]
  - id: UncategorizedDomain
    is_fallback: true
semantic_roles:
  - id: Identifier
    patterns: ["*id"]
  - id: Unclassified
    is_fallback: true
`

func newOntologyService(t *testing.T, paths config.Paths) OntologyService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewOntologyService(catalog.NewStore(paths.Metadata, logger), paths, logger)
}

func TestOntologyService_Build(t *testing.T) {
	paths := testhelpers.WriteCatalog(t, testhelpers.SalesCatalog())
	require.NoError(t, os.WriteFile(paths.Rules, []byte(salesRules), 0o600))
	require.NoError(t, procedures.SaveAnalysis(paths.Analysis, &models.ProcedureAnalysis{
		TableUsage:  map[string]models.TableUsage{"Orders": {ReferenceCount: 4, UniqueReferrers: 2}},
		ColumnUsage: map[string]models.ColumnUsage{"Orders.Status": {ReferenceCount: 3, UniqueReferrers: 1}},
	}))

	result, err := newOntologyService(t, paths).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Entities)
	assert.Equal(t, 1, result.EnrichedTables)
	assert.Equal(t, 1, result.EnrichedColumns)

	doc, err := ontology.Load(paths.Ontology)
	require.NoError(t, err)
	assert.Equal(t, "Sales Ontology", doc.Label)
	assert.Len(t, doc.Entities, 3)

	summary, err := os.ReadFile(paths.OntologySummary)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "# Sales Ontology Summary")
}

func TestOntologyService_MissingPrerequisites(t *testing.T) {
	paths := config.NewPaths(t.TempDir())

	_, err := newOntologyService(t, paths).Build(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrConfigNotFound)

	require.NoError(t, os.WriteFile(paths.Rules, []byte(salesRules), 0o600))
	_, err = newOntologyService(t, paths).Build(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrCatalogNotFound)
}

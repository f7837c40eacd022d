package ontology

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

func TestApplyUsage(t *testing.T) {
	b, _ := newTestBuilder(t)
	doc := b.Build(testCatalog())

	tables, columns := ApplyUsage(doc,
		map[string]models.TableUsage{"Orders": {ReferenceCount: 5, UniqueReferrers: 2}},
		map[string]models.ColumnUsage{
			"Orders.Amount":     {ReferenceCount: 3, UniqueReferrers: 1},
			"dbo.Widgets.Color": {ReferenceCount: 1, UniqueReferrers: 1},
			"Orders.Missing":    {ReferenceCount: 9, UniqueReferrers: 9},
		})

	assert.Equal(t, 1, tables)
	assert.Equal(t, 2, columns)
	require.NotNil(t, doc.Entities[0].UsageStats)
	assert.Equal(t, 5, doc.Entities[0].UsageStats.ReferenceCount)
	assert.Nil(t, doc.Entities[1].UsageStats)
	require.NotNil(t, doc.Entities[0].Columns[2].UsageStats)
	assert.Equal(t, 3, doc.Entities[0].Columns[2].UsageStats.ReferenceCount)
	require.NotNil(t, doc.Entities[1].Columns[1].UsageStats)
}

func TestSaveAndLoad(t *testing.T) {
	b, _ := newTestBuilder(t)
	doc := b.Build(testCatalog())
	path := filepath.Join(t.TempDir(), "ontology.jsonld")

	require.NoError(t, Save(path, doc))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, doc.Entities, loaded.Entities)
	assert.Equal(t, doc.Relationships, loaded.Relationships)
	assert.Equal(t, doc.ReviewQueue.Summary, loaded.ReviewQueue.Summary)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "ontology.jsonld"))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

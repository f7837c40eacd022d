package ontology

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

const testRules = `
ontology:
  namespace: oms
  base_uri: https://example.com/oms#
  label: OMS Ontology
domains:
  - id: OrderDomain
    label: Orders
    description: Orders and order lines
    priority: 10
    table_patterns: ["order*"]
  - id: BillingDomain
    label: Billing
    priority: 20
    table_patterns: ["invoice"]
  - id: UncategorizedDomain
    is_fallback: true
semantic_roles:
  - id: Identifier
    priority: 10
    patterns: ["*id"]
    conditions: {is_primary_key: true}
  - id: ForeignKey
    priority: 20
    patterns: ["*id"]
    conditions: {is_foreign_key: true}
  - id: Monetary
    priority: 30
    patterns: ["amount", "total"]
    data_types: ["decimal", "money"]
  - id: StatusIndicator
    priority: 40
    patterns: ["status"]
  - id: Unclassified
    is_fallback: true
relationship_types:
  - pattern: "Customer*"
    type: placedBy
    inverse: places
metrics:
  - id: churn_rate
    label: Churn Rate
    formula: "cancelled / total"
    source_columns: [OrderItems.StatusCode]
    conditions:
      - {field: StatusCode, operator: "=", value: CNCL}
    observation_window_days: 30
core_entities:
  - table: Orders
    key_column: OrderID
    is_aggregate_root: true
  - table: OrderItems
    belongs_to: Orders
`

var buildTime = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func testCatalog() []models.CatalogRow {
	row := func(table, col, dataType string, rows int64) models.CatalogRow {
		return models.CatalogRow{
			Target: "oms", Database: "Sales", Schema: "dbo", TableName: table,
			ColumnName: col, DataType: dataType, IsNullable: true, RowCountEstimate: rows,
		}
	}
	profile := func(r models.CatalogRow, profiled, nulls, distinct int64) models.CatalogRow {
		r.ProfiledRows = i64(profiled)
		r.NullCount = i64(nulls)
		r.NullRate = f64(float64(nulls) / float64(profiled))
		r.DistinctCount = i64(distinct)
		return r
	}

	orderID := row("Orders", "OrderID", "int", 2_000_000)
	orderID.IsPrimaryKey = true
	orderID.IsNullable = false
	customerID := row("Orders", "CustomerID", "int", 2_000_000)
	customerID.IsForeignKey = true
	customerID.FKReferences = "dbo.Customers.CustomerID"
	widgetID := row("Widgets", "WidgetID", "int", 10)
	widgetID.IsPrimaryKey = true

	return []models.CatalogRow{
		orderID,
		customerID,
		row("Orders", "Amount", "decimal", 2_000_000),
		profile(row("Orders", "Status", "varchar", 2_000_000), 1000, 0, 5),
		profile(row("Orders", "Notes", "nvarchar", 2_000_000), 1000, 800, 50),
		widgetID,
		profile(row("Widgets", "Color", "varchar", 10), 500, 0, 4),
	}
}

func newTestBuilder(t *testing.T) (*Builder, *config.Rules) {
	t.Helper()
	rules, err := config.ParseRules([]byte(testRules))
	require.NoError(t, err)
	b, err := NewBuilder(rules, zaptest.NewLogger(t))
	require.NoError(t, err)
	b.now = func() time.Time { return buildTime }
	return b, rules
}

func TestBuild_Entities(t *testing.T) {
	b, _ := newTestBuilder(t)
	doc := b.Build(testCatalog())

	require.Len(t, doc.Entities, 2)

	orders := doc.Entities[0]
	assert.Equal(t, "oms:Sales.Orders", orders.ID)
	assert.Equal(t, []string{"Table", "OrderEntity"}, orders.Types)
	assert.Equal(t, "oms:OrderDomain", orders.BelongsToDomain)
	assert.Equal(t, int64(2_000_000), orders.RowCount)
	assert.Equal(t, 5, orders.ColumnCount)
	assert.Equal(t, 1, orders.ColumnsNeedingReview)
	assert.Equal(t, models.ReviewStatusAutoClassified, orders.ReviewStatus)
	assert.Empty(t, orders.ReviewReasons)

	roles := map[string]string{}
	for _, c := range orders.Columns {
		roles[c.Label] = c.SemanticRole
	}
	assert.Equal(t, map[string]string{
		"OrderID":    "Identifier",
		"CustomerID": "ForeignKey",
		"Amount":     "Monetary",
		"Status":     "StatusIndicator",
		"Notes":      "Unclassified",
	}, roles)

	customer := orders.Columns[1]
	assert.Equal(t, "oms:Sales.Orders.CustomerID", customer.ID)
	assert.True(t, customer.IsForeignKey)
	assert.Equal(t, "dbo.Customers.CustomerID", customer.References)

	amount := orders.Columns[2]
	assert.Nil(t, amount.NullRate, "unprofiled columns carry no stats")
	assert.Equal(t, models.ReviewStatusAutoClassified, amount.ReviewStatus)

	notes := orders.Columns[4]
	assert.Equal(t, models.ReviewStatusNeedsReview, notes.ReviewStatus)
	assert.Equal(t, []string{models.ReasonUnclassifiedRole, models.ReasonHighNullRate}, notes.ReviewReasons)
	require.NotNil(t, notes.NullRate)
	assert.InDelta(t, 0.8, *notes.NullRate, 1e-9)

	widgets := doc.Entities[1]
	assert.Equal(t, []string{"Table", "UncategorizedEntity"}, widgets.Types)
	assert.Equal(t, models.ReviewStatusNeedsReview, widgets.ReviewStatus)
	assert.Equal(t, []string{models.ReasonUnclassifiedDomain, models.ReasonManyUnclassifiedColumns}, widgets.ReviewReasons)
}

func TestBuild_Relationships(t *testing.T) {
	b, _ := newTestBuilder(t)
	doc := b.Build(testCatalog())

	require.Len(t, doc.Relationships, 1)
	assert.Equal(t, models.RelationshipNode{
		ID:               "oms:rel_Sales_Orders_CustomerID",
		Type:             "Relationship",
		RelationshipType: "placedBy",
		InverseType:      "places",
		From:             "oms:Sales.Orders.CustomerID",
		To:               "oms:Sales.Customers.CustomerID",
		FromTable:        "oms:Sales.Orders",
		ToReference:      "dbo.Customers.CustomerID",
	}, doc.Relationships[0])
}

func TestBuild_ForeignKeyWithoutTargetIsNotAnEdge(t *testing.T) {
	b, _ := newTestBuilder(t)
	rows := []models.CatalogRow{{
		Database: "Sales", Schema: "dbo", TableName: "Orders", ColumnName: "LegacyID",
		DataType: "int", IsForeignKey: true,
	}}
	doc := b.Build(rows)
	assert.Empty(t, doc.Relationships)
	assert.Equal(t, 1, doc.SourceStats.TotalForeignKeys)
}

func TestBuild_PassThroughNodes(t *testing.T) {
	b, _ := newTestBuilder(t)
	doc := b.Build(testCatalog())

	require.Len(t, doc.Domains, 3)
	counts := map[string]int{}
	for _, d := range doc.Domains {
		counts[d.ID] = d.TableCount
		assert.NotNil(t, d.DatabaseAffinity)
	}
	assert.Equal(t, map[string]int{
		"oms:OrderDomain":         1,
		"oms:BillingDomain":       0,
		"oms:UncategorizedDomain": 1,
	}, counts)
	assert.Equal(t, "UncategorizedDomain", doc.Domains[2].Label, "label defaults to id")

	require.Len(t, doc.Metrics, 1)
	m := doc.Metrics[0]
	assert.Equal(t, "oms:metric:churn_rate", m.ID)
	assert.Equal(t, "Churn Rate", m.Label)
	require.NotNil(t, m.ObservationWindowDays)
	assert.Equal(t, 30, *m.ObservationWindowDays)
	require.Len(t, m.Conditions, 1)
	assert.Equal(t, "CNCL", m.Conditions[0].Value)

	require.Len(t, doc.CoreEntities, 2)
	assert.Equal(t, "oms:core:Orders", doc.CoreEntities[0].ID)
	assert.Equal(t, "Orders", doc.CoreEntities[0].Label)
	assert.True(t, doc.CoreEntities[0].IsAggregateRoot)
	assert.Empty(t, doc.CoreEntities[0].BelongsTo)
	assert.Equal(t, "oms:core:Orders", doc.CoreEntities[1].BelongsTo)
}

func TestBuild_RootAndStats(t *testing.T) {
	b, _ := newTestBuilder(t)
	doc := b.Build(testCatalog())

	assert.Equal(t, "oms:OntologyRoot", doc.ID)
	assert.Equal(t, "Ontology", doc.Type)
	assert.Equal(t, "OMS Ontology", doc.Label)
	assert.Equal(t, buildTime, doc.GeneratedAt)
	assert.Equal(t, "https://example.com/oms#", doc.Context["oms"])
	assert.Equal(t, "https://example.com/oms#", doc.Context["@vocab"])
	assert.Equal(t, models.SourceStats{
		TotalColumns:     7,
		TotalTables:      2,
		TotalDatabases:   1,
		TotalForeignKeys: 1,
	}, doc.SourceStats)
}

func TestBuild_ReviewQueue(t *testing.T) {
	b, _ := newTestBuilder(t)
	q := b.Build(testCatalog()).ReviewQueue

	require.Len(t, q.DomainReview, 1)
	assert.Equal(t, "Sales.Widgets", q.DomainReview[0].Table)
	assert.Equal(t, int64(10), q.DomainReview[0].RowCount)

	require.Len(t, q.UnclassifiedColumns, 2)
	assert.Equal(t, "Notes", q.UnclassifiedColumns[0].Column)
	assert.Equal(t, "Color", q.UnclassifiedColumns[1].Column)
	assert.Equal(t, "Widgets", q.UnclassifiedColumns[1].Table)

	require.Len(t, q.HighNullRateColumns, 1)
	assert.Equal(t, "Column is 80% null", q.HighNullRateColumns[0].Reason)

	// Status is low-cardinality too, but already a categorical role.
	require.Len(t, q.LowCardinalityColumns, 1)
	low := q.LowCardinalityColumns[0]
	assert.Equal(t, "Color", low.Column)
	assert.Equal(t, "Unclassified", low.CurrentRole)
	assert.Equal(t, "Only 4 distinct values - may be a code/status field", low.Reason)

	assert.Empty(t, q.SemanticRoleReview)
	assert.Equal(t, 5, q.Summary.TotalItemsNeedingReview)
	assert.Equal(t, map[string]int{
		models.ReviewCategoryDomain:         1,
		models.ReviewCategoryUnclassified:   2,
		models.ReviewCategoryHighNullRate:   1,
		models.ReviewCategoryLowCardinality: 1,
	}, q.Summary.ByCategory)
}

func TestBuild_EmptyCatalog(t *testing.T) {
	b, _ := newTestBuilder(t)
	doc := b.Build(nil)

	assert.Empty(t, doc.Entities)
	assert.Empty(t, doc.Relationships)
	assert.Equal(t, 0, doc.ReviewQueue.Summary.TotalItemsNeedingReview)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entities":[]`)
	assert.Contains(t, string(data), `"relationships":[]`)
	assert.Contains(t, string(data), `"domainReview":[]`)
}

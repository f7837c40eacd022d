package patterns

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_CountsAndOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Add("dbo.usp_A", Extract(`SELECT SUM(o.Amount) AS Total FROM Orders o
		JOIN Customers c ON o.CustomerID = c.ID
		WHERE o.Status = 'OPEN' AND o.Placed >= @since`))
	agg.Add("dbo.usp_B", Extract(`SELECT COUNT(*), SUM(o.Amount), Revenue / Cost AS Margin FROM Orders o
		JOIN Regions r ON o.RegionID = r.ID
		WHERE o.Status IN ('A', 'B')`))

	gp := agg.Result()

	assert.Equal(t, []TableCount{
		{Table: "Orders", Count: 2},
		{Table: "Customers", Count: 1},
		{Table: "Regions", Count: 1},
	}, gp.MostJoinedTables)
	// COUNT(*) is not a column.
	assert.Equal(t, []ColumnCount{{Column: "o.Amount", Count: 2}}, gp.MostAggregatedColumns)
	assert.Equal(t, []ColumnCount{
		{Column: "Status", Count: 2},
		{Column: "Placed", Count: 1},
	}, gp.MostFilteredColumns)
	assert.Equal(t, []PatternCount{
		{Pattern: "o.Status =", Count: 1},
		{Pattern: "o.Placed >=", Count: 1},
		{Pattern: "o.Status IN", Count: 1},
	}, gp.CommonFilterPatterns)

	require.Len(t, gp.DiscoveredMetrics, 1)
	assert.Equal(t, "dbo.usp_B", gp.DiscoveredMetrics[0].Procedure)
	assert.Equal(t, "Margin", gp.DiscoveredMetrics[0].Name)

	assert.Equal(t, Totals{Joins: 2, Aggregations: 3, Filters: 3, Metrics: 1}, gp.Totals)
}

func TestAggregator_UnknownLeftTableIsNotCounted(t *testing.T) {
	agg := NewAggregator()
	agg.Add("p", &ParsedProcedure{Joins: []JoinPattern{{LeftTable: UnknownTable, RightTable: "B", JoinType: "INNER"}}})

	assert.Equal(t, []TableCount{{Table: "B", Count: 1}}, agg.Result().MostJoinedTables)
}

func TestAggregator_Caps(t *testing.T) {
	agg := NewAggregator()
	p := newParsedProcedure()
	for i := range 30 {
		p.Aggregations = append(p.Aggregations, AggregationPattern{Function: "SUM", Column: fmt.Sprintf("c%02d", i)})
	}
	for i := range 60 {
		p.Metrics = append(p.Metrics, MetricFormula{Formula: fmt.Sprintf("a%d / b", i), ColumnsUsed: []string{"b"}, IsRatio: true})
	}
	agg.Add("p", p)
	gp := agg.Result()

	require.Len(t, gp.MostAggregatedColumns, 20)
	// Equal counts keep first-seen order.
	for i, c := range gp.MostAggregatedColumns {
		assert.Equal(t, fmt.Sprintf("c%02d", i), c.Column)
	}
	require.Len(t, gp.DiscoveredMetrics, 50)
	assert.Equal(t, "a0 / b", gp.DiscoveredMetrics[0].Formula)
	assert.Equal(t, 60, gp.Totals.Metrics)
}

func TestAggregator_Empty(t *testing.T) {
	agg := NewAggregator()
	agg.Add("nil", nil)
	gp := agg.Result()

	assert.NotNil(t, gp.MostJoinedTables)
	assert.Empty(t, gp.MostJoinedTables)
	assert.NotNil(t, gp.DiscoveredMetrics)
	assert.Equal(t, Totals{}, gp.Totals)
}

package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinMeaning(t *testing.T) {
	tests := []struct {
		left, right string
		want        string
	}{
		{"dbo.Orders", "dbo.OrderItems", "Order to line items - order details breakdown"},
		{"dbo.Invoices", "dbo.InvoiceItems", "Invoice to line items - billing details"},
		{"dbo.Products", "dbo.ProductFamilies", "Product to product family/category"},
		{"Shipments", "ShipmentItems", "Parent to child items relationship"},
		{"Shipments", "Customers", "Links to customer/account information"},
		{"dbo.Shipments", "dbo.Carriers", "Each Shipment relates to a Carrier"},
		{UnknownTable, "dbo.Carriers", "Table relationship"},
	}
	for _, tt := range tests {
		t.Run(tt.left+"->"+tt.right, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinMeaning(tt.left, tt.right))
		})
	}
}

func TestMetricMeaning(t *testing.T) {
	assert.Equal(t, "Financial ratio (e.g., margin, discount rate)",
		MetricMeaning(MetricFormula{Name: "Margin", Formula: "Revenue / NULLIF(Cost, 0)", IsRatio: true}))
	assert.Equal(t, "Count of cancelled items - potential churn metric",
		MetricMeaning(MetricFormula{Formula: "SUM(CASE WHEN Status = 'CNCL' THEN 1 END) / COUNT(*)"}))
	assert.Equal(t, "Status-based rate (e.g., churn rate, fulfillment rate)",
		MetricMeaning(MetricFormula{Formula: "x / y", ColumnsUsed: []string{"o.StatusCode"}, IsRatio: true}))
	assert.Equal(t, "Business metric: Lead Velocity",
		MetricMeaning(MetricFormula{Name: "lead_velocity", Formula: "CASE WHEN x THEN y END"}))
	assert.Equal(t, "Calculated business metric", MetricMeaning(MetricFormula{Formula: "a - b"}))
}

func TestAggregationMeaning(t *testing.T) {
	assert.Equal(t, "Total order count", AggregationMeaning("COUNT", "*", "OrderCount"))
	assert.Equal(t, "Record count - volume metric", AggregationMeaning("count", "*", ""))
	assert.Equal(t, "Total monetary value - financial metric", AggregationMeaning("SUM", "o.Amount", ""))
	assert.Equal(t, "Total quantity/units", AggregationMeaning("SUM", "Qty", ""))
	assert.Equal(t, "Latest date/time", AggregationMeaning("MAX", "CreatedDate", ""))
	assert.Equal(t, "Average lead time", AggregationMeaning("AVG", "lead_time", ""))
}

func TestFilterMeaning(t *testing.T) {
	assert.Equal(t, "Filtering to CANCELLED items - churn/cancellation analysis", FilterMeaning("o.StatusCode", "=", "CNCL"))
	assert.Equal(t, "Filtering by specific status codes", FilterMeaning("Status", "IN", "(A, B)"))
	assert.Equal(t, "Date range filter - time-bounded query", FilterMeaning("o.CreatedDate", ">=", "@since"))
	assert.Equal(t, "Parameter-driven lookup by ID", FilterMeaning("c.CustomerID", "=", "@id"))
	assert.Equal(t, "Finding records where region is missing", FilterMeaning("Region", "IS NULL", "NULL"))
	assert.Equal(t, "Finding records where region exists", FilterMeaning("Region", "IS", "NOT NULL"))
	assert.Equal(t, "Filter on region", FilterMeaning("Region", "=", "'West'"))
}

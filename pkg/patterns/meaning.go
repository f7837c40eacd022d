package patterns

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// Business-meaning heuristics pre-fill the review workbook so reviewers
// correct a suggestion instead of starting from a blank cell.

type joinMeaning struct {
	left, right string
	meaning     string
}

var knownJoins = []joinMeaning{
	{"order", "orderitem", "Order to line items - order details breakdown"},
	{"orderitem", "order", "Line items to parent order"},
	{"order", "company", "Orders to customer company"},
	{"order", "account", "Orders to customer account"},
	{"order", "property", "Orders to property location"},
	{"orderitem", "product", "Line items to product catalog"},
	{"invoice", "invoiceitem", "Invoice to line items - billing details"},
	{"invoiceitem", "invoice", "Invoice items to parent invoice"},
	{"quote", "quoteitem", "Quote to line items - proposal details"},
	{"quoteitem", "quote", "Quote items to parent quote"},
	{"company", "property", "Company to managed properties"},
	{"property", "company", "Properties to owning company"},
	{"product", "family", "Product to product family/category"},
	{"product", "charge", "Product to pricing/charges"},
}

// MetricMeaning suggests a plain-English reading of a discovered metric.
func MetricMeaning(m MetricFormula) string {
	name := strings.ToLower(m.Name)
	formula := strings.ToLower(m.Formula)
	cols := make([]string, len(m.ColumnsUsed))
	for i, c := range m.ColumnsUsed {
		cols[i] = strings.ToLower(bareColumn(c))
	}
	inEither := func(words ...string) bool {
		return containsAny(name, words...) || containsAny(formula, words...)
	}

	switch {
	case inEither("revenue", "charge", "amount", "price", "cost"):
		switch {
		case inEither("net"):
			return "Net revenue calculation (after discounts/adjustments)"
		case inEither("discount"):
			return "Discount amount or rate calculation"
		case m.IsRatio:
			return "Financial ratio (e.g., margin, discount rate)"
		}
		return "Revenue or monetary calculation"
	case strings.Contains(formula, "count"):
		switch {
		case containsAny(formula, "cncl", "cancel"):
			return "Count of cancelled items - potential churn metric"
		case containsAny(formula, "fulf", "fulfill", "complete"):
			return "Count of fulfilled/completed items"
		case inEither("order"):
			return "Order volume count"
		case strings.Contains(formula, "invoice"):
			return "Invoice count"
		}
		return "Volume/count metric"
	case m.IsRatio:
		switch {
		case anyEqual(cols, "statuscode", "status"):
			return "Status-based rate (e.g., churn rate, fulfillment rate)"
		case containsAny(name, "rate", "percent", "pct", "ratio"):
			return "Percentage or rate calculation"
		}
		return "Ratio calculation - likely a KPI"
	case anyEqual(cols, "statuscode", "status"):
		return "Status-based metric (tracks order/item states)"
	case anyEqual(cols, "date", "time", "created", "modified"):
		return "Time-based calculation (duration, aging, etc.)"
	case name != "":
		return "Business metric: " + titleWords(strings.ReplaceAll(name, "_", " "))
	}
	return "Calculated business metric"
}

// JoinMeaning suggests what a join between two tables represents. Table
// names are singularized before matching, so Orders and Order read the same.
func JoinMeaning(leftTable, rightTable string) string {
	left := strings.ToLower(inflection.Singular(bareColumn(leftTable)))
	right := strings.ToLower(inflection.Singular(bareColumn(rightTable)))

	for _, k := range knownJoins {
		if (strings.Contains(left, k.left) && strings.Contains(right, k.right)) ||
			(strings.Contains(right, k.left) && strings.Contains(left, k.right)) {
			return k.meaning
		}
	}

	switch {
	case strings.Contains(right, "item"):
		return "Parent to child items relationship"
	case strings.Contains(left, "item"):
		return "Child items to parent relationship"
	case containsAny(right, "company", "customer", "account"):
		return "Links to customer/account information"
	case containsAny(right, "product", "charge", "price"):
		return "Links to product/pricing information"
	case containsAny(right, "property", "location", "site"):
		return "Links to property/location information"
	}
	if leftTable == "" || leftTable == UnknownTable {
		return "Table relationship"
	}
	return fmt.Sprintf("Each %s relates to a %s", entityName(leftTable), entityName(rightTable))
}

// AggregationMeaning suggests what an aggregate call measures.
func AggregationMeaning(function, column, alias string) string {
	fn := strings.ToUpper(function)
	col := strings.ToLower(column)
	aliasLower := strings.ToLower(alias)
	readable := strings.ReplaceAll(col, "_", " ")

	switch fn {
	case "COUNT":
		if col == "*" {
			switch {
			case strings.Contains(aliasLower, "order"):
				return "Total order count"
			case strings.Contains(aliasLower, "invoice"):
				return "Total invoice count"
			case strings.Contains(aliasLower, "item"):
				return "Total line item count"
			}
			return "Record count - volume metric"
		}
		switch {
		case strings.Contains(col, "status"):
			return "Count by status - for status distribution analysis"
		case strings.Contains(col, "id"):
			return "Distinct entity count"
		}
		return "Count of " + readable
	case "SUM":
		if containsAny(col, "amount", "charge", "price", "cost", "revenue") {
			switch {
			case strings.Contains(col, "net"):
				return "Total net revenue (after adjustments)"
			case strings.Contains(col, "discount"):
				return "Total discounts applied"
			}
			return "Total monetary value - financial metric"
		}
		if containsAny(col, "quantity", "qty", "units") {
			return "Total quantity/units"
		}
		return "Sum of " + readable
	case "AVG":
		switch {
		case containsAny(col, "amount", "charge", "price"):
			return "Average transaction value"
		case strings.Contains(col, "discount"):
			return "Average discount rate"
		case containsAny(col, "duration", "days"):
			return "Average time duration"
		}
		return "Average " + readable
	case "MIN", "MAX":
		if containsAny(col, "date", "time") {
			if fn == "MIN" {
				return "Earliest date/time"
			}
			return "Latest date/time"
		}
		if containsAny(col, "amount", "charge", "price") {
			if fn == "MIN" {
				return "Minimum value"
			}
			return "Maximum value"
		}
		return fn + " of " + readable
	}
	return fmt.Sprintf("%s(%s)", fn, column)
}

// FilterMeaning suggests the business rule behind a filter.
func FilterMeaning(column, operator, values string) string {
	col := strings.ToLower(bareColumn(column))
	op := strings.ToUpper(operator)
	vals := strings.ToUpper(values)
	readable := strings.ReplaceAll(col, "_", " ")

	switch {
	case strings.Contains(col, "status"):
		switch {
		case strings.Contains(vals, "CNCL"):
			return "Filtering to CANCELLED items - churn/cancellation analysis"
		case strings.Contains(vals, "FULF"):
			return "Filtering to FULFILLED items - completed orders"
		case strings.Contains(vals, "PEND"):
			return "Filtering to PENDING items - in-progress orders"
		case strings.Contains(vals, "EXPD"):
			return "Filtering to EXPIRED items"
		case op == "IN":
			return "Filtering by specific status codes"
		}
		return "Status-based filter"
	case containsAny(col, "date", "time", "created", "modified"):
		if op == ">" || op == ">=" || op == "BETWEEN" {
			return "Date range filter - time-bounded query"
		}
		return "Date-based filter"
	case strings.HasSuffix(col, "idseq") || strings.HasSuffix(col, "id"):
		if strings.Contains(vals, "@") {
			return "Parameter-driven lookup by ID"
		}
		return "Filtering by specific entity ID"
	case containsAny(col, "flag", "is_", "has_"):
		return "Boolean/flag filter"
	case containsAny(col, "type", "code"):
		return "Filtering by type/category code"
	case op == "IS NULL":
		return fmt.Sprintf("Finding records where %s is missing", readable)
	case op == "IS" && vals == "NOT NULL":
		return fmt.Sprintf("Finding records where %s exists", readable)
	}
	return "Filter on " + readable
}

// entityName turns "dbo.OrderItems" into "OrderItem".
func entityName(table string) string {
	name := inflection.Singular(bareColumn(table))
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func anyEqual(values []string, want ...string) bool {
	for _, v := range values {
		for _, w := range want {
			if v == w {
				return true
			}
		}
	}
	return false
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

package models

import "time"

// Review statuses carried by entities and columns.
const (
	ReviewStatusNeedsReview    = "needs_review"
	ReviewStatusAutoClassified = "auto_classified"
)

// Review reasons.
const (
	ReasonUnclassifiedRole        = "unclassified_role"
	ReasonHighNullRate            = "high_null_rate"
	ReasonUnclassifiedDomain      = "unclassified_domain"
	ReasonManyUnclassifiedColumns = "many_unclassified_columns"
)

// ============================================================================
// Ontology Document
// ============================================================================

// OntologyDocument is the JSON-LD knowledge graph built over the catalog.
type OntologyDocument struct {
	Context       map[string]any     `json:"@context"`
	ID            string             `json:"@id"`
	Type          string             `json:"@type"`
	Label         string             `json:"rdfs:label"`
	Comment       string             `json:"rdfs:comment"`
	GeneratedAt   time.Time          `json:"generatedAt"`
	SourceStats   SourceStats        `json:"sourceStats"`
	Domains       []DomainNode       `json:"domains"`
	Entities      []EntityNode       `json:"entities"`
	Relationships []RelationshipNode `json:"relationships"`
	Metrics       []MetricNode       `json:"metrics"`
	CoreEntities  []CoreEntityNode   `json:"coreEntities"`
	ReviewQueue   ReviewQueue        `json:"reviewQueue"`
}

// SourceStats describes the catalog the ontology was built from.
type SourceStats struct {
	TotalColumns     int `json:"totalColumns"`
	TotalTables      int `json:"totalTables"`
	TotalDatabases   int `json:"totalDatabases"`
	TotalForeignKeys int `json:"totalForeignKeys"`
}

// DomainNode is a configured business domain.
type DomainNode struct {
	ID               string   `json:"@id"`
	Type             string   `json:"@type"`
	Label            string   `json:"rdfs:label"`
	Comment          string   `json:"rdfs:comment"`
	TableCount       int      `json:"tableCount"`
	DatabaseAffinity []string `json:"databaseAffinity"`
}

// ============================================================================
// Entities and Columns
// ============================================================================

// EntityNode is one physical table.
type EntityNode struct {
	ID                   string       `json:"@id"`
	Types                []string     `json:"@type"`
	Label                string       `json:"rdfs:label"`
	Database             string       `json:"database"`
	Schema               string       `json:"schema"`
	BelongsToDomain      string       `json:"belongsToDomain"`
	RowCount             int64        `json:"rowCount"`
	ColumnCount          int          `json:"columnCount"`
	ColumnsNeedingReview int          `json:"columnsNeedingReview"`
	Columns              []ColumnNode `json:"hasColumn"`
	ReviewStatus         string       `json:"reviewStatus"`
	ReviewReasons        []string     `json:"reviewReasons"`
	UsageStats           *TableUsage  `json:"usageStats,omitempty"`
}

// NeedsReview reports whether the entity was flagged for human review.
func (e *EntityNode) NeedsReview() bool {
	return e.ReviewStatus == ReviewStatusNeedsReview
}

// ColumnNode is one column of an entity.
type ColumnNode struct {
	ID            string   `json:"@id"`
	Type          string   `json:"@type"`
	Label         string   `json:"rdfs:label"`
	DataType      string   `json:"dataType"`
	SemanticRole  string   `json:"semanticRole"`
	IsNullable    bool     `json:"isNullable"`
	IsPrimaryKey  bool     `json:"isPrimaryKey,omitempty"`
	IsForeignKey  bool     `json:"isForeignKey,omitempty"`
	References    string   `json:"references,omitempty"`
	NullRate      *float64 `json:"nullRate,omitempty"`
	NullCount     *int64   `json:"nullCount,omitempty"`
	DistinctCount *int64   `json:"distinctCount,omitempty"`
	ProfiledRows  *int64   `json:"profiledRows,omitempty"`
	ReviewStatus  string   `json:"reviewStatus"`
	ReviewReasons []string `json:"reviewReasons,omitempty"`

	// Added by procedure analysis and review feedback.
	UsageStats      *ColumnUsage `json:"usageStats,omitempty"`
	BusinessTerms   []string     `json:"businessTerms,omitempty"`
	BusinessMeaning string       `json:"businessMeaning,omitempty"`
}

// NeedsReview reports whether the column was flagged for human review.
func (c *ColumnNode) NeedsReview() bool {
	return c.ReviewStatus == ReviewStatusNeedsReview
}

// RelationshipNode is a foreign key edge between two columns.
type RelationshipNode struct {
	ID               string `json:"@id"`
	Type             string `json:"@type"`
	RelationshipType string `json:"relationshipType"`
	InverseType      string `json:"inverseType"`
	From             string `json:"from"`
	To               string `json:"to"`
	FromTable        string `json:"fromTable"`
	ToReference      string `json:"toReference"`
}

// MetricNode is a curated business metric.
type MetricNode struct {
	ID                    string            `json:"@id"`
	Type                  string            `json:"@type"`
	Label                 string            `json:"rdfs:label"`
	Comment               string            `json:"rdfs:comment"`
	Formula               string            `json:"formula"`
	SourceColumns         []string          `json:"sourceColumns"`
	Conditions            []MetricCondition `json:"conditions"`
	ObservationWindowDays *int              `json:"observationWindowDays,omitempty"`
	Notes                 string            `json:"notes,omitempty"`
}

// MetricCondition is one predicate of a curated metric.
type MetricCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// CoreEntityNode marks a table as a core business entity.
type CoreEntityNode struct {
	ID              string `json:"@id"`
	Type            string `json:"@type"`
	Label           string `json:"rdfs:label"`
	Comment         string `json:"rdfs:comment"`
	Table           string `json:"table"`
	KeyColumn       string `json:"keyColumn"`
	IsAggregateRoot bool   `json:"isAggregateRoot"`
	BelongsTo       string `json:"belongsTo,omitempty"`
}

// ============================================================================
// Review Queue
// ============================================================================

// Review queue categories, in report order.
const (
	ReviewCategoryDomain         = "domainReview"
	ReviewCategoryUnclassified   = "unclassifiedColumns"
	ReviewCategoryHighNullRate   = "highNullRateColumns"
	ReviewCategoryLowCardinality = "lowCardinalityColumns"
)

// ReviewQueue lists classifications that need a human decision.
type ReviewQueue struct {
	Summary               ReviewSummary      `json:"summary"`
	DomainReview          []DomainReviewItem `json:"domainReview"`
	SemanticRoleReview    []ColumnReviewItem `json:"semanticRoleReview"`
	UnclassifiedColumns   []ColumnReviewItem `json:"unclassifiedColumns"`
	HighNullRateColumns   []ColumnReviewItem `json:"highNullRateColumns"`
	LowCardinalityColumns []ColumnReviewItem `json:"lowCardinalityColumns"`
}

// ReviewSummary counts review items per category.
type ReviewSummary struct {
	TotalItemsNeedingReview int            `json:"totalItemsNeedingReview"`
	ByCategory              map[string]int `json:"byCategory"`
}

// DomainReviewItem is a table that no domain rule matched.
type DomainReviewItem struct {
	ID              string `json:"@id"`
	Table           string `json:"table"`
	RowCount        int64  `json:"rowCount"`
	Reason          string `json:"reason"`
	SuggestedAction string `json:"suggestedAction"`
}

// ColumnReviewItem is a column flagged for review. Which optional fields are
// set depends on the category.
type ColumnReviewItem struct {
	ID              string   `json:"@id"`
	Column          string   `json:"column"`
	Table           string   `json:"table"`
	DataType        string   `json:"dataType,omitempty"`
	NullRate        *float64 `json:"nullRate,omitempty"`
	DistinctCount   *int64   `json:"distinctCount,omitempty"`
	CurrentRole     string   `json:"currentRole,omitempty"`
	Reason          string   `json:"reason"`
	SuggestedAction string   `json:"suggestedAction"`
}

// Package ontology assembles the JSON-LD knowledge graph over the catalog:
// entities with classified columns, foreign key relationships, configured
// domains, metrics and core entities, and a queue of classifications that
// need human review.
package ontology

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/classify"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

const (
	// HighNullRate is the null rate above which a column needs review.
	HighNullRate = 0.5

	// unclassifiedColumnShare is the share of flagged columns above which
	// the whole table needs review.
	unclassifiedColumnShare = 0.3

	defaultLabel   = "Data Ontology"
	defaultComment = "Knowledge graph of the scanned database schemas"
)

// Builder turns catalog rows into an ontology document.
type Builder struct {
	rules      *config.Rules
	classifier *classify.Classifier
	namespace  string
	logger     *zap.Logger
	now        func() time.Time
}

// NewBuilder compiles the classification rules. It fails when a rule
// pattern does not compile.
func NewBuilder(rules *config.Rules, logger *zap.Logger) (*Builder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := classify.New(rules)
	if err != nil {
		return nil, fmt.Errorf("compile classification rules: %w", err)
	}
	return &Builder{
		rules:      rules,
		classifier: c,
		namespace:  rules.Ontology.Namespace,
		logger:     logger.Named("ontology"),
		now:        time.Now,
	}, nil
}

// Build assembles the document. An empty catalog yields a valid document
// with empty sections.
func (b *Builder) Build(rows []models.CatalogRow) *models.OntologyDocument {
	groups := groupTables(rows)

	domainOf := make(map[models.TableKey]string, len(groups))
	for _, g := range groups {
		domainOf[g.key] = b.classifier.Domains.Classify(g.key.Database, g.key.Table)
	}

	entities := make([]models.EntityNode, 0, len(groups))
	for _, g := range groups {
		entities = append(entities, b.buildEntity(g, domainOf[g.key]))
	}

	doc := &models.OntologyDocument{
		Context:       b.buildContext(),
		ID:            b.namespace + ":OntologyRoot",
		Type:          "Ontology",
		Label:         valueOr(b.rules.Ontology.Label, defaultLabel),
		Comment:       valueOr(b.rules.Ontology.Comment, defaultComment),
		GeneratedAt:   b.now().UTC(),
		SourceStats:   sourceStats(rows, len(groups)),
		Domains:       b.buildDomains(domainOf),
		Entities:      entities,
		Relationships: b.buildRelationships(rows),
		Metrics:       b.buildMetrics(),
		CoreEntities:  b.buildCoreEntities(),
		ReviewQueue:   BuildReviewQueue(entities),
	}

	b.logger.Info("Built ontology",
		zap.Int("entities", len(doc.Entities)),
		zap.Int("relationships", len(doc.Relationships)),
		zap.Int("review_items", doc.ReviewQueue.Summary.TotalItemsNeedingReview))
	return doc
}

type tableGroup struct {
	key  models.TableKey
	rows []*models.CatalogRow
}

// groupTables groups rows by table in first-seen order.
func groupTables(rows []models.CatalogRow) []*tableGroup {
	index := map[models.TableKey]*tableGroup{}
	var groups []*tableGroup
	for i := range rows {
		r := &rows[i]
		k := r.Key()
		g, ok := index[k]
		if !ok {
			g = &tableGroup{key: k}
			index[k] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	return groups
}

func (b *Builder) entityID(database, table string) string {
	return fmt.Sprintf("%s:%s.%s", b.namespace, database, table)
}

func (b *Builder) buildEntity(g *tableGroup, domainID string) models.EntityNode {
	id := b.entityID(g.key.Database, g.key.Table)

	columns := make([]models.ColumnNode, 0, len(g.rows))
	needingReview := 0
	for _, r := range g.rows {
		col := b.buildColumn(id, r)
		if col.NeedsReview() {
			needingReview++
		}
		columns = append(columns, col)
	}

	reasons := []string{}
	if domainID == classify.UncategorizedDomain {
		reasons = append(reasons, models.ReasonUnclassifiedDomain)
	}
	if float64(needingReview) > float64(len(columns))*unclassifiedColumnShare {
		reasons = append(reasons, models.ReasonManyUnclassifiedColumns)
	}
	status := models.ReviewStatusAutoClassified
	if len(reasons) > 0 {
		status = models.ReviewStatusNeedsReview
	}

	return models.EntityNode{
		ID:                   id,
		Types:                []string{"Table", strings.ReplaceAll(domainID, "Domain", "") + "Entity"},
		Label:                g.key.Table,
		Database:             g.key.Database,
		Schema:               g.key.Schema,
		BelongsToDomain:      b.namespace + ":" + domainID,
		RowCount:             g.rows[0].RowCountEstimate,
		ColumnCount:          len(columns),
		ColumnsNeedingReview: needingReview,
		Columns:              columns,
		ReviewStatus:         status,
		ReviewReasons:        reasons,
	}
}

func (b *Builder) buildColumn(entityID string, r *models.CatalogRow) models.ColumnNode {
	role := b.classifier.Roles.Classify(r.ColumnName, r.DataType, r.IsPrimaryKey, r.IsForeignKey)

	col := models.ColumnNode{
		ID:           entityID + "." + r.ColumnName,
		Type:         "Column",
		Label:        r.ColumnName,
		DataType:     r.DataType,
		SemanticRole: role,
		IsNullable:   r.IsNullable,
		IsPrimaryKey: r.IsPrimaryKey,
		IsForeignKey: r.IsForeignKey,
	}
	if r.IsForeignKey {
		col.References = r.FKReferences
	}
	if r.IsProfiled() {
		col.NullRate = r.NullRate
		col.NullCount = r.NullCount
		col.DistinctCount = r.DistinctCount
		col.ProfiledRows = r.ProfiledRows
	}

	var reasons []string
	if role == classify.Unclassified {
		reasons = append(reasons, models.ReasonUnclassifiedRole)
	}
	if r.NullRate != nil && *r.NullRate > HighNullRate {
		reasons = append(reasons, models.ReasonHighNullRate)
	}
	col.ReviewStatus = models.ReviewStatusAutoClassified
	if len(reasons) > 0 {
		col.ReviewStatus = models.ReviewStatusNeedsReview
		col.ReviewReasons = reasons
	}
	return col
}

// buildRelationships emits one edge per foreign key column with a target.
// The target id drops the schema from "schema.table.column" so it lines up
// with the column ids of the same database.
func (b *Builder) buildRelationships(rows []models.CatalogRow) []models.RelationshipNode {
	rels := []models.RelationshipNode{}
	for i := range rows {
		r := &rows[i]
		if !r.IsForeignKey || r.FKReferences == "" {
			continue
		}
		rel := b.classifier.Relationships.Infer(r.ColumnName)
		rels = append(rels, models.RelationshipNode{
			ID:               fmt.Sprintf("%s:rel_%s_%s_%s", b.namespace, r.Database, r.TableName, r.ColumnName),
			Type:             "Relationship",
			RelationshipType: rel.Type,
			InverseType:      rel.Inverse,
			From:             b.entityID(r.Database, r.TableName) + "." + r.ColumnName,
			To:               fmt.Sprintf("%s:%s.%s", b.namespace, r.Database, stripSchema(r.FKReferences)),
			FromTable:        b.entityID(r.Database, r.TableName),
			ToReference:      r.FKReferences,
		})
	}
	return rels
}

func stripSchema(ref string) string {
	parts := strings.Split(ref, ".")
	if len(parts) >= 3 {
		return strings.Join(parts[1:], ".")
	}
	return ref
}

// buildDomains passes configured domains through with the number of
// distinct database.table pairs classified into each.
func (b *Builder) buildDomains(domainOf map[models.TableKey]string) []models.DomainNode {
	type dbTable struct{ database, table string }
	counted := map[dbTable]bool{}
	counts := map[string]int{}
	for k, id := range domainOf {
		dt := dbTable{k.Database, k.Table}
		if counted[dt] {
			continue
		}
		counted[dt] = true
		counts[id]++
	}

	domains := make([]models.DomainNode, 0, len(b.rules.Domains))
	for _, d := range b.rules.Domains {
		affinity := d.DatabaseAffinity
		if affinity == nil {
			affinity = []string{}
		}
		domains = append(domains, models.DomainNode{
			ID:               b.namespace + ":" + d.ID,
			Type:             "Domain",
			Label:            valueOr(d.Label, d.ID),
			Comment:          d.Description,
			TableCount:       counts[d.ID],
			DatabaseAffinity: affinity,
		})
	}
	return domains
}

func (b *Builder) buildMetrics() []models.MetricNode {
	metrics := make([]models.MetricNode, 0, len(b.rules.Metrics))
	for _, m := range b.rules.Metrics {
		sourceColumns := m.SourceColumns
		if sourceColumns == nil {
			sourceColumns = []string{}
		}
		conditions := make([]models.MetricCondition, 0, len(m.Conditions))
		for _, c := range m.Conditions {
			conditions = append(conditions, models.MetricCondition{Field: c.Field, Operator: c.Operator, Value: c.Value})
		}
		metrics = append(metrics, models.MetricNode{
			ID:                    b.namespace + ":metric:" + m.ID,
			Type:                  "Metric",
			Label:                 valueOr(m.Label, m.ID),
			Comment:               m.Description,
			Formula:               m.Formula,
			SourceColumns:         sourceColumns,
			Conditions:            conditions,
			ObservationWindowDays: m.ObservationWindowDays,
			Notes:                 m.Notes,
		})
	}
	return metrics
}

func (b *Builder) buildCoreEntities() []models.CoreEntityNode {
	core := make([]models.CoreEntityNode, 0, len(b.rules.CoreEntities))
	for _, e := range b.rules.CoreEntities {
		node := models.CoreEntityNode{
			ID:              b.namespace + ":core:" + e.Table,
			Type:            "CoreEntity",
			Label:           valueOr(e.Label, e.Table),
			Comment:         e.Description,
			Table:           e.Table,
			KeyColumn:       e.KeyColumn,
			IsAggregateRoot: e.IsAggregateRoot,
		}
		if e.BelongsTo != "" {
			node.BelongsTo = b.namespace + ":core:" + e.BelongsTo
		}
		core = append(core, node)
	}
	return core
}

// buildContext merges configured prefixes with the standard vocabulary.
// Standard entries win on conflict.
func (b *Builder) buildContext() map[string]any {
	ctx := make(map[string]any, len(b.rules.Ontology.Context)+10)
	for k, v := range b.rules.Ontology.Context {
		ctx[k] = v
	}
	base := b.rules.Ontology.BaseURI
	ctx["@vocab"] = base
	ctx["rdfs"] = "http://www.w3.org/2000/01/rdf-schema#"
	ctx["xsd"] = "http://www.w3.org/2001/XMLSchema#"
	ctx[b.namespace] = base
	ctx["generatedAt"] = map[string]string{"@type": "xsd:dateTime"}
	ctx["rowCount"] = map[string]string{"@type": "xsd:integer"}
	ctx["belongsToDomain"] = map[string]string{"@type": "@id"}
	ctx["hasColumn"] = map[string]string{"@container": "@set"}
	ctx["sourceColumns"] = map[string]string{"@container": "@list"}
	ctx["conditions"] = map[string]string{"@container": "@list"}
	return ctx
}

func sourceStats(rows []models.CatalogRow, tables int) models.SourceStats {
	databases := map[string]bool{}
	fks := 0
	for i := range rows {
		databases[rows[i].Database] = true
		if rows[i].IsForeignKey {
			fks++
		}
	}
	return models.SourceStats{
		TotalColumns:     len(rows),
		TotalTables:      tables,
		TotalDatabases:   len(databases),
		TotalForeignKeys: fks,
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

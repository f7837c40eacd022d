package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-catalog/pkg/ontology"
	"github.com/ekaya-inc/ekaya-catalog/pkg/procedures"
)

// OntologyBuildResult reports one ontology build.
type OntologyBuildResult struct {
	Path            string `json:"path"`
	SummaryPath     string `json:"summary_path"`
	Entities        int    `json:"entities"`
	Relationships   int    `json:"relationships"`
	ReviewItems     int    `json:"review_items"`
	EnrichedTables  int    `json:"enriched_tables"`
	EnrichedColumns int    `json:"enriched_columns"`
}

// OntologyService regenerates ontology.jsonld and its markdown summary from
// the catalog snapshot.
type OntologyService interface {
	Build(ctx context.Context) (*OntologyBuildResult, error)
}

type ontologyService struct {
	store  *catalog.Store
	paths  config.Paths
	logger *zap.Logger
}

var _ OntologyService = (*ontologyService)(nil)

// NewOntologyService creates an OntologyService.
func NewOntologyService(store *catalog.Store, paths config.Paths, logger *zap.Logger) OntologyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ontologyService{store: store, paths: paths, logger: logger.Named("ontology")}
}

// Build classifies the snapshot with ontology_config.yaml. Usage counts from
// an existing procedure analysis are applied when one is present.
func (s *ontologyService) Build(ctx context.Context) (*OntologyBuildResult, error) {
	rules, err := config.LoadRules(s.paths.Rules)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	builder, err := ontology.NewBuilder(rules, s.logger)
	if err != nil {
		return nil, fmt.Errorf("create ontology builder: %w", err)
	}
	doc := builder.Build(rows)

	result := &OntologyBuildResult{
		Path:          s.paths.Ontology,
		SummaryPath:   s.paths.OntologySummary,
		Entities:      len(doc.Entities),
		Relationships: len(doc.Relationships),
		ReviewItems:   doc.ReviewQueue.Summary.TotalItemsNeedingReview,
	}

	analysis, err := procedures.LoadAnalysis(s.paths.Analysis)
	switch {
	case err == nil:
		result.EnrichedTables, result.EnrichedColumns = ontology.ApplyUsage(doc, analysis.TableUsage, analysis.ColumnUsage)
	case errors.Is(err, apperrors.ErrNotFound):
		s.logger.Debug("No procedure analysis, skipping usage enrichment")
	default:
		s.logger.Warn("Failed to read procedure analysis, skipping usage enrichment", zap.Error(err))
	}

	if err := ontology.Save(s.paths.Ontology, doc); err != nil {
		return nil, err
	}
	if err := jsonutil.WriteBytes(s.paths.OntologySummary, []byte(ontology.Summary(doc, rules))); err != nil {
		return nil, fmt.Errorf("write ontology summary: %w", err)
	}
	return result, nil
}

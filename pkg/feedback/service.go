package feedback

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/ontology"
	"github.com/ekaya-inc/ekaya-catalog/pkg/procedures"
)

// ExportResult reports a written workbook.
type ExportResult struct {
	Path         string `json:"path"`
	Procedures   int    `json:"procedures"`
	Metrics      int    `json:"metrics"`
	Joins        int    `json:"joins"`
	Aggregations int    `json:"aggregations"`
	Filters      int    `json:"filters"`
}

// ImportResult reports what a reviewed workbook contained and where it went.
type ImportResult struct {
	Feedback        *models.ReviewFeedback `json:"feedback"`
	DryRun          bool                   `json:"dryRun"`
	LogPath         string                 `json:"logPath,omitempty"`
	OntologyChanges int                    `json:"ontologyChanges"`
	AnalysisChanges int                    `json:"analysisChanges"`
}

// Service runs review round trips against the artifacts of one catalog
// directory.
type Service struct {
	paths  config.Paths
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(paths config.Paths, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		paths:  paths,
		logger: logger.Named("feedback"),
		now:    time.Now,
	}
}

// Export writes the review workbook for the topN procedures of the current
// analysis. An empty output path writes reviews/procedure_patterns_<date>.xlsx.
func (s *Service) Export(topN int, output string) (*ExportResult, error) {
	analysis, err := procedures.LoadAnalysis(s.paths.Analysis)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if output == "" {
		output = filepath.Join(s.paths.ReviewsDir, "procedure_patterns_"+now.Format("2006-01-02")+".xlsx")
	}

	data := BuildReviewData(analysis, topN)
	withPatterns := 0
	for _, p := range analysis.Procedures {
		if p.ParsedPatterns != nil {
			withPatterns++
		}
	}
	if withPatterns == 0 {
		s.logger.Warn("No parsed patterns in the analysis, the workbook will be empty")
	}

	if err := WriteWorkbook(output, data, now); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = defaultReviewedProcs
	}
	result := &ExportResult{
		Path:         output,
		Procedures:   min(len(analysis.Procedures), topN),
		Metrics:      len(data.Metrics),
		Joins:        len(data.Joins),
		Aggregations: len(data.Aggregations),
		Filters:      len(data.Filters),
	}
	s.logger.Info("Wrote review workbook",
		zap.String("path", output),
		zap.Int("metrics", result.Metrics),
		zap.Int("joins", result.Joins),
		zap.Int("filters", result.Filters))
	return result, nil
}

// Import reads a reviewed workbook. Unless dryRun is set, the feedback is
// appended to the day's feedback log and applied to the ontology and the
// analysis. Missing artifacts are skipped with a warning.
func (s *Service) Import(workbook, reviewer string, dryRun bool) (*ImportResult, error) {
	fb, err := ReadWorkbook(workbook)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{Feedback: fb, DryRun: dryRun}
	if fb.Total() == 0 || dryRun {
		return result, nil
	}

	now := s.now()
	result.LogPath, err = s.appendLog(fb, workbook, reviewer, now)
	if err != nil {
		return result, err
	}
	result.OntologyChanges, err = s.applyToOntology(fb)
	if err != nil {
		return result, err
	}
	result.AnalysisChanges, err = s.applyToAnalysis(fb)
	if err != nil {
		return result, err
	}

	s.logger.Info("Applied review feedback",
		zap.Int("items", fb.Total()),
		zap.Int("ontology_changes", result.OntologyChanges),
		zap.Int("analysis_changes", result.AnalysisChanges))
	return result, nil
}

// appendLog adds one session to reviews/procedure_feedback_<date>.json.
func (s *Service) appendLog(fb *models.ReviewFeedback, workbook, reviewer string, now time.Time) (string, error) {
	path := filepath.Join(s.paths.ReviewsDir, "procedure_feedback_"+now.Format("2006-01-02")+".json")

	var sessions []models.FeedbackLog
	if err := jsonutil.ReadFile(path, &sessions); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Replacing unreadable feedback log", zap.String("path", path), zap.Error(err))
		sessions = nil
	}
	var reviewedBy *string
	if reviewer != "" {
		reviewedBy = &reviewer
	}
	sessions = append(sessions, models.FeedbackLog{
		ReviewedBy:     reviewedBy,
		ReviewedAt:     now,
		SourceFile:     filepath.Base(workbook),
		ReviewFeedback: *fb,
	})
	if err := jsonutil.WriteFile(path, sessions); err != nil {
		return "", fmt.Errorf("write feedback log: %w", err)
	}
	return path, nil
}

// applyToOntology tags columns used by renamed metrics with the corrected
// name and sets the business meaning of filtered columns.
func (s *Service) applyToOntology(fb *models.ReviewFeedback) (int, error) {
	doc, err := ontology.Load(s.paths.Ontology)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("ontology.jsonld not found, skipping ontology update")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	changes := ApplyToOntology(doc, fb)
	if changes > 0 {
		if err := ontology.Save(s.paths.Ontology, doc); err != nil {
			return 0, err
		}
	}
	return changes, nil
}

// applyToAnalysis appends every item to the analysis' reviewFeedback.
func (s *Service) applyToAnalysis(fb *models.ReviewFeedback) (int, error) {
	analysis, err := procedures.LoadAnalysis(s.paths.Analysis)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("procedure_analysis.json not found, skipping analysis update")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if analysis.ReviewFeedback == nil {
		analysis.ReviewFeedback = &models.ReviewFeedback{
			MetricCorrections: []models.MetricCorrection{},
			RelationshipFlags: []models.RelationshipFlag{},
			FilterMeanings:    []models.FilterMeaning{},
		}
	}
	analysis.ReviewFeedback.Append(fb)
	if err := procedures.SaveAnalysis(s.paths.Analysis, analysis); err != nil {
		return 0, err
	}
	return fb.Total(), nil
}

// ApplyToOntology folds feedback into doc and returns the number of column
// changes. Metric corrections add the corrected name to the businessTerms
// of every column named in the formula; filter meanings set the
// businessMeaning of the filtered column. Later feedback wins.
func ApplyToOntology(doc *models.OntologyDocument, fb *models.ReviewFeedback) int {
	terms := map[string]string{}
	for _, mc := range fb.MetricCorrections {
		if mc.CorrectedName == nil {
			continue
		}
		for _, col := range FormulaColumns(mc.Formula) {
			terms[col] = *mc.CorrectedName
		}
	}
	meanings := map[string]string{}
	for _, fm := range fb.FilterMeanings {
		col := fm.Column
		if i := strings.LastIndex(col, "."); i >= 0 {
			col = col[i+1:]
		}
		meanings[col] = fm.BusinessMeaning
	}

	changes := 0
	for i := range doc.Entities {
		for j := range doc.Entities[i].Columns {
			c := &doc.Entities[i].Columns[j]
			if term, ok := terms[c.Label]; ok && !slices.Contains(c.BusinessTerms, term) {
				c.BusinessTerms = append(c.BusinessTerms, term)
				changes++
			}
			if meaning, ok := meanings[c.Label]; ok {
				c.BusinessMeaning = meaning
				changes++
			}
		}
	}
	return changes
}

var (
	formulaIdentifier = regexp.MustCompile(`(?:\w+\.)?(\w+)`)
	formulaKeywords   = map[string]bool{
		"case": true, "when": true, "then": true, "else": true, "end": true,
		"and": true, "or": true, "not": true, "sum": true, "count": true,
		"avg": true, "min": true, "max": true, "nullif": true, "cast": true, "as": true,
	}
	digitsOnly = regexp.MustCompile(`^\d+$`)
)

// FormulaColumns picks the column-like words of a formula: qualifiers are
// dropped and SQL keywords and numbers are skipped.
func FormulaColumns(formula string) []string {
	var cols []string
	for _, m := range formulaIdentifier.FindAllStringSubmatch(formula, -1) {
		word := m[1]
		if formulaKeywords[strings.ToLower(word)] || digitsOnly.MatchString(word) {
			continue
		}
		cols = append(cols, word)
	}
	return cols
}

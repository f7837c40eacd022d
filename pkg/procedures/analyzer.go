// Package procedures ranks the programmable objects of the scanned servers,
// extracts relational patterns from the most important ones and derives
// table and column usage from their dependencies.
package procedures

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/ontology"
	"github.com/ekaya-inc/ekaya-catalog/pkg/retry"
)

const defaultTopN = 100

// Options control one analysis run.
type Options struct {
	// Targets limits the run to these target keys; empty means all.
	Targets []string
	// TopN is how many objects per target are parsed, by importance.
	TopN int
	// Namespace prefixes procedure ids; BaseURI is what it expands to.
	Namespace string
	BaseURI   string
	// EnrichOntology writes usage counts into ontology.jsonld.
	EnrichOntology bool
	// Timeout bounds the reads of each database; zero means no limit.
	Timeout time.Duration
}

// OptionsFromConfig maps the analysis settings onto Options.
func OptionsFromConfig(c config.AnalysisConfig) Options {
	return Options{
		TopN:      c.TopN,
		Namespace: c.Namespace,
	}
}

// DatabaseFailure is a database whose objects could not be read.
type DatabaseFailure struct {
	Database string `json:"database"`
	Error    string `json:"error"`
}

// TargetReport reports the analysis of one target.
type TargetReport struct {
	Target    string            `json:"target"`
	Databases int               `json:"databases"`
	Objects   int               `json:"objects"`
	Failures  []DatabaseFailure `json:"failures,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Report summarizes a run for the operator.
type Report struct {
	Targets         []TargetReport `json:"targets"`
	Ranked          int            `json:"ranked"`
	Parsed          int            `json:"parsed"`
	ParseErrors     int            `json:"parseErrors"`
	EnrichedTables  int            `json:"enrichedTables"`
	EnrichedColumns int            `json:"enrichedColumns"`
}

// String renders the parse tally, e.g. "parsed 42/50 procedures, 3 errors".
func (r *Report) String() string {
	return fmt.Sprintf("parsed %d/%d procedures, %d errors", r.Parsed, r.Ranked, r.ParseErrors)
}

// Analyzer reads programmable objects from the sources and writes
// procedure_analysis.json.
type Analyzer struct {
	factory datasource.DatasourceAdapterFactory
	store   *catalog.Store
	paths   config.Paths
	lookup  func(string) (string, bool)
	retry   *retry.Config
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an Analyzer. store may be nil, in which case no unused
// objects are reported.
func New(factory datasource.DatasourceAdapterFactory, store *catalog.Store, paths config.Paths, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		factory: factory,
		store:   store,
		paths:   paths,
		lookup:  os.LookupEnv,
		retry:   retry.DefaultConfig(),
		logger:  logger.Named("procedures"),
		now:     time.Now,
	}
}

// Run analyzes the selected targets and writes the combined document.
// Unknown target keys and missing credentials fail before any connection.
// Unreachable targets and unreadable databases are reported and skipped.
func (a *Analyzer) Run(ctx context.Context, targets config.Targets, opts Options) (*models.ProcedureAnalysis, *Report, error) {
	keys := opts.Targets
	if len(keys) == 0 {
		keys = targets.Keys()
	}
	conns := make(map[string]datasource.ConnectionConfig, len(keys))
	for _, key := range keys {
		t, ok := targets[key]
		if !ok {
			return nil, nil, fmt.Errorf("%w: target %q is not in targets.yaml", apperrors.ErrNotFound, key)
		}
		cc, err := datasource.ConnectionConfigFor(t, a.lookup)
		if err != nil {
			return nil, nil, err
		}
		conns[key] = cc
	}

	report := &Report{}
	var collected []*targetData
	for _, key := range keys {
		data, tr := a.collectTarget(ctx, key, targets[key], conns[key], opts.Timeout)
		report.Targets = append(report.Targets, tr)
		if data != nil {
			collected = append(collected, data)
		}
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
	}

	analysis := build(collected, opts, a.now(), a.logger)
	report.Ranked = len(analysis.Procedures)
	report.Parsed = analysis.Summary.Parsed
	report.ParseErrors = analysis.Summary.ParseErrors

	rows, err := a.catalogRows(ctx)
	if err != nil {
		return nil, report, err
	}
	analysis.UnusedObjects = unusedObjects(rows, collected, analysis.TableUsage, analysis.ColumnUsage)

	if prev, err := LoadAnalysis(a.paths.Analysis); err == nil {
		analysis.ReviewFeedback = prev.ReviewFeedback
	}
	if err := SaveAnalysis(a.paths.Analysis, analysis); err != nil {
		return nil, report, err
	}

	if opts.EnrichOntology {
		if err := a.enrichOntology(analysis, report); err != nil {
			return analysis, report, err
		}
	}

	a.logger.Info("Procedure analysis complete",
		zap.Int("procedures", len(analysis.Procedures)),
		zap.Int("tables_with_usage", len(analysis.TableUsage)),
		zap.Int("columns_with_usage", len(analysis.ColumnUsage)),
		zap.String("parse", report.String()))
	return analysis, report, nil
}

// targetData is everything read from one target.
type targetData struct {
	target  string
	objects []models.ProgrammableObject
	stats   []models.ExecutionStat
	deps    []models.ObjectDependency
	// depsRead lists databases whose dependencies were read successfully.
	depsRead map[string]bool
}

func (a *Analyzer) collectTarget(ctx context.Context, key string, t config.Target, cc datasource.ConnectionConfig, timeout time.Duration) (*targetData, TargetReport) {
	logger := a.logger.With(zap.String("target", key))
	tr := TargetReport{Target: key}

	src, err := datasource.Open(ctx, a.factory, t, cc, a.retry)
	if err != nil {
		tr.Error = logging.SanitizeError(err)
		logger.Error("Target analysis failed", zap.String("error", tr.Error))
		return nil, tr
	}
	defer src.Close()

	all, err := listDatabases(ctx, src, timeout)
	if err != nil {
		tr.Error = logging.SanitizeError(fmt.Errorf("list databases: %w", err))
		logger.Error("Target analysis failed", zap.String("error", tr.Error))
		return nil, tr
	}

	data := &targetData{target: key, depsRead: map[string]bool{}}
	for _, db := range all {
		if !t.IncludesDatabase(db) {
			continue
		}
		tr.Databases++
		if err := a.collectDatabaseWithin(ctx, timeout, logger, src, db, data); err != nil {
			tr.Failures = append(tr.Failures, DatabaseFailure{Database: db, Error: logging.SanitizeError(err)})
			logger.Warn("Database analysis failed, continuing",
				zap.String("database", db),
				zap.String("error", logging.SanitizeError(err)))
			if ctx.Err() != nil {
				break
			}
		}
	}
	tr.Objects = len(data.objects)
	logger.Info("Analyzed target",
		zap.Int("databases", tr.Databases),
		zap.Int("objects", len(data.objects)),
		zap.Int("stats", len(data.stats)),
		zap.Int("dependencies", len(data.deps)))
	return data, tr
}

func listDatabases(ctx context.Context, src datasource.MetadataSource, timeout time.Duration) ([]string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return src.ListDatabases(ctx)
}

// collectDatabaseWithin bounds collectDatabase by timeout when it is positive.
func (a *Analyzer) collectDatabaseWithin(ctx context.Context, timeout time.Duration, logger *zap.Logger, src datasource.MetadataSource, db string, data *targetData) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return a.collectDatabase(ctx, logger, src, db, data)
}

// collectDatabase reads the objects of one database. Missing statistics or
// dependencies only cost the ranking or usage data of that database.
func (a *Analyzer) collectDatabase(ctx context.Context, logger *zap.Logger, src datasource.MetadataSource, db string, data *targetData) error {
	objects, err := src.DiscoverProgrammableObjects(ctx, db)
	if err != nil {
		return fmt.Errorf("discover programmable objects in %s: %w", db, err)
	}
	data.objects = append(data.objects, objects...)

	stats, err := src.ExecutionStats(ctx, db)
	if err != nil {
		logger.Warn("Execution statistics unavailable",
			zap.String("database", db),
			zap.String("error", logging.SanitizeError(err)))
	}
	data.stats = append(data.stats, stats...)

	deps, err := src.ObjectDependencies(ctx, db)
	if err != nil {
		logger.Warn("Object dependencies unavailable",
			zap.String("database", db),
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}
	data.deps = append(data.deps, deps...)
	data.depsRead[db] = true
	return nil
}

func (a *Analyzer) catalogRows(ctx context.Context) ([]models.CatalogRow, error) {
	if a.store == nil {
		return nil, nil
	}
	rows, err := a.store.Load(ctx)
	if errors.Is(err, apperrors.ErrCatalogNotFound) {
		a.logger.Warn("No catalog snapshot, skipping unused object detection")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return rows, nil
}

func (a *Analyzer) enrichOntology(analysis *models.ProcedureAnalysis, report *Report) error {
	doc, err := ontology.Load(a.paths.Ontology)
	if errors.Is(err, apperrors.ErrNotFound) {
		a.logger.Warn("ontology.jsonld not found, skipping enrichment")
		return nil
	}
	if err != nil {
		return err
	}
	report.EnrichedTables, report.EnrichedColumns = ontology.ApplyUsage(doc, analysis.TableUsage, analysis.ColumnUsage)
	if err := ontology.Save(a.paths.Ontology, doc); err != nil {
		return err
	}
	a.logger.Info("Enriched ontology",
		zap.Int("tables", report.EnrichedTables),
		zap.Int("columns", report.EnrichedColumns))
	return nil
}

// LoadAnalysis reads procedure_analysis.json. A missing file wraps
// apperrors.ErrNotFound.
func LoadAnalysis(path string) (*models.ProcedureAnalysis, error) {
	var analysis models.ProcedureAnalysis
	if err := jsonutil.ReadFile(path, &analysis); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("procedure analysis %s: %w", path, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("load procedure analysis: %w", err)
	}
	return &analysis, nil
}

// SaveAnalysis atomically writes the analysis document.
func SaveAnalysis(path string, analysis *models.ProcedureAnalysis) error {
	if err := jsonutil.WriteFile(path, analysis); err != nil {
		return fmt.Errorf("save procedure analysis: %w", err)
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// CatalogService answers read-only questions about the catalog snapshot.
type CatalogService interface {
	// Search ranks catalog rows against keywords. Keywords that look like
	// injection payloads wrap apperrors.ErrValidation.
	Search(ctx context.Context, keywords []string, limit int) ([]models.ScoredRow, error)
	// Describe returns the columns of a database.schema.table.
	Describe(ctx context.Context, target string) ([]models.CatalogRow, error)
	// Joins returns the foreign keys into and out of a database.schema.table.
	Joins(ctx context.Context, target string) (*catalog.JoinPaths, error)
	// Status reports catalog size and freshness. A missing catalog is not an
	// error; the status says so and carries guidance.
	Status(ctx context.Context) (models.CatalogStatus, error)
}

type catalogService struct {
	reader       *catalog.Reader
	lastScanPath string
	staleDays    int
	logger       *zap.Logger
	now          func() time.Time
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService creates a CatalogService over reader. lastScanPath
// locates last_scan.json.
func NewCatalogService(reader *catalog.Reader, lastScanPath string, staleDays int, logger *zap.Logger) CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &catalogService{
		reader:       reader,
		lastScanPath: lastScanPath,
		staleDays:    staleDays,
		logger:       logger.Named("catalog-service"),
		now:          time.Now,
	}
}

func (s *catalogService) Search(ctx context.Context, keywords []string, limit int) ([]models.ScoredRow, error) {
	if err := catalog.ValidateKeywords(keywords); err != nil {
		s.logger.Warn("Rejected search keywords", zap.Error(err))
		return nil, err
	}
	if limit <= 0 {
		limit = catalog.DefaultSearchLimit
	}
	rows, err := s.reader.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Search(rows, keywords, limit), nil
}

func (s *catalogService) Describe(ctx context.Context, target string) ([]models.CatalogRow, error) {
	rows, err := s.reader.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Describe(rows, target)
}

func (s *catalogService) Joins(ctx context.Context, target string) (*catalog.JoinPaths, error) {
	rows, err := s.reader.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Joins(rows, target)
}

func (s *catalogService) Status(ctx context.Context) (models.CatalogStatus, error) {
	rows, err := s.reader.Rows(ctx)
	if err != nil && !errors.Is(err, apperrors.ErrCatalogNotFound) {
		return models.CatalogStatus{}, err
	}
	lastScan, err := catalog.LoadLastScan(s.lastScanPath)
	if err != nil {
		return models.CatalogStatus{}, err
	}
	return catalog.Status(rows, lastScan, s.now(), s.staleDays), nil
}

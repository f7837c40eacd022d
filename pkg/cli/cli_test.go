package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/testhelpers"
)

func run(t *testing.T, paths config.Paths, args ...string) (string, error) {
	t.Helper()
	app := NewApp("test")
	app.cfg = &config.Config{
		Env:        "test",
		Version:    "test",
		CatalogDir: paths.Dir,
		Username:   "tester",
		Paths:      paths,
		Scan:       config.ScanConfig{StaleDays: 7},
		Analysis:   config.AnalysisConfig{TopN: 100, Namespace: "catalog"},
	}
	app.logger = zaptest.NewLogger(t)
	app.now = func() time.Time { return testhelpers.CatalogScanTime }

	root := NewRootCommand(app)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestSearchCommand(t *testing.T) {
	paths := testhelpers.WriteCatalog(t, testhelpers.SalesCatalog())

	output, err := run(t, paths, "search", "customer,email", "--format", "json", "--limit", "2")
	require.NoError(t, err)
	var results []models.ScoredRow
	require.NoError(t, json.Unmarshal([]byte(output), &results), output)
	require.Len(t, results, 2)
	assert.Equal(t, "Customers", results[0].TableName)

	_, err = run(t, paths, "search", "order", "--format", "xml")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = run(t, paths, "search")
	assert.Error(t, err)
}

func TestDescribeAndJoinsCommands(t *testing.T) {
	paths := testhelpers.WriteCatalog(t, testhelpers.SalesCatalog())

	output, err := run(t, paths, "describe", "Sales.dbo.Customers")
	require.NoError(t, err)
	assert.Contains(t, output, "CustomerID")
	assert.Contains(t, output, "Email")

	output, err = run(t, paths, "joins", "Sales.dbo.Customers")
	require.NoError(t, err)
	assert.Contains(t, output, "Tables referencing Sales.dbo.Customers")
	assert.Contains(t, output, "Orders")

	_, err = run(t, paths, "describe", "Sales.dbo.Missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStatusCommand_NoCatalog(t *testing.T) {
	output, err := run(t, config.NewPaths(t.TempDir()), "status")
	require.NoError(t, err)
	assert.Contains(t, output, "ekaya-catalog refresh")

	_, err = run(t, config.NewPaths(t.TempDir()), "search", "order")
	require.ErrorIs(t, err, apperrors.ErrCatalogNotFound)
	assert.Contains(t, Guidance(err), "ekaya-catalog refresh")
}

func TestAnnotateCommands(t *testing.T) {
	paths := config.NewPaths(t.TempDir())

	output, err := run(t, paths, "annotate", "add", "Sales.dbo.Orders", "note", "Loaded", "nightly")
	require.NoError(t, err)
	assert.Contains(t, output, "Added note")

	_, err = run(t, paths, "annotate", "add", "Sales.dbo.Orders", "quality_flag", "GREAT")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	output, err = run(t, paths, "annotate", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "Sales.dbo.Orders")
	assert.Contains(t, output, "[note] Loaded nightly (tester,")

	output, err = run(t, paths, "annotate", "list", "Sales.dbo.Audit")
	require.NoError(t, err)
	assert.Contains(t, output, "No annotations.")

	_, err = os.Stat(filepath.Join(paths.AnnotationsDir, "tester.json"))
	assert.NoError(t, err)
}

func TestCommandsNeedConfigFiles(t *testing.T) {
	paths := testhelpers.WriteCatalog(t, testhelpers.SalesCatalog())

	for _, args := range [][]string{{"refresh"}, {"analyze"}, {"build-ontology"}} {
		t.Run(args[0], func(t *testing.T) {
			_, err := run(t, paths, args...)
			require.ErrorIs(t, err, apperrors.ErrConfigNotFound)
			assert.NotEmpty(t, Guidance(err))
		})
	}
}

func TestReviewExport_NoAnalysis(t *testing.T) {
	_, err := run(t, config.NewPaths(t.TempDir()), "review", "export")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGuidance(t *testing.T) {
	assert.Contains(t, Guidance(fmt.Errorf("x: %w", apperrors.ErrMissingCredentials)), "password_env")
	assert.Contains(t, Guidance(apperrors.ErrUnsupportedSource), "mssql")
	assert.Empty(t, Guidance(fmt.Errorf("boom")))
}

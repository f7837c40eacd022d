// Package cli wires the catalog components into the ekaya-catalog command
// line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-catalog/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
	"github.com/ekaya-inc/ekaya-catalog/pkg/services"
)

// App carries what every command needs. Fields left nil are filled in from
// config.yaml and the environment before a command runs.
type App struct {
	version    string
	cfg        *config.Config
	logger     *zap.Logger
	factory    datasource.DatasourceAdapterFactory
	catalogDir string
	now        func() time.Time
}

// NewApp creates an App for the given build version.
func NewApp(version string) *App {
	return &App{version: version, now: time.Now}
}

// Execute runs the command line and reports a failure with guidance on
// stderr. It returns the error so main can set the exit code.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(NewApp(version))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := Guidance(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		return err
	}
	return nil
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "ekaya-catalog",
		Short:         "Data catalog, ontology and procedure analysis for SQL servers",
		Long:          `Scans database servers into a local catalog, classifies it into an ontology, mines stored procedures for business logic and serves the result to people and MCP clients.`,
		Version:       app.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&app.catalogDir, "catalog-dir", "", "Catalog directory (default $DENG_CATALOG_DIR or ~/.ds_catalog)")

	root.AddCommand(
		newRefreshCommand(app),
		newSearchCommand(app),
		newDescribeCommand(app),
		newJoinsCommand(app),
		newStatusCommand(app),
		newBuildOntologyCommand(app),
		newAnalyzeCommand(app),
		newAnnotateCommand(app),
		newReviewCommand(app),
		newMCPCommand(app),
		newServeCommand(app),
	)
	return root
}

func (a *App) init() error {
	if a.cfg == nil {
		cfg, err := config.Load(a.version)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.catalogDir != "" {
		a.cfg.CatalogDir = a.catalogDir
		a.cfg.Paths = config.NewPaths(a.catalogDir)
	}
	if a.logger == nil {
		logger, err := logging.New(a.cfg.Env, a.cfg.LogLevel)
		if err != nil {
			return err
		}
		a.logger = logger
	}
	if a.factory == nil {
		a.factory = datasource.NewDatasourceAdapterFactory(a.logger)
	}
	if a.now == nil {
		a.now = time.Now
	}
	if err := os.MkdirAll(a.cfg.Paths.Dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	return nil
}

func (a *App) store() *catalog.Store {
	return catalog.NewStore(a.cfg.Paths.Metadata, a.logger)
}

func (a *App) catalogService() (services.CatalogService, error) {
	reader, err := catalog.NewReader(a.store(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("create catalog reader: %w", err)
	}
	return services.NewCatalogService(reader, a.cfg.Paths.LastScan, a.cfg.Scan.StaleDays, a.logger), nil
}

func (a *App) targets() (config.Targets, error) {
	return config.LoadTargets(a.cfg.Paths.Targets)
}

// Guidance names the command or file that fixes a missing prerequisite.
func Guidance(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrCatalogNotFound):
		return "No catalog snapshot yet. Run `ekaya-catalog refresh` to scan the configured targets."
	case errors.Is(err, apperrors.ErrConfigNotFound):
		return "Create the missing file in the catalog directory (targets.yaml lists source servers, ontology_config.yaml holds classification rules)."
	case errors.Is(err, apperrors.ErrMissingCredentials):
		return "Export the environment variables named by host_env, user_env and password_env in targets.yaml."
	case errors.Is(err, apperrors.ErrUnsupportedSource):
		return "Supported target types: " + supportedTypes() + "."
	}
	return ""
}

func supportedTypes() string {
	var types []string
	for _, info := range datasource.RegisteredAdapters() {
		types = append(types, info.Type)
	}
	return strings.Join(types, ", ")
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

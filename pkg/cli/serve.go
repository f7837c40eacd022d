package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/annotations"
	"github.com/ekaya-inc/ekaya-catalog/pkg/handlers"
	"github.com/ekaya-inc/ekaya-catalog/pkg/mcp"
	"github.com/ekaya-inc/ekaya-catalog/pkg/mcp/tools"
)

const (
	serverName      = "ekaya-catalog"
	shutdownTimeout = 10 * time.Second
)

func (a *App) mcpServer(ctx context.Context) (*mcp.Server, error) {
	svc, err := a.catalogService()
	if err != nil {
		return nil, err
	}
	deps := &tools.CatalogToolDeps{
		Catalog:     svc,
		Annotations: annotations.NewStore(a.cfg.Paths.AnnotationsDir, a.logger),
		Author:      annotations.ResolveAuthor(ctx, a.cfg.Username),
		Logger:      a.logger,
	}
	return mcp.NewCatalogServer(serverName, a.version, deps, a.logger), nil
}

func newMCPCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the catalog tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.mcpServer(cmd.Context())
			if err != nil {
				return err
			}
			err = s.ServeStdio(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newServeCommand(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and streamable-HTTP MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.cfg.Serve.Addr
			}
			handler, err := app.httpHandler(cmd.Context())
			if err != nil {
				return err
			}
			return serveHTTP(cmd.Context(), &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}, app.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $SERVE_ADDR or 127.0.0.1:3480)")
	return cmd
}

func (a *App) httpHandler(ctx context.Context) (http.Handler, error) {
	svc, err := a.catalogService()
	if err != nil {
		return nil, err
	}
	s, err := a.mcpServer(ctx)
	if err != nil {
		return nil, err
	}
	notes := annotations.NewStore(a.cfg.Paths.AnnotationsDir, a.logger)
	return handlers.NewRouter(
		handlers.NewHealthHandler(a.cfg, a.logger),
		handlers.NewCatalogHandler(svc, notes, a.logger),
		s.NewStreamableHTTPServer(),
		a.logger,
	), nil
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/refresh"
)

func newRefreshCommand(app *App) *cobra.Command {
	var (
		targets []string
		profile bool
		sample  int
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Scan the configured targets into the catalog",
		Long: `Scans every database of the targets in targets.yaml and replaces each
target's partition of the catalog snapshot. Databases that fail are reported
and skipped; other targets' partitions are kept as they are.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inventory, err := app.targets()
			if err != nil {
				return err
			}
			opts := refresh.OptionsFromConfig(app.cfg.Scan)
			opts.Targets = targets
			if cmd.Flags().Changed("profile") {
				opts.Profile = profile
			}
			if cmd.Flags().Changed("sample") {
				opts.ProfileSample = sample
			}

			result, err := refresh.New(app.store(), app.factory, app.cfg.Paths, app.logger).Run(cmd.Context(), inventory, opts)
			if result != nil {
				printRefresh(cmd, result)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Catalog holds %s columns. Summary: %s\n", humanize.Comma(int64(result.TotalRows)), app.cfg.Paths.CatalogSummary)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "Target key(s) to scan (default: all)")
	cmd.Flags().BoolVar(&profile, "profile", false, "Profile null rates and distinct counts (slow)")
	cmd.Flags().IntVar(&sample, "sample", 0, "Rows sampled per table when profiling; 0 scans whole tables")
	return cmd
}

func printRefresh(cmd *cobra.Command, result *refresh.Result) {
	w := out(cmd)
	for _, t := range result.Targets {
		if t.Error != "" {
			fmt.Fprintf(w, "%s: FAILED: %s (previous scan kept)\n", t.Target, t.Error)
			continue
		}
		fmt.Fprintf(w, "%s: %d databases, %s columns\n", t.Target, t.Databases, humanize.Comma(int64(t.Rows)))
		for _, f := range t.Failures {
			fmt.Fprintf(w, "  skipped %s: %s\n", f.Database, f.Error)
		}
	}
}

func formatFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "format", "f", "table", "Output format: table, json or csv")
}

func newSearchCommand(app *App) *cobra.Command {
	var (
		format string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search <keyword>...",
		Short: "Search tables and columns by keyword",
		Example: `  ekaya-catalog search customer email
  ekaya-catalog search order --limit 5 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := app.catalogService()
			if err != nil {
				return err
			}
			var keywords []string
			for _, arg := range args {
				for _, kw := range strings.Split(arg, ",") {
					if kw = strings.TrimSpace(kw); kw != "" {
						keywords = append(keywords, kw)
					}
				}
			}
			results, err := svc.Search(cmd.Context(), keywords, limit)
			if err != nil {
				return err
			}
			return catalog.WriteSearch(out(cmd), f, results)
		},
	}
	formatFlag(cmd, &format)
	cmd.Flags().IntVarP(&limit, "limit", "n", catalog.DefaultSearchLimit, "Maximum number of results")
	return cmd
}

func newDescribeCommand(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "describe <database.schema.table>",
		Short: "List the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := app.catalogService()
			if err != nil {
				return err
			}
			cols, err := svc.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return catalog.WriteColumns(out(cmd), f, cols)
		},
	}
	formatFlag(cmd, &format)
	return cmd
}

func newJoinsCommand(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "joins <database.schema.table>",
		Short: "Show foreign keys into and out of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := app.catalogService()
			if err != nil {
				return err
			}
			paths, err := svc.Joins(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return catalog.WriteJoins(out(cmd), f, paths)
		},
	}
	formatFlag(cmd, &format)
	return cmd
}

func newStatusCommand(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report catalog size and scan freshness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := app.catalogService()
			if err != nil {
				return err
			}
			status, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			return catalog.WriteStatus(out(cmd), f, status, app.now())
		},
	}
	formatFlag(cmd, &format)
	return cmd
}

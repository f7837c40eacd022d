package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/procedures"
	"github.com/ekaya-inc/ekaya-catalog/pkg/services"
)

func newBuildOntologyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "build-ontology",
		Short: "Classify the catalog into ontology.jsonld",
		Long: `Assigns every table a business domain and every column a semantic role
using ontology_config.yaml, infers relationships from foreign keys, and writes
ontology.jsonld plus ONTOLOGY_SUMMARY.md. Usage counts from the last
procedure analysis are included when present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.NewOntologyService(app.store(), app.cfg.Paths, app.logger).Build(cmd.Context())
			if err != nil {
				return err
			}
			w := out(cmd)
			fmt.Fprintf(w, "Wrote %s: %d entities, %d relationships, %d items need review\n",
				result.Path, result.Entities, result.Relationships, result.ReviewItems)
			if result.EnrichedTables > 0 || result.EnrichedColumns > 0 {
				fmt.Fprintf(w, "Applied usage to %d tables and %d columns\n", result.EnrichedTables, result.EnrichedColumns)
			}
			fmt.Fprintf(w, "Summary: %s\n", result.SummaryPath)
			return nil
		},
	}
}

func newAnalyzeCommand(app *App) *cobra.Command {
	var (
		targets   []string
		topN      int
		namespace string
		enrich    bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Rank and parse stored procedures, views and functions",
		Long: `Reads the programmable objects and execution statistics of every target,
ranks them by importance, extracts joins, aggregations, filters and metrics
from the top N definitions, and writes procedure_analysis.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inventory, err := app.targets()
			if err != nil {
				return err
			}
			opts := procedures.OptionsFromConfig(app.cfg.Analysis)
			opts.Timeout = app.cfg.Scan.Timeout()
			opts.Targets = targets
			opts.EnrichOntology = enrich
			if cmd.Flags().Changed("top-n") {
				opts.TopN = topN
			}
			if cmd.Flags().Changed("namespace") {
				opts.Namespace = namespace
			}
			if rules, err := config.LoadRules(app.cfg.Paths.Rules); err == nil {
				opts.BaseURI = rules.Ontology.BaseURI
			}

			analyzer := procedures.New(app.factory, app.store(), app.cfg.Paths, app.logger)
			_, report, err := analyzer.Run(cmd.Context(), inventory, opts)
			if report != nil {
				printAnalysis(cmd, report)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Wrote %s\n", app.cfg.Paths.Analysis)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "Target key(s) to analyze (default: all)")
	cmd.Flags().IntVarP(&topN, "top-n", "n", 100, "Objects parsed per target, by importance")
	cmd.Flags().StringVar(&namespace, "namespace", "catalog", "Prefix of procedure ids")
	cmd.Flags().BoolVar(&enrich, "enrich-ontology", false, "Write usage counts into ontology.jsonld")
	return cmd
}

func printAnalysis(cmd *cobra.Command, report *procedures.Report) {
	w := out(cmd)
	for _, t := range report.Targets {
		if t.Error != "" {
			fmt.Fprintf(w, "%s: FAILED: %s\n", t.Target, t.Error)
			continue
		}
		fmt.Fprintf(w, "%s: %d databases, %d objects\n", t.Target, t.Databases, t.Objects)
		for _, f := range t.Failures {
			fmt.Fprintf(w, "  skipped %s: %s\n", f.Database, f.Error)
		}
	}
	fmt.Fprintln(w, report.String())
	if report.EnrichedTables > 0 || report.EnrichedColumns > 0 {
		fmt.Fprintf(w, "Enriched ontology: %d tables, %d columns\n", report.EnrichedTables, report.EnrichedColumns)
	}
}

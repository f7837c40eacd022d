package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-catalog/pkg/annotations"
	"github.com/ekaya-inc/ekaya-catalog/pkg/feedback"
)

func newReviewCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Round-trip procedure patterns through a reviewer workbook",
	}

	var (
		topN   int
		output string
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the review workbook from procedure_analysis.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := feedback.NewService(app.cfg.Paths, app.logger).Export(topN, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Wrote %s: %d procedures, %d metrics, %d joins, %d aggregations, %d filters\n",
				result.Path, result.Procedures, result.Metrics, result.Joins, result.Aggregations, result.Filters)
			return nil
		},
	}
	export.Flags().IntVarP(&topN, "top-n", "n", 0, "Procedures included, by importance (default 100)")
	export.Flags().StringVarP(&output, "output", "o", "", "Workbook path (default reviews/procedure_patterns_<date>.xlsx)")

	var (
		reviewer string
		dryRun   bool
	)
	imp := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Apply a reviewed workbook to the ontology and the analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reviewer == "" {
				reviewer = annotations.ResolveAuthor(cmd.Context(), app.cfg.Username)
			}
			result, err := feedback.NewService(app.cfg.Paths, app.logger).Import(args[0], reviewer, dryRun)
			if err != nil {
				return err
			}
			fb := result.Feedback
			w := out(cmd)
			fmt.Fprintf(w, "Read %d metric corrections, %d relationship flags, %d filter meanings\n",
				len(fb.MetricCorrections), len(fb.RelationshipFlags), len(fb.FilterMeanings))
			switch {
			case fb.Total() == 0:
				fmt.Fprintln(w, "Nothing to apply.")
			case result.DryRun:
				fmt.Fprintln(w, "Dry run: nothing written.")
			default:
				fmt.Fprintf(w, "Logged to %s; %d ontology changes, %d analysis changes\n",
					result.LogPath, result.OntologyChanges, result.AnalysisChanges)
			}
			return nil
		},
	}
	imp.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer name recorded in the feedback log")
	imp.Flags().BoolVar(&dryRun, "dry-run", false, "Read and report without writing")

	cmd.AddCommand(export, imp)
	return cmd
}

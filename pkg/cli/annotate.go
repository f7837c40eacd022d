package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-catalog/pkg/annotations"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

func newAnnotateCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Add and list table annotations",
	}

	var author string
	add := &cobra.Command{
		Use:   "add <database.schema.table> <note|quality_flag|deprecation> <content>...",
		Short: "Attach an annotation to a table",
		Example: `  ekaya-catalog annotate add Sales.dbo.Orders note "Loaded nightly at 02:00"
  ekaya-catalog annotate add Sales.dbo.Orders quality_flag TRUSTED`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if author == "" {
				author = annotations.ResolveAuthor(cmd.Context(), app.cfg.Username)
			}
			store := annotations.NewStore(app.cfg.Paths.AnnotationsDir, app.logger)
			a, path, err := store.Add(author, args[0], args[1], strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Added %s %s to %s in %s\n", a.Type, a.ID, args[0], path)
			return nil
		},
	}
	add.Flags().StringVar(&author, "author", "", "Author name (default $DENG_USERNAME, git user.name, $USER)")

	var asJSON bool
	list := &cobra.Command{
		Use:   "list [database.schema.table]",
		Short: "List annotations of one or every table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := annotations.NewStore(app.cfg.Paths.AnnotationsDir, app.logger)
			byTarget := map[string][]models.Annotation{}
			if len(args) == 1 {
				notes, err := store.ForTarget(args[0])
				if err != nil {
					return err
				}
				if len(notes) > 0 {
					byTarget[args[0]] = notes
				}
			} else {
				all, err := store.All()
				if err != nil {
					return err
				}
				byTarget = all
			}

			w := out(cmd)
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(byTarget)
			}
			if len(byTarget) == 0 {
				fmt.Fprintln(w, "No annotations.")
				return nil
			}
			targets := make([]string, 0, len(byTarget))
			for t := range byTarget {
				targets = append(targets, t)
			}
			sort.Strings(targets)
			for _, t := range targets {
				fmt.Fprintln(w, t)
				for _, a := range byTarget[t] {
					fmt.Fprintf(w, "  [%s] %s (%s, %s)\n", a.Type, a.Content, a.Author, a.CreatedAt)
				}
			}
			return nil
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	cmd.AddCommand(add, list)
	return cmd
}

package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// Format selects the output shape of query results.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want table, json or csv)", apperrors.ErrValidation, s)
	}
}

var searchHeader = []string{"relevance", "target", "database", "schema", "table", "column", "data_type", "pk", "fk", "fk_references", "row_count"}

// WriteSearch renders ranked search results.
func WriteSearch(w io.Writer, f Format, results []models.ScoredRow) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, results)
	case FormatCSV:
		records := make([][]string, 0, len(results))
		for _, r := range results {
			records = append(records, []string{
				strconv.Itoa(r.Relevance), r.Target, r.Database, r.Schema, r.TableName, r.ColumnName, r.DataType,
				strconv.FormatBool(r.IsPrimaryKey), strconv.FormatBool(r.IsForeignKey), r.FKReferences,
				strconv.FormatInt(r.RowCountEstimate, 10),
			})
		}
		return writeCSV(w, searchHeader, records)
	default:
		if len(results) == 0 {
			_, err := fmt.Fprintln(w, "No matching columns.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tTABLE\tCOLUMN\tTYPE\tKEYS\tROWS")
		for _, r := range results {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				r.Relevance, r.Key(), r.ColumnName, r.DataType, keyFlags(&r.CatalogRow), humanize.Comma(r.RowCountEstimate))
		}
		return tw.Flush()
	}
}

var columnHeader = []string{"target", "database", "schema", "table", "column", "ordinal", "data_type", "nullable", "pk", "fk", "fk_references", "row_count"}

// WriteColumns renders catalog rows, as returned by Describe and Joins.
func WriteColumns(w io.Writer, f Format, rows []models.CatalogRow) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatCSV:
		records := make([][]string, 0, len(rows))
		for _, r := range rows {
			records = append(records, []string{
				r.Target, r.Database, r.Schema, r.TableName, r.ColumnName, strconv.Itoa(r.OrdinalPosition), r.DataType,
				strconv.FormatBool(r.IsNullable), strconv.FormatBool(r.IsPrimaryKey), strconv.FormatBool(r.IsForeignKey),
				r.FKReferences, strconv.FormatInt(r.RowCountEstimate, 10),
			})
		}
		return writeCSV(w, columnHeader, records)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TABLE\tCOLUMN\tTYPE\tNULL\tKEYS\tREFERENCES")
		for i := range rows {
			r := &rows[i]
			nullable := "NO"
			if r.IsNullable {
				nullable = "YES"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Key(), r.ColumnName, r.DataType, nullable, keyFlags(r), r.FKReferences)
		}
		return tw.Flush()
	}
}

// WriteJoins renders both directions of a table's join paths.
func WriteJoins(w io.Writer, f Format, paths *JoinPaths) error {
	if f == FormatJSON {
		return writeJSON(w, paths)
	}
	if f == FormatCSV {
		all := append(append([]models.CatalogRow{}, paths.Outbound...), paths.Inbound...)
		return WriteColumns(w, f, all)
	}
	fmt.Fprintf(w, "Outbound foreign keys of %s:\n", paths.Table)
	if err := writeSection(w, paths.Outbound); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTables referencing %s:\n", paths.Table)
	return writeSection(w, paths.Inbound)
}

func writeSection(w io.Writer, rows []models.CatalogRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "  (none)")
		return err
	}
	return WriteColumns(w, FormatTable, rows)
}

// WriteStatus renders the freshness report.
func WriteStatus(w io.Writer, f Format, status models.CatalogStatus, now time.Time) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, status)
	case FormatCSV:
		records := make([][]string, 0, len(status.Targets))
		for _, t := range status.Targets {
			records = append(records, []string{
				t.Target, t.ScannedAt.UTC().Format(time.RFC3339), strconv.Itoa(t.RowCount),
				strconv.Itoa(t.AgeDays), strconv.FormatBool(t.Stale),
			})
		}
		return writeCSV(w, []string{"target", "scanned_at", "row_count", "age_days", "stale"}, records)
	default:
		if !status.Available {
			_, err := fmt.Fprintln(w, status.Guidance)
			return err
		}
		fmt.Fprintf(w, "Catalog: %s databases, %s tables, %s columns\n\n",
			humanize.Comma(int64(status.Databases)), humanize.Comma(int64(status.Tables)), humanize.Comma(int64(status.Columns)))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TARGET\tSCANNED\tROWS\tSTATE")
		for _, t := range status.Targets {
			state := "fresh"
			if t.Stale {
				state = "STALE"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Target, humanize.RelTime(t.ScannedAt, now, "ago", "from now"),
				humanize.Comma(int64(t.RowCount)), state)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if status.Guidance != "" {
			_, err := fmt.Fprintf(w, "\n%s\n", status.Guidance)
			return err
		}
		return nil
	}
}

func keyFlags(r *models.CatalogRow) string {
	switch {
	case r.IsPrimaryKey && r.IsForeignKey:
		return "PK,FK"
	case r.IsPrimaryKey:
		return "PK"
	case r.IsForeignKey:
		return "FK"
	default:
		return ""
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

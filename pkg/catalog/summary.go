package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

const maxLargestTables = 20

type tableStat struct {
	key     models.TableKey
	target  string
	rows    int64
	columns int
}

type databaseStat struct {
	target   string
	database string
	tables   int
	columns  int
}

// Summary renders DATA_CATALOG_SUMMARY.md: size per database and the largest
// tables by estimated row count.
func Summary(rows []models.CatalogRow, generatedAt time.Time) string {
	tables := map[models.TableKey]*tableStat{}
	var order []models.TableKey
	for i := range rows {
		r := &rows[i]
		k := r.Key()
		t, ok := tables[k]
		if !ok {
			t = &tableStat{key: k, target: r.Target, rows: r.RowCountEstimate}
			tables[k] = t
			order = append(order, k)
		}
		t.columns++
	}

	dbIndex := map[string]*databaseStat{}
	var dbs []*databaseStat
	for _, k := range order {
		t := tables[k]
		id := t.target + "/" + k.Database
		d, ok := dbIndex[id]
		if !ok {
			d = &databaseStat{target: t.target, database: k.Database}
			dbIndex[id] = d
			dbs = append(dbs, d)
		}
		d.tables++
		d.columns += t.columns
	}
	sort.SliceStable(dbs, func(i, j int) bool {
		if dbs[i].target != dbs[j].target {
			return dbs[i].target < dbs[j].target
		}
		return dbs[i].database < dbs[j].database
	})

	var sb strings.Builder
	sb.WriteString("# Data Catalog Summary\n\n")
	fmt.Fprintf(&sb, "*Generated: %s*\n\n", generatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&sb, "- **Databases:** %s\n", humanize.Comma(int64(len(dbs))))
	fmt.Fprintf(&sb, "- **Tables:** %s\n", humanize.Comma(int64(len(tables))))
	fmt.Fprintf(&sb, "- **Columns:** %s\n\n", humanize.Comma(int64(len(rows))))

	sb.WriteString("## Databases\n\n")
	sb.WriteString("| Target | Database | Tables | Columns |\n")
	sb.WriteString("|--------|----------|--------|---------|\n")
	for _, d := range dbs {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", d.target, d.database,
			humanize.Comma(int64(d.tables)), humanize.Comma(int64(d.columns)))
	}
	sb.WriteString("\n")

	largest := make([]*tableStat, 0, len(order))
	for _, k := range order {
		largest = append(largest, tables[k])
	}
	sort.SliceStable(largest, func(i, j int) bool { return largest[i].rows > largest[j].rows })
	if len(largest) > maxLargestTables {
		largest = largest[:maxLargestTables]
	}

	sb.WriteString("## Largest Tables\n\n")
	sb.WriteString("| Table | Rows | Columns |\n")
	sb.WriteString("|-------|------|---------|\n")
	for _, t := range largest {
		fmt.Fprintf(&sb, "| %s | %s | %d |\n", t.key, humanize.Comma(t.rows), t.columns)
	}
	return sb.String()
}

package ontology

import "github.com/ekaya-inc/ekaya-catalog/pkg/models"

// ApplyUsage attaches procedure usage counts to the entities and columns of
// doc. Tables are looked up by bare name, then by schema.name; columns by
// "<table>.<column>" with the same table key. It returns how many entities
// and columns were annotated.
func ApplyUsage(doc *models.OntologyDocument, tableUsage map[string]models.TableUsage, columnUsage map[string]models.ColumnUsage) (tables, columns int) {
	for i := range doc.Entities {
		e := &doc.Entities[i]
		for _, tableKey := range []string{e.Label, e.Schema + "." + e.Label} {
			u, ok := tableUsage[tableKey]
			if !ok {
				continue
			}
			usage := u
			e.UsageStats = &usage
			tables++
			break
		}

		for j := range e.Columns {
			c := &e.Columns[j]
			for _, tableKey := range []string{e.Label, e.Schema + "." + e.Label} {
				u, ok := columnUsage[tableKey+"."+c.Label]
				if !ok {
					continue
				}
				usage := u
				c.UsageStats = &usage
				columns++
				break
			}
		}
	}
	return tables, columns
}

package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// Describe returns the columns of one table in ordinal order. target is
// "database.schema.table"; an unknown table wraps apperrors.ErrNotFound.
func Describe(rows []models.CatalogRow, target string) ([]models.CatalogRow, error) {
	key, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	var cols []models.CatalogRow
	for i := range rows {
		if rows[i].Key() == key {
			cols = append(cols, rows[i])
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s", apperrors.ErrNotFound, target)
	}
	sortByOrdinal(cols)
	return cols, nil
}

// JoinPaths lists the foreign keys of a table.
type JoinPaths struct {
	Table    string              `json:"table"`
	Outbound []models.CatalogRow `json:"outbound"`
	Inbound  []models.CatalogRow `json:"inbound"`
}

// Joins returns the outbound foreign keys of target and the inbound foreign
// keys of other tables whose reference names it.
func Joins(rows []models.CatalogRow, target string) (*JoinPaths, error) {
	key, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	paths := &JoinPaths{
		Table:    target,
		Outbound: []models.CatalogRow{},
		Inbound:  []models.CatalogRow{},
	}
	needle := strings.ToLower(key.Table) + "."
	for i := range rows {
		r := &rows[i]
		if !r.IsForeignKey {
			continue
		}
		if r.Key() == key {
			paths.Outbound = append(paths.Outbound, *r)
			continue
		}
		if r.FKReferences != "" && strings.Contains(strings.ToLower(r.FKReferences), needle) {
			paths.Inbound = append(paths.Inbound, *r)
		}
	}
	return paths, nil
}

func parseTarget(target string) (models.TableKey, error) {
	key, ok := models.ParseTableKey(target)
	if !ok {
		return models.TableKey{}, fmt.Errorf("%w: table must be database.schema.table, got %q", apperrors.ErrValidation, target)
	}
	return key, nil
}

func sortByOrdinal(rows []models.CatalogRow) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].OrdinalPosition < rows[j].OrdinalPosition })
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// DiscoverProgrammableObjects returns user functions, procedures, views and
// triggers with their definitions. Objects owned by extensions are skipped.
func (a *Adapter) DiscoverProgrammableObjects(ctx context.Context, database string) ([]models.ProgrammableObject, error) {
	const query = `
		SELECT n.nspname, p.proname,
			CASE
				WHEN p.prokind = 'p' THEN 'PROCEDURE'
				WHEN p.proretset THEN 'TABLE_FUNCTION'
				ELSE 'SCALAR_FUNCTION'
			END AS object_type,
			pg_get_functiondef(p.oid) AS definition
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE p.prokind IN ('f', 'p')
		  AND p.prorettype <> 'trigger'::regtype
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		  AND NOT EXISTS (
			SELECT 1 FROM pg_depend d
			WHERE d.classid = 'pg_proc'::regclass AND d.objid = p.oid AND d.deptype = 'e'
		  )
		UNION ALL
		SELECT n.nspname, c.relname, 'VIEW', pg_get_viewdef(c.oid, true)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('v', 'm')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		UNION ALL
		SELECT n.nspname, t.tgname, 'TRIGGER',
			pg_get_triggerdef(t.oid, true) || E';\n' || pg_get_functiondef(t.tgfoid)
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE NOT t.tgisinternal
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY 1, 2
	`

	p, err := a.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query programmable objects: %w", err)
	}
	defer rows.Close()

	var objects []models.ProgrammableObject
	for rows.Next() {
		obj := models.ProgrammableObject{Database: database}
		var def *string
		if err := rows.Scan(&obj.Schema, &obj.Name, &obj.Type, &def); err != nil {
			return nil, fmt.Errorf("scan programmable object: %w", err)
		}
		if def != nil {
			obj.Definition = *def
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programmable objects: %w", err)
	}
	return objects, nil
}

// ExecutionStats reads pg_stat_user_functions. The view is only populated
// with track_functions enabled and has no last-execution time; self time
// stands in for CPU time.
func (a *Adapter) ExecutionStats(ctx context.Context, database string) ([]models.ExecutionStat, error) {
	const query = `
		SELECT funcname, calls,
			CASE WHEN calls > 0 THEN total_time / calls ELSE 0 END AS avg_duration_ms,
			self_time
		FROM pg_stat_user_functions
		WHERE calls > 0
		ORDER BY calls DESC
	`

	p, err := a.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, query)
	if err != nil {
		a.logger.Warn("Function statistics unavailable",
			zap.String("database", database),
			zap.String("error", logging.SanitizeError(err)))
		return []models.ExecutionStat{}, nil
	}

	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ExecutionStat, error) {
		stat := models.ExecutionStat{Database: database}
		err := row.Scan(&stat.ObjectName, &stat.ExecutionCount, &stat.AvgDurationMs, &stat.TotalCPUMs)
		return stat, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan execution stats: %w", err)
	}
	return stats, nil
}

// ObjectDependencies resolves the table columns each view reads through the
// rewrite rules in pg_depend. Function bodies are not tracked by the server.
func (a *Adapter) ObjectDependencies(ctx context.Context, database string) ([]models.ObjectDependency, error) {
	const query = `
		SELECT DISTINCT v.relname, t.relname, COALESCE(att.attname, '')
		FROM pg_depend d
		JOIN pg_rewrite r ON r.oid = d.objid
		JOIN pg_class v ON v.oid = r.ev_class
		JOIN pg_namespace vn ON vn.oid = v.relnamespace
		JOIN pg_class t ON t.oid = d.refobjid
		LEFT JOIN pg_attribute att ON att.attrelid = t.oid AND att.attnum = d.refobjsubid AND d.refobjsubid > 0
		WHERE d.classid = 'pg_rewrite'::regclass
		  AND d.refclassid = 'pg_class'::regclass
		  AND v.oid <> t.oid
		  AND t.relkind IN ('r', 'p')
		  AND vn.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY 2, 1, 3
	`

	p, err := a.pool(ctx, database)
	if err != nil {
		return nil, err
	}
	rows, err := p.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}

	deps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ObjectDependency, error) {
		dep := models.ObjectDependency{Database: database}
		err := row.Scan(&dep.ReferencingObject, &dep.ReferencedTable, &dep.ReferencedColumn)
		return dep, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan dependencies: %w", err)
	}
	return deps, nil
}

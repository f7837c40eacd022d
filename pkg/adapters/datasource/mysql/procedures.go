package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// DiscoverProgrammableObjects returns routines, views and triggers of a
// schema. Definitions are only visible to the definer or a user with
// SHOW_ROUTINE; hidden bodies come back empty.
func (a *Adapter) DiscoverProgrammableObjects(ctx context.Context, database string) ([]models.ProgrammableObject, error) {
	const query = `
		SELECT ROUTINE_NAME,
			CASE ROUTINE_TYPE WHEN 'PROCEDURE' THEN 'PROCEDURE' ELSE 'SCALAR_FUNCTION' END,
			ROUTINE_DEFINITION
		FROM information_schema.ROUTINES
		WHERE ROUTINE_SCHEMA = ?
		UNION ALL
		SELECT TABLE_NAME, 'VIEW', VIEW_DEFINITION
		FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = ?
		UNION ALL
		SELECT TRIGGER_NAME, 'TRIGGER', ACTION_STATEMENT
		FROM information_schema.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY 1
	`

	rows, err := a.db.QueryContext(ctx, query, database, database, database)
	if err != nil {
		return nil, fmt.Errorf("query programmable objects: %w", err)
	}
	defer rows.Close()

	var objects []models.ProgrammableObject
	for rows.Next() {
		obj := models.ProgrammableObject{Database: database, Schema: database}
		var def sql.NullString
		if err := rows.Scan(&obj.Name, &obj.Type, &def); err != nil {
			return nil, fmt.Errorf("scan programmable object: %w", err)
		}
		obj.Definition = def.String
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programmable objects: %w", err)
	}
	return objects, nil
}

// ExecutionStats reads performance_schema program summaries. Timer columns
// are picoseconds. The server keeps no last-execution time.
func (a *Adapter) ExecutionStats(ctx context.Context, database string) ([]models.ExecutionStat, error) {
	const query = `
		SELECT OBJECT_NAME, COUNT_STAR, AVG_TIMER_WAIT / 1000000000, SUM_TIMER_WAIT / 1000000000
		FROM performance_schema.events_statements_summary_by_program
		WHERE OBJECT_SCHEMA = ? AND COUNT_STAR > 0
		ORDER BY COUNT_STAR DESC
	`

	rows, err := a.db.QueryContext(ctx, query, database)
	if err != nil {
		a.logger.Warn("Program statistics unavailable",
			zap.String("database", database),
			zap.String("error", logging.SanitizeError(err)))
		return []models.ExecutionStat{}, nil
	}
	defer rows.Close()

	stats := []models.ExecutionStat{}
	for rows.Next() {
		stat := models.ExecutionStat{Database: database}
		var avg, total sql.NullFloat64
		if err := rows.Scan(&stat.ObjectName, &stat.ExecutionCount, &avg, &total); err != nil {
			return nil, fmt.Errorf("scan execution stat: %w", err)
		}
		stat.AvgDurationMs = avg.Float64
		stat.TotalCPUMs = total.Float64
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// ObjectDependencies returns the tables each view reads. MySQL tracks view
// dependencies at table level only, from 8.0.13.
func (a *Adapter) ObjectDependencies(ctx context.Context, database string) ([]models.ObjectDependency, error) {
	const query = `
		SELECT VIEW_NAME, TABLE_NAME
		FROM information_schema.VIEW_TABLE_USAGE
		WHERE VIEW_SCHEMA = ?
		ORDER BY TABLE_NAME, VIEW_NAME
	`

	rows, err := a.db.QueryContext(ctx, query, database)
	if err != nil {
		a.logger.Warn("View dependencies unavailable",
			zap.String("database", database),
			zap.String("error", logging.SanitizeError(err)))
		return []models.ObjectDependency{}, nil
	}
	defer rows.Close()

	deps := []models.ObjectDependency{}
	for rows.Next() {
		dep := models.ObjectDependency{Database: database}
		if err := rows.Scan(&dep.ReferencingObject, &dep.ReferencedTable); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

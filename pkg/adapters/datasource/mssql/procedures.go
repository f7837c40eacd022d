package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/logging"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

// DiscoverProgrammableObjects returns procedures, views, functions and
// triggers with their module definitions. Encrypted modules have no
// definition.
func (a *Adapter) DiscoverProgrammableObjects(ctx context.Context, database string) ([]models.ProgrammableObject, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    s.name AS object_schema,
	    o.name AS object_name,
	    CASE o.type
	        WHEN 'P' THEN 'PROCEDURE'
	        WHEN 'V' THEN 'VIEW'
	        WHEN 'FN' THEN 'SCALAR_FUNCTION'
	        WHEN 'IF' THEN 'INLINE_FUNCTION'
	        WHEN 'TF' THEN 'TABLE_FUNCTION'
	        WHEN 'TR' THEN 'TRIGGER'
	    END AS object_type,
	    m.definition
	FROM sys.objects o
	INNER JOIN sys.schemas s ON o.schema_id = s.schema_id
	LEFT JOIN sys.sql_modules m ON o.object_id = m.object_id
	WHERE o.type IN ('P', 'V', 'FN', 'IF', 'TF', 'TR')
	  AND o.is_ms_shipped = 0
	  AND s.name NOT IN ('sys', 'INFORMATION_SCHEMA')
	ORDER BY o.type, s.name, o.name
	`

	var objects []models.ProgrammableObject
	err := a.withDatabase(ctx, database, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("query programmable objects: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			obj := models.ProgrammableObject{Database: database}
			var definition sql.NullString
			if err := rows.Scan(&obj.Schema, &obj.Name, &obj.Type, &definition); err != nil {
				return fmt.Errorf("scan programmable object row: %w", err)
			}
			obj.Definition = definition.String
			objects = append(objects, obj)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate programmable object rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// ExecutionStats returns the cached plan statistics of procedures and, when
// Query Store is enabled, its runtime statistics. An object can appear in
// both sources; the analysis merges them.
func (a *Adapter) ExecutionStats(ctx context.Context, database string) ([]models.ExecutionStat, error) {
	procStats := `
	SET NOCOUNT ON;
	SELECT
	    OBJECT_NAME(ps.object_id) AS object_name,
	    CAST(ps.execution_count AS BIGINT),
	    ps.last_execution_time,
	    CAST(CASE WHEN ps.execution_count > 0
	         THEN ps.total_elapsed_time / ps.execution_count / 1000.0
	         ELSE 0 END AS FLOAT) AS avg_duration_ms,
	    CAST(ps.total_worker_time / 1000.0 AS FLOAT) AS total_cpu_ms
	FROM sys.dm_exec_procedure_stats ps
	WHERE ps.database_id = DB_ID()
	  AND OBJECT_SCHEMA_NAME(ps.object_id) IS NOT NULL
	`

	queryStoreOn := `SELECT CAST(is_query_store_on AS INT) FROM sys.databases WHERE name = DB_NAME()`

	queryStoreStats := `
	SET NOCOUNT ON;
	SELECT
	    OBJECT_NAME(q.object_id) AS object_name,
	    CAST(SUM(rs.count_executions) AS BIGINT),
	    CAST(MAX(rs.last_execution_time) AS DATETIME2),
	    CAST(AVG(rs.avg_duration) / 1000.0 AS FLOAT) AS avg_duration_ms,
	    CAST(SUM(rs.avg_cpu_time * rs.count_executions) / 1000.0 AS FLOAT) AS total_cpu_ms
	FROM sys.query_store_query q
	INNER JOIN sys.query_store_plan p ON q.query_id = p.query_id
	INNER JOIN sys.query_store_runtime_stats rs ON p.plan_id = rs.plan_id
	WHERE q.object_id IS NOT NULL
	  AND q.object_id > 0
	GROUP BY q.object_id
	HAVING OBJECT_SCHEMA_NAME(q.object_id) IS NOT NULL
	`

	var stats []models.ExecutionStat
	err := a.withDatabase(ctx, database, func(conn *sql.Conn) error {
		cached, err := scanExecutionStats(ctx, conn, database, procStats)
		if err != nil {
			return fmt.Errorf("query procedure stats: %w", err)
		}
		stats = append(stats, cached...)

		var enabled sql.NullInt64
		if err := conn.QueryRowContext(ctx, queryStoreOn).Scan(&enabled); err != nil || enabled.Int64 != 1 {
			return nil
		}
		stored, err := scanExecutionStats(ctx, conn, database, queryStoreStats)
		if err != nil {
			a.logger.Warn("Query Store stats unavailable",
				zap.String("database", database),
				zap.String("query", logging.SanitizeQuery(queryStoreStats)),
				zap.String("error", logging.SanitizeError(err)))
			return nil
		}
		stats = append(stats, stored...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func scanExecutionStats(ctx context.Context, conn *sql.Conn, database, query string) ([]models.ExecutionStat, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.ExecutionStat
	for rows.Next() {
		stat := models.ExecutionStat{Database: database}
		var last sql.NullTime
		var avg, cpu sql.NullFloat64
		if err := rows.Scan(&stat.ObjectName, &stat.ExecutionCount, &last, &avg, &cpu); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stat.LastExecution = nullTime(last)
		stat.AvgDurationMs = avg.Float64
		stat.TotalCPUMs = cpu.Float64
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// ObjectDependencies returns the tables referenced by each programmable
// object. sys.sql_expression_dependencies does not resolve columns; servers
// where it fails fall back to sys.sql_dependencies, which does.
func (a *Adapter) ObjectDependencies(ctx context.Context, database string) ([]models.ObjectDependency, error) {
	modern := `
	SET NOCOUNT ON;
	SELECT
	    OBJECT_NAME(sed.referencing_id) AS referencing_object,
	    sed.referenced_entity_name AS referenced_table,
	    CAST(NULL AS NVARCHAR(128)) AS referenced_column
	FROM sys.sql_expression_dependencies sed
	INNER JOIN sys.objects o ON sed.referencing_id = o.object_id
	WHERE sed.referenced_entity_name IS NOT NULL
	  AND OBJECT_SCHEMA_NAME(sed.referencing_id) NOT IN ('sys', 'INFORMATION_SCHEMA')
	ORDER BY referenced_table
	`

	legacy := `
	SET NOCOUNT ON;
	SELECT
	    OBJECT_NAME(d.object_id) AS referencing_object,
	    OBJECT_NAME(d.referenced_major_id) AS referenced_table,
	    COL_NAME(d.referenced_major_id, d.referenced_minor_id) AS referenced_column
	FROM sys.sql_dependencies d
	INNER JOIN sys.objects o ON d.object_id = o.object_id
	WHERE OBJECT_NAME(d.referenced_major_id) IS NOT NULL
	  AND OBJECT_SCHEMA_NAME(d.object_id) NOT IN ('sys', 'INFORMATION_SCHEMA')
	ORDER BY OBJECT_NAME(d.referenced_major_id)
	`

	var deps []models.ObjectDependency
	err := a.withDatabase(ctx, database, func(conn *sql.Conn) error {
		var err error
		deps, err = scanDependencies(ctx, conn, database, modern)
		if err == nil {
			return nil
		}
		a.logger.Debug("Falling back to sys.sql_dependencies",
			zap.String("database", database),
			zap.String("query", logging.SanitizeQuery(modern)),
			zap.String("error", logging.SanitizeError(err)))
		deps, err = scanDependencies(ctx, conn, database, legacy)
		if err != nil {
			return fmt.Errorf("query dependencies: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deps, nil
}

func scanDependencies(ctx context.Context, conn *sql.Conn, database, query string) ([]models.ObjectDependency, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deps []models.ObjectDependency
	for rows.Next() {
		dep := models.ObjectDependency{Database: database}
		var referencing sql.NullString
		var column sql.NullString
		if err := rows.Scan(&referencing, &dep.ReferencedTable, &column); err != nil {
			return nil, fmt.Errorf("scan dependency row: %w", err)
		}
		if !referencing.Valid {
			continue
		}
		dep.ReferencingObject = referencing.String
		dep.ReferencedColumn = column.String
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

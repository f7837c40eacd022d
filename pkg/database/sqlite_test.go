package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "metadata.db"), false)
	require.NoError(t, err)
	defer db.Close()

	logger := zaptest.NewLogger(t)
	require.NoError(t, RunMigrations(db.DB, logger))
	require.NoError(t, RunMigrations(db.DB, logger))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM catalog_columns"))
	assert.Zero(t, count)
}

func TestOpenSQLite_ReadOnlyDoesNotCreate(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "missing.db"), true)
	assert.Error(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "metadata.db"), false)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, RunMigrations(db.DB, zaptest.NewLogger(t)))

	insert := `INSERT INTO catalog_columns (target, database_name, schema_name, table_name, column_name, scanned_at)
		VALUES ('prod', 'Sales', 'dbo', 'Orders', 'OrderID', '2026-03-01T12:00:00Z')`

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insert); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, insert)
		return err
	}))

	var count int
	require.NoError(t, db.GetContext(ctx, &count, "SELECT COUNT(*) FROM catalog_columns"))
	assert.Equal(t, 1, count)
}

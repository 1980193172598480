package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relcomp/dialect"
)

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
	}{
		{"Postgres", dialect.Postgres},
		{"MySQL", dialect.MySQL},
		{"SQLite", dialect.SQLite},
		{"SQLServer", dialect.SQLServer},
		{"SQLServer2008", dialect.SQLServer2008},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.Equal(t, tt.dialect, drv.Dialect())
		})
	}
}

func TestOpen(t *testing.T) {
	drv, err := Open(dialect.SQLite, "file:open?mode=memory&cache=shared")
	require.NoError(t, err)
	defer drv.Close()
	assert.Equal(t, dialect.SQLite, drv.Dialect())

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT 1", []any{}, rows))
	values, err := ScanRows(rows)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.EqualValues(t, 1, values[0][0])
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("WithArgs", func(t *testing.T) {
		mock.ExpectQuery(`SELECT "t0"."name" FROM "people" AS "t0" WHERE "t0"."id" = \$1`).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a8m"))
		rows := &Rows{}
		err := drv.Query(context.Background(), `SELECT "t0"."name" FROM "people" AS "t0" WHERE "t0"."id" = $1`, []any{1}, rows)
		require.NoError(t, err)
		values, err := ScanRows(rows)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"a8m"}}, values)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidArgs", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", "bad", &Rows{})
		assert.Error(t, err)
	})

	t.Run("InvalidDest", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", []any{}, nil)
		assert.Error(t, err)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("boom"))
		err := drv.Query(context.Background(), "SELECT 1", []any{}, &Rows{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialect/sql: query: boom")
	})
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.MySQL, db)

	mock.ExpectExec("UPDATE `people` SET `name` = \\? WHERE `id` = \\?").
		WithArgs("a8m", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	var res sql.Result
	err = drv.Exec(context.Background(), "UPDATE `people` SET `name` = ? WHERE `id` = ?", []any{"a8m", 1}, &res)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec("DELETE FROM `people`").WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, drv.Exec(context.Background(), "DELETE FROM `people`", []any{}, nil))

	assert.Error(t, drv.Exec(context.Background(), "DELETE FROM `people`", []any{}, new(int)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), `INSERT INTO "people" DEFAULT VALUES`, []any{}, nil))
	require.NoError(t, tx.Commit())

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err = drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContextCancellation(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = drv.Query(ctx, "SELECT 1", []any{}, &Rows{})
	assert.Error(t, err)
}

package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relcomp/dialect"
)

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.Postgres, db),
		WithSlowThreshold(-1),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE").WillReturnError(errors.New("locked"))

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT 1", []any{}, rows))
	require.NoError(t, rows.Close())
	var res Result
	require.NoError(t, drv.Exec(context.Background(), `DELETE FROM "people"`, []any{}, &res))
	require.Error(t, drv.Exec(context.Background(), `DELETE FROM "people"`, []any{}, nil))

	s := drv.QueryStats().Stats()
	assert.Equal(t, int64(1), s.Count(StmtSelect))
	assert.Equal(t, int64(2), s.Count(StmtDelete))
	assert.Equal(t, int64(3), s.Total())
	assert.Equal(t, int64(1), s.RowsAffected)
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(3), s.SlowQueries)
	assert.Len(t, slow, 3)
	assert.Contains(t, s.String(), "select=1 insert=0 update=0 delete=2 other=0 rows=1")

	drv.QueryStats().Reset()
	assert.Zero(t, drv.QueryStats().Stats().AvgDuration())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := NewStatsDriver(OpenDB(dialect.Postgres, db))
	drv.SetSlowThreshold(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), `UPDATE "people" SET "age" = $1`, []any{1}, nil))
	require.NoError(t, tx.Commit())

	s := drv.QueryStats().Stats()
	assert.Equal(t, int64(1), s.Count(StmtUpdate))
	assert.Zero(t, s.RowsAffected, "rows are only counted for *Result targets")
	assert.Zero(t, s.SlowQueries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := NewDebugDriver(OpenDB(dialect.Postgres, db), DebugWithLogger(logger))

	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectRollback()
	require.NoError(t, drv.Exec(context.Background(), `DELETE FROM "people"`, []any{}, nil))
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	out := buf.String()
	assert.Contains(t, out, `msg=exec kind=delete sql="DELETE FROM \"people\""`)
	assert.Contains(t, out, "begin transaction")
	assert.Contains(t, out, "rollback transaction")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		query string
		want  StmtKind
	}{
		{`SELECT "t0"."id" FROM "people" AS "t0"`, StmtSelect},
		{"  insert into people DEFAULT VALUES", StmtInsert},
		{`UPDATE "people" SET "age" = $1`, StmtUpdate},
		{"DELETE FROM [people] WHERE [id] = @p1", StmtDelete},
		{"CREATE TABLE people (id INTEGER)", StmtOther},
		{"", StmtOther},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.query))
		})
	}
	assert.Equal(t, "other", StmtKind(42).String())
}

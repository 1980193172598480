package sqlgraph_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relcomp"
	"github.com/syssam/relcomp/compiler/persist"
	"github.com/syssam/relcomp/compiler/provider"
	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/dialect/sql/sqlgraph"
	"github.com/syssam/relcomp/rel"
	"github.com/syssam/relcomp/schema"
	"github.com/syssam/relcomp/schema/field"
)

const (
	fieldID = iota
	fieldName
	fieldAge
	fieldSalary
	fieldNotes
)

var (
	people = &schema.Table{
		Name: "people",
		Columns: []schema.Column{
			{Name: "id", Type: field.TypeInt64, Field: fieldID},
			{Name: "name", Type: field.TypeString, Size: 100, Field: fieldName},
			{Name: "age", Type: field.TypeInt, Field: fieldAge},
		},
		Key: []int{0},
	}
	employees = &schema.Table{
		Name: "employees",
		Columns: []schema.Column{
			{Name: "id", Type: field.TypeInt64, Field: fieldID},
			{Name: "salary", Type: field.TypeFloat64, Field: fieldSalary},
			{Name: "notes", Type: field.TypeString, Field: fieldNotes},
		},
		Key: []int{0},
	}
	employee = schema.NewType("Employee",
		schema.WithInheritance(schema.InheritClassTable),
		schema.WithFields(
			schema.Field{Name: "id", Type: field.TypeInt64, Offset: fieldID},
			schema.Field{Name: "name", Type: field.TypeString, Offset: fieldName},
			schema.Field{Name: "age", Type: field.TypeInt, Offset: fieldAge},
			schema.Field{Name: "salary", Type: field.TypeFloat64, Offset: fieldSalary},
			schema.Field{Name: "notes", Type: field.TypeString, Offset: fieldNotes},
		),
		schema.WithTables(people, employees),
	)
)

func mockDriver(t *testing.T, name string) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(name, db), mock
}

func TestQueryRows(t *testing.T) {
	minAge := rel.NewParameter("min_age", field.TypeInt)
	limit := rel.NewParameter("limit", field.TypeInt)
	plan := rel.NewTake(
		rel.NewSort(
			rel.NewFilter(rel.NewIndex(people), rel.Gt(rel.Col(2), rel.Param(minAge, field.TypeInt))),
			rel.OrderItem{Index: 1},
		),
		limit,
	)
	q, err := provider.New(dialect.PostgresCapabilities()).Compile(plan)
	require.NoError(t, err)

	drv, mock := mockDriver(t, dialect.Postgres)
	mock.ExpectQuery(`SELECT "t0"."id", "t0"."name", "t0"."age" FROM "people" AS "t0" WHERE "t0"."age" > $1 ORDER BY "t0"."name" ASC LIMIT $2`).
		WithArgs(18, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow(int64(1), "ann", int64(30)).
			AddRow(int64(2), "bob", int64(41)))
	ctx := rel.WithParams(context.Background(), rel.Params{minAge: 18, limit: 2})
	rows, err := sqlgraph.QueryRows(ctx, drv, q)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "ann", int64(30)}, {int64(2), "bob", int64(41)}}, rows)
	require.NoError(t, mock.ExpectationsWereMet())

	t.Run("HeaderMismatch", func(t *testing.T) {
		mock.ExpectQuery(q.SQL()).
			WithArgs(18, 2).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		_, err := sqlgraph.QueryRows(ctx, drv, q)
		assert.True(t, relcomp.IsInvariantViolation(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQueryRowsPrerequisites(t *testing.T) {
	plan := rel.NewStore("tmp_adults", rel.NewFilter(rel.NewIndex(people), rel.Gt(rel.Col(2), rel.Const(17))))
	q, err := provider.New(dialect.PostgresCapabilities()).Compile(plan)
	require.NoError(t, err)

	drv, mock := mockDriver(t, dialect.Postgres)
	mock.ExpectExec(`INSERT INTO "tmp_adults" ("id", "name", "age") SELECT "t1"."id", "t1"."name", "t1"."age" FROM "people" AS "t1" WHERE "t1"."age" > 17`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(`SELECT "t0"."id", "t0"."name", "t0"."age" FROM "tmp_adults" AS "t0"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}))
	rows, err := sqlgraph.QueryRows(context.Background(), drv, q)
	require.NoError(t, err)
	assert.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecPersist(t *testing.T) {
	ctx := context.Background()
	tuple := persist.Tuple{int64(1), "ann", 30, 1000.5, "likes go"}

	t.Run("Batch", func(t *testing.T) {
		cs, err := persist.New(dialect.PostgresCapabilities()).Compile(persist.Task{Type: employee, Kind: persist.OpInsert})
		require.NoError(t, err)
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectExec(`INSERT INTO "people" ("id", "name", "age") VALUES ($1, $2, $3); INSERT INTO "employees" ("id", "salary", "notes") VALUES ($4, $5, $6)`).
			WithArgs(1, "ann", 30, 1, 1000.5, "likes go").
			WillReturnResult(sqlmock.NewResult(0, 2))
		require.NoError(t, sqlgraph.ExecPersist(ctx, drv, cs, tuple))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Statements", func(t *testing.T) {
		cs, err := persist.New(dialect.MySQLCapabilities()).Compile(persist.Task{Type: employee, Kind: persist.OpRemove})
		require.NoError(t, err)
		drv, mock := mockDriver(t, dialect.MySQL)
		mock.ExpectExec("DELETE FROM `employees` WHERE `id` = ?").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("DELETE FROM `people` WHERE `id` = ?").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, sqlgraph.ExecPersist(ctx, drv, cs, tuple))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Concurrency", func(t *testing.T) {
		task := persist.Task{Type: employee, Kind: persist.OpUpdate, Changed: persist.NewFieldSet(fieldSalary)}
		cs, err := persist.New(dialect.MySQLCapabilities()).Compile(task)
		require.NoError(t, err)
		drv, mock := mockDriver(t, dialect.MySQL)
		mock.ExpectExec("UPDATE `employees` SET `salary` = ? WHERE `id` = ?").
			WithArgs(1000.5, 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		err = sqlgraph.ExecPersist(ctx, drv, cs, tuple)
		require.Error(t, err)
		assert.ErrorIs(t, err, relcomp.ErrConcurrencyViolation)
		var e *relcomp.ConcurrencyError
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "employees", e.Table)
		assert.Equal(t, int64(1), e.Expected)
		assert.Equal(t, int64(0), e.Actual)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Constraint", func(t *testing.T) {
		cs, err := persist.New(dialect.PostgresCapabilities()).Compile(persist.Task{Type: employee, Kind: persist.OpInsert})
		require.NoError(t, err)
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectExec(`INSERT INTO "people" ("id", "name", "age") VALUES ($1, $2, $3); INSERT INTO "employees" ("id", "salary", "notes") VALUES ($4, $5, $6)`).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
		err = sqlgraph.ExecPersist(ctx, drv, cs, tuple)
		require.Error(t, err)
		assert.True(t, relcomp.IsConstraintError(err))
		assert.True(t, sqlgraph.IsUniqueConstraintError(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingValue", func(t *testing.T) {
		cs, err := persist.New(dialect.SQLiteCapabilities()).Compile(persist.Task{Type: employee, Kind: persist.OpInsert})
		require.NoError(t, err)
		drv, _ := mockDriver(t, dialect.SQLite)
		err = sqlgraph.ExecPersist(ctx, drv, cs, persist.Tuple{int64(1)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of range")
	})
}

func TestNextKey(t *testing.T) {
	ctx := context.Background()

	t.Run("Sequence", func(t *testing.T) {
		g, err := persist.New(dialect.PostgresCapabilities()).KeyGenerator("people_id_seq")
		require.NoError(t, err)
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectQuery(`SELECT nextval('people_id_seq')`).
			WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(42)))
		id, err := sqlgraph.NextKey(ctx, drv, g)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Table", func(t *testing.T) {
		g, err := persist.New(dialect.MySQLCapabilities()).KeyGenerator("people_keys")
		require.NoError(t, err)
		drv, mock := mockDriver(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `people_keys` () VALUES ()").WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectQuery("SELECT LAST_INSERT_ID()").
			WillReturnRows(sqlmock.NewRows([]string{"LAST_INSERT_ID()"}).AddRow([]byte("7")))
		mock.ExpectCommit()
		id, err := sqlgraph.NextKey(ctx, drv, g)
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback", func(t *testing.T) {
		g, err := persist.New(dialect.SQLiteCapabilities()).KeyGenerator("people_keys")
		require.NoError(t, err)
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "people_keys" DEFAULT VALUES`).WillReturnError(assert.AnError)
		mock.ExpectRollback()
		_, err = sqlgraph.NextKey(ctx, drv, g)
		assert.ErrorIs(t, err, assert.AnError)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

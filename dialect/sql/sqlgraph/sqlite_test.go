package sqlgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relcomp"
	"github.com/syssam/relcomp/compiler/persist"
	"github.com/syssam/relcomp/compiler/provider"
	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/dialect/sql/sqlgraph"
	"github.com/syssam/relcomp/rel"
)

var sqliteSchema = []string{
	"CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE, age INTEGER NOT NULL)",
	"CREATE TABLE employees (id INTEGER PRIMARY KEY REFERENCES people(id), salary REAL NOT NULL, notes TEXT)",
	"CREATE TABLE seq_people (id INTEGER PRIMARY KEY AUTOINCREMENT)",
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	drv, err := sql.Open(dialect.SQLite, "file:sqlgraph?mode=memory&cache=shared")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	for _, ddl := range sqliteSchema {
		require.NoError(t, drv.Exec(ctx, ddl, []any{}, nil))
	}

	caps := dialect.SQLiteCapabilities()
	b := persist.New(caps)
	gen, err := b.KeyGenerator("seq_people")
	require.NoError(t, err)
	insert, err := b.Compile(persist.Task{Type: employee, Kind: persist.OpInsert})
	require.NoError(t, err)

	var ids []int64
	for range 2 {
		id, err := sqlgraph.NextKey(ctx, drv, gen)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.Equal(t, []int64{1, 2}, ids)
	require.NoError(t, sqlgraph.ExecPersist(ctx, drv, insert, persist.Tuple{ids[0], "ann", 30, 1000.5, "likes go"}))
	require.NoError(t, sqlgraph.ExecPersist(ctx, drv, insert, persist.Tuple{ids[1], "bob", 41, 400.0, "new"}))

	t.Run("Query", func(t *testing.T) {
		plan := rel.NewTake(
			rel.NewSort(
				rel.NewFilter(
					rel.NewJoin(rel.NewIndex(people), rel.NewIndex(employees), rel.InnerJoin, rel.JoinPair{Left: 0, Right: 0}),
					rel.Gt(rel.Col(4), rel.Const(500.0)),
				),
				rel.OrderItem{Index: 1},
			),
			sql.Value(10),
		)
		q, err := provider.New(caps).Compile(plan)
		require.NoError(t, err)
		rows, err := sqlgraph.QueryRows(ctx, drv, q)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(1), "ann", int64(30), int64(1), 1000.5, "likes go"}}, rows)
	})

	t.Run("Update", func(t *testing.T) {
		update, err := b.Compile(persist.Task{Type: employee, Kind: persist.OpUpdate, Changed: persist.NewFieldSet(fieldSalary)})
		require.NoError(t, err)
		require.NoError(t, sqlgraph.ExecPersist(ctx, drv, update, persist.Tuple{ids[1], "bob", 41, 600.0, "new"}))

		err = sqlgraph.ExecPersist(ctx, drv, update, persist.Tuple{int64(99), "eve", 20, 1.0, ""})
		require.Error(t, err)
		assert.True(t, relcomp.IsConcurrencyViolation(err))
	})

	t.Run("Constraint", func(t *testing.T) {
		err := sqlgraph.ExecPersist(ctx, drv, insert, persist.Tuple{int64(3), "ann", 50, 10.0, ""})
		require.Error(t, err)
		assert.True(t, relcomp.IsConstraintError(err))
		assert.True(t, sqlgraph.IsUniqueConstraintError(err))
	})

	t.Run("Remove", func(t *testing.T) {
		remove, err := b.Compile(persist.Task{Type: employee, Kind: persist.OpRemove})
		require.NoError(t, err)
		require.NoError(t, sqlgraph.ExecPersist(ctx, drv, remove, persist.Tuple{ids[1]}))

		count := rel.NewAggregate(rel.NewIndex(people), nil, rel.AggregateColumn{Func: rel.Count, Arg: -1, Name: "n"})
		q, err := provider.New(caps).Compile(count)
		require.NoError(t, err)
		rows, err := sqlgraph.QueryRows(ctx, drv, q)
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(1)}}, rows)
	})
}

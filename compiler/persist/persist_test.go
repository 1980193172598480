package persist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/relcomp/compiler/persist"
	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
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

func employee() *schema.Type {
	return schema.NewType("Employee",
		schema.WithInheritance(schema.InheritClassTable),
		schema.WithFields(
			schema.Field{Name: "id", Type: field.TypeInt64, Offset: fieldID},
			schema.Field{Name: "name", Type: field.TypeString, Offset: fieldName},
			schema.Field{Name: "age", Type: field.TypeInt, Offset: fieldAge},
			schema.Field{Name: "salary", Type: field.TypeFloat64, Offset: fieldSalary},
			schema.Field{Name: "notes", Type: field.TypeString, Offset: fieldNotes},
		),
		schema.WithTables(
			&schema.Table{
				Name: "people",
				Columns: []schema.Column{
					{Name: "id", Type: field.TypeInt64, Field: fieldID},
					{Name: "name", Type: field.TypeString, Size: 100, Field: fieldName},
					{Name: "age", Type: field.TypeInt, Field: fieldAge},
				},
				Key: []int{0},
			},
			&schema.Table{
				Name: "employees",
				Columns: []schema.Column{
					{Name: "id", Type: field.TypeInt64, Field: fieldID},
					{Name: "salary", Type: field.TypeFloat64, Field: fieldSalary},
					{Name: "notes", Type: field.TypeString, Field: fieldNotes},
				},
				Key: []int{0},
			},
		),
	)
}

func tuple() persist.Tuple {
	return persist.Tuple{int64(1), "ann", 30, 1000.5, "likes go"}
}

func build(t *testing.T, caps dialect.Capabilities, task persist.Task) *persist.CompiledStatement {
	t.Helper()
	cs, err := persist.New(caps).Build(task)
	require.NoError(t, err)
	return cs
}

func TestBuildInsert(t *testing.T) {
	cs := build(t, dialect.PostgresCapabilities(), persist.Task{Type: employee(), Kind: persist.OpInsert})
	assert.Equal(t, `INSERT INTO "people" ("id", "name", "age") VALUES ($1, $2, $3)`+"\n"+
		`INSERT INTO "employees" ("id", "salary", "notes") VALUES ($1, $2, $3)`, cs.Template())
	require.Len(t, cs.Statements, 2)
	assert.Equal(t, "people", cs.Statements[0].Table.Name, "inserts run from the root")
	for _, s := range cs.Statements {
		assert.Equal(t, int64(1), s.ExpectedRows)
		assert.Len(t, s.Bindings, 3)
	}

	ctx := persist.WithTuple(context.Background(), tuple())
	_, args, err := cs.Render(ctx, cs.Statements[0])
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "ann", 30}, args)
	_, args, err = cs.Render(ctx, cs.Statements[1])
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), 1000.5, "likes go"}, args)

	_, _, err = cs.Render(context.Background(), cs.Statements[0])
	assert.ErrorIs(t, err, persist.ErrNoTuple)
	_, _, err = cs.Render(persist.WithTuple(context.Background(), persist.Tuple{int64(1)}), cs.Statements[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field offset 1 out of range")
}

func TestBuildLargeObjects(t *testing.T) {
	cs := build(t, dialect.SQLServerCapabilities(), persist.Task{Type: employee(), Kind: persist.OpInsert})
	kinds := func(s *persist.Statement) []sql.BindingKind {
		var ks []sql.BindingKind
		for _, b := range s.Bindings {
			ks = append(ks, b.Kind)
		}
		return ks
	}
	assert.Equal(t, []sql.BindingKind{sql.KindRegular, sql.KindRegular, sql.KindRegular}, kinds(cs.Statements[0]))
	assert.Equal(t, []sql.BindingKind{sql.KindRegular, sql.KindRegular, sql.KindLargeObject}, kinds(cs.Statements[1]))

	pg := build(t, dialect.PostgresCapabilities(), persist.Task{Type: employee(), Kind: persist.OpInsert})
	assert.Equal(t, sql.KindRegular, pg.Statements[1].Bindings[2].Kind)
}

func TestBuildUpdate(t *testing.T) {
	tests := []struct {
		name    string
		changed persist.FieldSet
		want    []string
	}{
		{
			name:    "LeafOnly",
			changed: persist.NewFieldSet(fieldSalary),
			want:    []string{`UPDATE "employees" SET "salary" = $1 WHERE "id" = $2`},
		},
		{
			name:    "BothTables",
			changed: persist.NewFieldSet(fieldNotes, fieldName),
			want: []string{
				`UPDATE "people" SET "name" = $1 WHERE "id" = $2`,
				`UPDATE "employees" SET "notes" = $1 WHERE "id" = $2`,
			},
		},
		{
			name:    "RootColumns",
			changed: persist.NewFieldSet(fieldAge, fieldName),
			want:    []string{`UPDATE "people" SET "name" = $1, "age" = $2 WHERE "id" = $3`},
		},
		{
			name:    "KeyOnly",
			changed: persist.NewFieldSet(fieldID),
		},
		{
			name: "Nothing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := build(t, dialect.PostgresCapabilities(), persist.Task{Type: employee(), Kind: persist.OpUpdate, Changed: tt.changed})
			var got []string
			for _, s := range cs.Statements {
				got = append(got, sql.Template(cs.Capabilities(), s.Stmt))
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Render", func(t *testing.T) {
		cs := build(t, dialect.MySQLCapabilities(), persist.Task{Type: employee(), Kind: persist.OpUpdate, Changed: persist.NewFieldSet(fieldSalary)})
		query, args, err := cs.Render(persist.WithTuple(context.Background(), tuple()), cs.Statements[0])
		require.NoError(t, err)
		assert.Equal(t, "UPDATE `employees` SET `salary` = ? WHERE `id` = ?", query)
		assert.Equal(t, []any{1000.5, int64(1)}, args)
	})
}

func TestBuildRemove(t *testing.T) {
	cs := build(t, dialect.SQLServerCapabilities(), persist.Task{Type: employee(), Kind: persist.OpRemove})
	assert.Equal(t, "DELETE FROM [employees] WHERE [id] = @p1\nDELETE FROM [people] WHERE [id] = @p1", cs.Template())
	assert.Equal(t, "employees", cs.Statements[0].Table.Name, "removes run from the leaf")
}

func TestBuildDiscriminator(t *testing.T) {
	dog := schema.NewType("Dog",
		schema.WithInheritance(schema.InheritSingleTable),
		schema.WithDiscriminator("kind", "dog"),
		schema.WithFields(
			schema.Field{Name: "id", Type: field.TypeInt64, Offset: 0},
			schema.Field{Name: "name", Type: field.TypeString, Offset: 1},
		),
		schema.WithTables(&schema.Table{
			Name: "animals",
			Columns: []schema.Column{
				{Name: "id", Type: field.TypeInt64, Field: 0},
				{Name: "name", Type: field.TypeString, Field: 1},
				{Name: "kind", Type: field.TypeString, Field: -1},
				{Name: "legs", Type: field.TypeInt, Field: -1},
			},
			Key: []int{0},
		}),
	)
	cs := build(t, dialect.SQLiteCapabilities(), persist.Task{Type: dog, Kind: persist.OpInsert})
	assert.Equal(t, `INSERT INTO "animals" ("id", "name", "kind") VALUES (?, ?, 'dog')`, cs.Template())
	assert.Len(t, cs.Statements[0].Bindings, 2)

	cs = build(t, dialect.SQLiteCapabilities(), persist.Task{Type: dog, Kind: persist.OpUpdate, Changed: persist.NewFieldSet(1)})
	assert.Equal(t, `UPDATE "animals" SET "name" = ? WHERE "id" = ?`, cs.Template())
}

func TestBuildErrors(t *testing.T) {
	keyless := schema.NewType("Log",
		schema.WithFields(schema.Field{Name: "line", Type: field.TypeString}),
		schema.WithTables(&schema.Table{Name: "logs", Columns: []schema.Column{{Name: "line", Type: field.TypeString}}}),
	)
	tests := []struct {
		name string
		task persist.Task
		err  string
	}{
		{"NoType", persist.Task{Kind: persist.OpInsert}, "without a type"},
		{"InvalidKind", persist.Task{Type: employee()}, "invalid persist operation 0"},
		{"NoTables", persist.Task{Type: schema.NewType("Ghost"), Kind: persist.OpInsert}, "not mapped to any table"},
		{"NoKey", persist.Task{Type: keyless, Kind: persist.OpRemove}, "table logs has no primary key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := persist.New(dialect.PostgresCapabilities()).Build(tt.task)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestFieldSet(t *testing.T) {
	s := persist.NewFieldSet(70, 1, 1)
	s.Set(-3)
	assert.True(t, s.Has(1))
	assert.True(t, s.Has(70))
	assert.False(t, s.Has(2))
	assert.False(t, s.Has(-1))
	assert.False(t, s.Has(700))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{1, 70}, s.Offsets())
	assert.Equal(t, "{1, 70}", s.String())
	assert.Equal(t, "{}", persist.FieldSet{}.String())
	assert.Zero(t, persist.FieldSet{}.Len())
}

func TestTaskKey(t *testing.T) {
	typ := employee()
	update := func(offsets ...int) persist.Task {
		return persist.Task{Type: typ, Kind: persist.OpUpdate, Changed: persist.NewFieldSet(offsets...)}
	}
	assert.Equal(t, update(3, 1).Key(), update(1, 3).Key())
	assert.NotEqual(t, update(1).Key(), update(3).Key())
	assert.Equal(t, update(1, 100).Key(), update(100, 1).Key())
	assert.Equal(t,
		persist.Task{Type: typ, Kind: persist.OpInsert, Changed: persist.NewFieldSet(1)}.Key(),
		persist.Task{Type: employee(), Kind: persist.OpInsert}.Key(),
		"inserts ignore the changed fields",
	)
	assert.NotEqual(t, persist.Task{Type: typ, Kind: persist.OpInsert}.Key(), persist.Task{Type: typ, Kind: persist.OpRemove}.Key())
	assert.Contains(t, update(1, 3).Key().String(), "update:"+typ.ID.String())
}

func TestCompileShared(t *testing.T) {
	b := persist.New(dialect.PostgresCapabilities())
	typ := employee()
	var g errgroup.Group
	results := make([]*persist.CompiledStatement, 10)
	for i := range results {
		g.Go(func() (err error) {
			// Structurally equal tasks built independently.
			task := persist.Task{Type: typ, Kind: persist.OpUpdate, Changed: persist.NewFieldSet(fieldName, fieldSalary)}
			if i%2 == 1 {
				task.Changed = persist.NewFieldSet(fieldSalary, fieldName)
			}
			results[i], err = b.Compile(task)
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, cs := range results {
		assert.Same(t, results[0], cs)
	}
	assert.Equal(t, int64(1), b.CacheStats().Compiles)
	assert.Equal(t, int64(1), b.CacheStats().Size)
}

func TestBatches(t *testing.T) {
	task := persist.Task{Type: employee(), Kind: persist.OpInsert}

	cs := build(t, dialect.PostgresCapabilities(), task)
	batches := cs.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, int64(2), persist.ExpectedRows(batches[0]))
	query, args, err := cs.RenderBatch(persist.WithTuple(context.Background(), tuple()), batches[0])
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "people" ("id", "name", "age") VALUES ($1, $2, $3); `+
		`INSERT INTO "employees" ("id", "salary", "notes") VALUES ($4, $5, $6)`, query)
	assert.Equal(t, []any{int64(1), "ann", 30, int64(1), 1000.5, "likes go"}, args)

	caps := dialect.PostgresCapabilities()
	caps.MaxBatchSize = 1
	assert.Len(t, build(t, caps, task).Batches(), 2)
	assert.Len(t, build(t, dialect.MySQLCapabilities(), task).Batches(), 2)
}

func TestKeyGenerator(t *testing.T) {
	tests := []struct {
		caps dialect.Capabilities
		want string
	}{
		{dialect.PostgresCapabilities(), `SELECT nextval('seq_people')`},
		{dialect.SQLServerCapabilities(), `SELECT NEXT VALUE FOR [seq_people]`},
		{dialect.SQLServer2008Capabilities(), "INSERT INTO [seq_people] DEFAULT VALUES\nSELECT SCOPE_IDENTITY()"},
		{dialect.MySQLCapabilities(), "INSERT INTO `seq_people` () VALUES ()\nSELECT LAST_INSERT_ID()"},
		{dialect.SQLiteCapabilities(), "INSERT INTO \"seq_people\" DEFAULT VALUES\nSELECT last_insert_rowid()"},
	}
	for _, tt := range tests {
		t.Run(tt.caps.Name, func(t *testing.T) {
			g, err := persist.New(tt.caps).KeyGenerator("seq_people")
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Template())
			assert.Equal(t, "seq_people", g.Name)
		})
	}
	_, err := persist.New(dialect.PostgresCapabilities()).KeyGenerator("")
	assert.Error(t, err)
}

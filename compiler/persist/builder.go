package persist

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/syssam/relcomp"
	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/schema"
)

// Builder compiles persist tasks into statements for one backend.
type Builder struct {
	caps   dialect.Capabilities
	logger *slog.Logger
	cache  *relcomp.RequestCache[TaskKey, *CompiledStatement]
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for compile events.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithCache sets the request cache used by Compile.
func WithCache(cache *relcomp.RequestCache[TaskKey, *CompiledStatement]) Option {
	return func(b *Builder) {
		b.cache = cache
	}
}

// New returns a builder for the given capabilities.
func New(caps dialect.Capabilities, opts ...Option) *Builder {
	b := &Builder{caps: caps, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.cache == nil {
		b.cache = relcomp.NewRequestCache[TaskKey, *CompiledStatement](relcomp.WithCacheLogger(b.logger))
	}
	return b
}

// Capabilities returns the capabilities of the builder.
func (b *Builder) Capabilities() dialect.Capabilities { return b.caps }

// Compile is like Build, but structurally equal tasks share one cached
// result.
func (b *Builder) Compile(t Task) (*CompiledStatement, error) {
	return b.cache.GetOrCompile(t.Key(), func() (*CompiledStatement, error) {
		return b.Build(t)
	})
}

// CacheStats returns the counters of the request cache.
func (b *Builder) CacheStats() relcomp.CacheStats {
	return b.cache.Stats()
}

// Build compiles the task into one statement per affected table.
func (b *Builder) Build(t Task) (*CompiledStatement, error) {
	switch {
	case t.Type == nil:
		return nil, errors.New("relcomp: persist task without a type")
	case !t.Kind.Valid():
		return nil, fmt.Errorf("relcomp: invalid persist operation %d", t.Kind)
	case len(t.Type.Tables) == 0:
		return nil, fmt.Errorf("relcomp: type %s is not mapped to any table", t.Type)
	}
	cs := &CompiledStatement{Key: t.Key(), caps: b.caps}
	for _, table := range t.Type.AffectedTables(t.Kind) {
		var (
			stmt sql.Stmt
			err  error
		)
		switch t.Kind {
		case OpInsert:
			stmt = b.insert(t.Type, table)
		case OpUpdate:
			stmt, err = b.update(t, table)
		case OpRemove:
			stmt, err = b.remove(table)
		}
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			continue
		}
		cs.Statements = append(cs.Statements, &Statement{
			Table:        table,
			Stmt:         stmt,
			Bindings:     sql.Bindings(b.caps, stmt),
			ExpectedRows: 1,
		})
	}
	b.logger.Debug("relcomp: compiled persist task",
		"type", t.Type.Name,
		"kind", t.Kind,
		"changed", t.Changed,
		"statements", len(cs.Statements),
	)
	return cs, nil
}

// value returns the placeholder of a column bound to the tuple field.
func (b *Builder) value(c schema.Column) sql.Expr {
	kind := sql.KindRegular
	if b.caps.IsLOB(c.Type, c.Size) {
		kind = sql.KindLargeObject
	}
	return sql.P(sql.NewBinding(FieldSource{Offset: c.Field}, kind, c.Type))
}

func (b *Builder) insert(typ *schema.Type, table *schema.Table) sql.Stmt {
	ins := &sql.Insert{Schema: table.Schema, Table: table.Name}
	for i, c := range table.Columns {
		switch {
		case typ.Discriminates(table, i):
			ins.Values = append(ins.Values, sql.Lit(typ.Discriminator.Value))
		case c.Mapped():
			ins.Values = append(ins.Values, b.value(c))
		default:
			continue
		}
		ins.Columns = append(ins.Columns, c.Name)
	}
	return ins
}

// update returns nil if no column of the table changed.
func (b *Builder) update(t Task, table *schema.Table) (sql.Stmt, error) {
	upd := &sql.Update{Schema: table.Schema, Table: table.Name}
	for i, c := range table.Columns {
		if table.IsKey(i) || !c.Mapped() || t.Type.Discriminates(table, i) || !t.Changed.Has(c.Field) {
			continue
		}
		upd.Set = append(upd.Set, sql.Assignment{Column: c.Name, Value: b.value(c)})
	}
	if len(upd.Set) == 0 {
		return nil, nil
	}
	where, err := b.key(table)
	if err != nil {
		return nil, err
	}
	upd.Where = where
	return upd, nil
}

func (b *Builder) remove(table *schema.Table) (sql.Stmt, error) {
	where, err := b.key(table)
	if err != nil {
		return nil, err
	}
	return &sql.Delete{Schema: table.Schema, Table: table.Name, Where: where}, nil
}

// key returns the primary key predicate of the table.
func (b *Builder) key(table *schema.Table) (sql.Expr, error) {
	if len(table.Key) == 0 {
		return nil, fmt.Errorf("relcomp: table %s has no primary key", table)
	}
	var where sql.Expr
	for _, c := range table.KeyColumns() {
		if !c.Mapped() {
			return nil, fmt.Errorf("relcomp: key column %s.%s is not mapped to a field", table, c.Name)
		}
		where = sql.And(where, sql.EQ(sql.C("", c.Name), b.value(c)))
	}
	return where, nil
}

package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/relcomp"
	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/rel"
)

// CompiledQuery is the SQL form of a plan. It is immutable and may be
// rendered concurrently with different contexts.
type CompiledQuery struct {
	// Select is the final statement.
	Select *sql.Select
	// Header is the header of the compiled plan. The i-th projected
	// column of Select holds the i-th header column.
	Header rel.Header
	// Bindings lists the bindings of Select in placeholder order. Inlined
	// limits and offsets and boolean constants have no placeholder and are
	// not listed.
	Bindings []*sql.Binding
	// Order is the order required by the plan, expressed over the
	// scope of Select.
	Order []sql.Order
	// Prerequisites run before Select, e.g. to fill stored tables.
	Prerequisites []sql.Stmt

	caps dialect.Capabilities
}

// Render renders the query with the bindings evaluated from ctx.
func (q *CompiledQuery) Render(ctx context.Context) (string, []any, error) {
	return sql.Render(ctx, q.caps, q.Select)
}

// RenderStmt renders one of the prerequisites with the bindings evaluated from ctx.
func (q *CompiledQuery) RenderStmt(ctx context.Context, s sql.Stmt) (string, []any, error) {
	return sql.Render(ctx, q.caps, s)
}

// SQL returns the query text without evaluating any binding. Inlined
// limits and offsets show as sql.InlineMarker.
func (q *CompiledQuery) SQL() string {
	return sql.Template(q.caps, q.Select)
}

// Capabilities returns the capabilities the query was compiled for.
func (q *CompiledQuery) Capabilities() dialect.Capabilities { return q.caps }

// NodeKey is the request cache key of a plan. Nodes are immutable, so the
// root node identifies the plan.
type NodeKey struct {
	Node rel.Node
}

// String implements relcomp.Key.
func (k NodeKey) String() string {
	return fmt.Sprintf("%s@%p", rel.Operator(k.Node), k.Node)
}

// Compiler translates plans into SQL for one backend.
type Compiler struct {
	caps   dialect.Capabilities
	logger *slog.Logger
	post   bool
	cache  *relcomp.RequestCache[NodeKey, *CompiledQuery]
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for compile events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithoutPostCompilers disables the shape, ordering and paging correctors.
// The output is then only suitable for inspection.
func WithoutPostCompilers() Option {
	return func(c *Compiler) {
		c.post = false
	}
}

// WithCache sets the request cache used by CompileCached.
func WithCache(cache *relcomp.RequestCache[NodeKey, *CompiledQuery]) Option {
	return func(c *Compiler) {
		c.cache = cache
	}
}

// New returns a compiler for the given capabilities.
func New(caps dialect.Capabilities, opts ...Option) *Compiler {
	c := &Compiler{caps: caps, logger: slog.Default(), post: true}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = relcomp.NewRequestCache[NodeKey, *CompiledQuery](relcomp.WithCacheLogger(c.logger))
	}
	return c
}

// Capabilities returns the capabilities of the compiler.
func (c *Compiler) Capabilities() dialect.Capabilities { return c.caps }

// Compile translates the plan rooted at n. It is a pure function of the
// plan and the capabilities.
func (c *Compiler) Compile(n rel.Node) (*CompiledQuery, error) {
	q, err := (&compilation{Compiler: c}).query(n)
	if err != nil {
		c.logger.Debug("relcomp: compile failed", "operator", rel.Operator(n), "error", err)
		return nil, err
	}
	c.logger.Debug("relcomp: compiled query",
		"operator", rel.Operator(n),
		"fingerprint", fmt.Sprintf("%016x", rel.Fingerprint(n)),
		"sql", q.SQL(),
	)
	return q, nil
}

// CompileCached is like Compile, but returns the cached result when the
// same plan was compiled before.
func (c *Compiler) CompileCached(n rel.Node) (*CompiledQuery, error) {
	return c.cache.GetOrCompile(NodeKey{Node: n}, func() (*CompiledQuery, error) {
		return c.Compile(n)
	})
}

// CacheStats returns the counters of the request cache.
func (c *Compiler) CacheStats() relcomp.CacheStats {
	return c.cache.Stats()
}

// compilation holds the state of one Compile call.
type compilation struct {
	*Compiler
	tables   int
	rewrites int
}

// query compiles n into a finished query.
func (c *compilation) query(n rel.Node) (*CompiledQuery, error) {
	r, err := c.compile(n)
	if err != nil {
		return nil, err
	}
	q := c.finish(r, n.Header())
	if c.post {
		for _, correct := range []func(*CompiledQuery) error{
			c.correctShape,
			c.correctOrdering,
			c.correctPaging,
		} {
			if err := correct(q); err != nil {
				return nil, err
			}
		}
	}
	q.Bindings = sql.Bindings(c.caps, q.Select)
	return q, nil
}

// finish projects the result columns.
func (c *compilation) finish(r result, h rel.Header) *CompiledQuery {
	sel := r.sel.Clone()
	sel.Columns = columns(r.cols, r.names)
	return &CompiledQuery{
		Select:        sel,
		Header:        h,
		Order:         r.order,
		Prerequisites: r.prereqs,
		caps:          c.caps,
	}
}

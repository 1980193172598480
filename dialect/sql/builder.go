package sql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/syssam/relcomp/dialect"
)

// ErrPagingNotRewritten is returned when a paged select reaches the renderer
// of a backend without native paging.
var ErrPagingNotRewritten = errors.New("relcomp: paged select was not rewritten for row_number paging")

// InlineMarker stands for an inlined limit or offset value in template text.
const InlineMarker = "{inline}"

// Builder renders SQL trees into text and arguments for one backend.
//
// A Builder created with NewBuilder evaluates bindings while rendering:
// smart-null comparisons, boolean constants and inline limits are decided
// from the current values. A template Builder never invokes an accessor and
// renders every binding as a placeholder, except limits and offsets that are
// inlined: those render as the InlineMarker and are not listed as bindings.
type Builder struct {
	sb       strings.Builder
	caps     dialect.Capabilities
	ctx      context.Context
	eval     bool
	n        int
	args     []any
	bindings []*Binding
	values   map[*Binding]any
	err      error
}

// NewBuilder returns a Builder that evaluates bindings with the given context.
func NewBuilder(ctx context.Context, caps dialect.Capabilities) *Builder {
	return &Builder{caps: caps, ctx: ctx, eval: true, values: make(map[*Binding]any)}
}

// NewTemplateBuilder returns a Builder that does not evaluate bindings.
func NewTemplateBuilder(caps dialect.Capabilities) *Builder {
	return &Builder{caps: caps}
}

// Render renders the statement with the bindings evaluated from ctx.
func Render(ctx context.Context, caps dialect.Capabilities, s Stmt) (string, []any, error) {
	b := NewBuilder(ctx, caps)
	b.Stmt(s)
	return b.String(), b.Args(), b.Err()
}

// RenderBatch renders several statements as one batch. Placeholders are
// numbered across the whole batch.
func RenderBatch(ctx context.Context, caps dialect.Capabilities, stmts ...Stmt) (string, []any, error) {
	b := NewBuilder(ctx, caps)
	for i, s := range stmts {
		if i > 0 {
			b.WriteString("; ")
		}
		b.Stmt(s)
	}
	return b.String(), b.Args(), b.Err()
}

// Template renders the statement text without evaluating any binding.
func Template(caps dialect.Capabilities, s Stmt) string {
	b := NewTemplateBuilder(caps)
	b.Stmt(s)
	return b.String()
}

// Bindings returns the bindings of the statement in placeholder order.
func Bindings(caps dialect.Capabilities, s Stmt) []*Binding {
	b := NewTemplateBuilder(caps)
	b.Stmt(s)
	return b.bindings
}

// String returns the rendered text.
func (b *Builder) String() string { return b.sb.String() }

// Args returns the rendered arguments.
func (b *Builder) Args() []any { return b.args }

// Err returns the first error that occurred while rendering.
func (b *Builder) Err() error { return b.err }

// WriteString appends raw text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

func (b *Builder) quote(name string) *Builder {
	if b.caps.Name == dialect.Postgres {
		return b.WriteString(pq.QuoteIdentifier(name))
	}
	return b.WriteString(b.caps.QuoteIdent(name))
}

func (b *Builder) table(schema, name string) *Builder {
	if schema != "" {
		b.quote(schema).WriteString(".")
	}
	return b.quote(name)
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Stmt renders a statement.
func (b *Builder) Stmt(s Stmt) *Builder {
	switch s := s.(type) {
	case *Select:
		b.sel(s)
	case *Insert:
		b.insert(s)
	case *Update:
		b.update(s)
	case *Delete:
		b.delete(s)
	default:
		b.fail(fmt.Errorf("relcomp: unexpected statement %T", s))
	}
	return b
}

func (b *Builder) sel(s *Select) {
	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.Columns) == 0 {
		b.WriteString("*")
	}
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Expr(c.Expr)
		if ref, ok := c.Expr.(ColumnRef); c.Alias != "" && (!ok || ref.Name != c.Alias) {
			b.WriteString(" AS ").quote(c.Alias)
		}
	}
	if s.From != nil {
		b.WriteString(" FROM ")
		b.source(s.From)
	}
	if s.Where != nil {
		b.WriteString(" WHERE ")
		b.Expr(s.Where)
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.exprs(s.GroupBy)
	}
	if s.Having != nil {
		b.WriteString(" HAVING ")
		b.Expr(s.Having)
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.orders(s.OrderBy)
	}
	b.paging(s)
}

func (b *Builder) paging(s *Select) {
	if !s.Paged() {
		return
	}
	switch b.caps.Paging {
	case dialect.PagingLimitOffset:
		switch {
		case s.Limit != nil:
			b.WriteString(" LIMIT ")
			b.Expr(s.Limit)
		case b.caps.LimitRequiredForOffset:
			b.WriteString(" LIMIT " + b.caps.MaxLimit)
		}
		if s.Offset != nil {
			b.WriteString(" OFFSET ")
			b.Expr(s.Offset)
		}
	case dialect.PagingOffsetFetch:
		b.WriteString(" OFFSET ")
		if s.Offset != nil {
			b.Expr(s.Offset)
		} else {
			b.WriteString("0")
		}
		b.WriteString(" ROWS")
		if s.Limit != nil {
			b.WriteString(" FETCH NEXT ")
			b.Expr(s.Limit)
			b.WriteString(" ROWS ONLY")
		}
	default:
		b.fail(ErrPagingNotRewritten)
	}
}

func (b *Builder) orders(os []Order) {
	for i, o := range os {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Expr(o.Expr)
		if o.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
}

func (b *Builder) source(s Source) {
	switch s := s.(type) {
	case TableRef:
		b.table(s.Schema, s.Name)
		if s.Alias != "" {
			b.WriteString(" AS ").quote(s.Alias)
		}
	case Subquery:
		b.WriteString("(")
		b.sel(s.Select)
		b.WriteString(") AS ").quote(s.Alias)
	case JoinSource:
		b.source(s.Left)
		b.WriteString(" " + s.Kind.String() + " ")
		b.source(s.Right)
		b.WriteString(" ON ")
		b.Expr(s.On)
	default:
		b.fail(fmt.Errorf("relcomp: unexpected source %T", s))
	}
}

func (b *Builder) insert(s *Insert) {
	b.WriteString("INSERT INTO ").table(s.Schema, s.Table)
	if len(s.Columns) == 0 && s.Query == nil {
		if b.caps.Name == dialect.MySQL {
			b.WriteString(" () VALUES ()")
		} else {
			b.WriteString(" DEFAULT VALUES")
		}
		return
	}
	b.WriteString(" (")
	for i, c := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.quote(c)
	}
	b.WriteString(")")
	if s.Query != nil {
		b.WriteString(" ")
		b.sel(s.Query)
		return
	}
	b.WriteString(" VALUES (")
	b.exprs(s.Values)
	b.WriteString(")")
}

func (b *Builder) update(s *Update) {
	b.WriteString("UPDATE ").table(s.Schema, s.Table).WriteString(" SET ")
	for i, a := range s.Set {
		if i > 0 {
			b.WriteString(", ")
		}
		b.quote(a.Column).WriteString(" = ")
		b.Expr(a.Value)
	}
	if s.Where != nil {
		b.WriteString(" WHERE ")
		b.Expr(s.Where)
	}
}

func (b *Builder) delete(s *Delete) {
	b.WriteString("DELETE FROM ").table(s.Schema, s.Table)
	if s.Where != nil {
		b.WriteString(" WHERE ")
		b.Expr(s.Where)
	}
}

func (b *Builder) exprs(es []Expr) {
	for i, e := range es {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Expr(e)
	}
}

// Expr renders an expression.
func (b *Builder) Expr(e Expr) *Builder {
	switch e := e.(type) {
	case ColumnRef:
		if e.Table != "" {
			b.quote(e.Table).WriteString(".")
		}
		b.quote(e.Name)
	case Param:
		b.param(e.Binding)
	case Literal:
		b.literal(e.Value)
	case Raw:
		b.WriteString(e.SQL)
	case Binary:
		b.binary(e)
	case Unary:
		b.unary(e)
	case Func:
		b.WriteString(e.Name + "(")
		if e.Star {
			b.WriteString("*")
		} else {
			b.exprs(e.Args)
		}
		b.WriteString(")")
	case List:
		b.WriteString("(")
		b.exprs(e.Items)
		b.WriteString(")")
	case RowNumber:
		b.WriteString("ROW_NUMBER() OVER (ORDER BY ")
		if len(e.OrderBy) == 0 {
			b.WriteString("(SELECT NULL)")
		} else {
			b.orders(e.OrderBy)
		}
		b.WriteString(")")
	case Cast:
		b.WriteString("CAST(")
		b.Expr(e.X)
		b.WriteString(" AS " + e.Type + ")")
	case Coalesce:
		b.WriteString("COALESCE(")
		b.exprs(e.Args)
		b.WriteString(")")
	default:
		b.fail(fmt.Errorf("relcomp: unexpected expression %T", e))
	}
	return b
}

func (b *Builder) binary(e Binary) {
	if e.Op == OpEQ || e.Op == OpNEQ {
		if x, ok := b.smartNull(e); ok {
			b.operand(x, e.Op, false)
			if e.Op == OpEQ {
				b.WriteString(" IS NULL")
			} else {
				b.WriteString(" IS NOT NULL")
			}
			return
		}
	}
	b.operand(e.L, e.Op, false)
	b.WriteString(" " + e.Op.String() + " ")
	b.operand(e.R, e.Op, true)
}

// smartNull returns the other operand of a comparison whose smart-null
// parameter is currently nil.
func (b *Builder) smartNull(e Binary) (Expr, bool) {
	if !b.eval {
		return nil, false
	}
	for _, pair := range [...][2]Expr{{e.R, e.L}, {e.L, e.R}} {
		p, ok := pair[0].(Param)
		if !ok || p.Binding.Kind != KindSmartNull {
			continue
		}
		v, err := b.value(p.Binding)
		if err != nil {
			b.fail(err)
			return nil, false
		}
		if isNull(v) {
			return pair[1], true
		}
	}
	return nil, false
}

func (b *Builder) operand(x Expr, parent Op, right bool) {
	if c, ok := x.(Binary); ok && needParens(c.Op, parent, right) {
		b.WriteString("(")
		b.binary(c)
		b.WriteString(")")
		return
	}
	b.Expr(x)
}

func needParens(child, parent Op, right bool) bool {
	cp, pp := child.precedence(), parent.precedence()
	switch {
	case cp != pp:
		return cp < pp
	case child != parent:
		return true
	default:
		return right && parent != OpAnd && parent != OpOr && parent != OpAdd && parent != OpMul
	}
}

func (b *Builder) unary(e Unary) {
	switch e.Op {
	case OpNot:
		b.WriteString("NOT (")
		b.Expr(e.X)
		b.WriteString(")")
	case OpIsNull, OpNotNull:
		b.grouped(e.X)
		if e.Op == OpIsNull {
			b.WriteString(" IS NULL")
		} else {
			b.WriteString(" IS NOT NULL")
		}
	case OpNeg:
		b.WriteString("-")
		b.grouped(e.X)
	}
}

// grouped renders x, parenthesized if it is a binary operation.
func (b *Builder) grouped(x Expr) {
	if c, ok := x.(Binary); ok {
		b.WriteString("(")
		b.binary(c)
		b.WriteString(")")
		return
	}
	b.Expr(x)
}

func (b *Builder) param(bd *Binding) {
	if bd == nil {
		b.fail(errors.New("relcomp: parameter without a binding"))
		return
	}
	switch {
	case bd.Kind == KindBooleanConstant:
		v := true
		if b.eval {
			r, err := b.value(bd)
			if err != nil {
				b.fail(err)
				return
			}
			v, _ = r.(bool)
		}
		if v {
			b.WriteString("1 = 1")
		} else {
			b.WriteString("1 = 0")
		}
		return
	case bd.Kind == KindLimitOffset && b.caps.InlineLimitOffset:
		if !b.eval {
			b.WriteString(InlineMarker)
			return
		}
		v, err := b.value(bd)
		if err != nil {
			b.fail(err)
			return
		}
		n, _ := v.(int64)
		b.WriteString(strconv.FormatInt(n, 10))
		return
	}
	if b.eval {
		v, err := b.value(bd)
		if err != nil {
			b.fail(err)
			return
		}
		b.args = append(b.args, v)
	}
	b.n++
	b.bindings = append(b.bindings, bd)
	b.WriteString(b.caps.Placeholder(b.n))
}

// value evaluates a binding at most once per rendering.
func (b *Builder) value(bd *Binding) (any, error) {
	if v, ok := b.values[bd]; ok {
		return v, nil
	}
	v, err := bd.Eval(b.ctx)
	if err != nil {
		return nil, fmt.Errorf("relcomp: evaluate %s binding: %w", bd.Kind, err)
	}
	b.values[bd] = v
	return v, nil
}

func (b *Builder) literal(v any) {
	switch v := v.(type) {
	case nil:
		b.WriteString("NULL")
	case bool:
		switch {
		case b.caps.BooleanParams && v:
			b.WriteString("TRUE")
		case b.caps.BooleanParams:
			b.WriteString("FALSE")
		case v:
			b.WriteString("1")
		default:
			b.WriteString("0")
		}
	case string:
		if b.caps.BackslashEscapes {
			v = strings.ReplaceAll(v, `\`, `\\`)
		}
		b.WriteString("'" + strings.ReplaceAll(v, "'", "''") + "'")
	case int:
		b.WriteString(strconv.Itoa(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case time.Time:
		b.WriteString("'" + v.UTC().Format("2006-01-02 15:04:05.999999") + "'")
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32:
			b.WriteString(strconv.FormatInt(rv.Int(), 10))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			b.WriteString(strconv.FormatUint(rv.Uint(), 10))
		case reflect.Float32:
			b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 32))
		case reflect.String:
			b.literal(rv.String())
		default:
			b.fail(fmt.Errorf("relcomp: unsupported literal type %T", v))
		}
	}
}

// isNull reports if a bound value represents SQL NULL.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return true
		}
	}
	if vr, ok := v.(driver.Valuer); ok {
		dv, err := vr.Value()
		return err == nil && dv == nil
	}
	return false
}

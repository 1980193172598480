package provider

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/syssam/relcomp"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/rel"
	"github.com/syssam/relcomp/schema/field"
)

// compile translates a node and checks that the result matches its header.
func (c *compilation) compile(n rel.Node) (result, error) {
	if v := reflect.ValueOf(n); !v.IsValid() || v.Kind() == reflect.Pointer && v.IsNil() {
		return result{}, relcomp.NewUnsupportedOperatorError(rel.Operator(nil), "nil node")
	}
	op := rel.Operator(n)
	var (
		r   result
		err error
	)
	switch n := n.(type) {
	case *rel.Index:
		r = c.index(n)
	case *rel.Filter:
		r, err = c.filter(n)
	case *rel.Join:
		r, err = c.join(n)
	case *rel.Aggregate:
		r, err = c.aggregate(n)
	case *rel.Calculate:
		r, err = c.calculate(n)
	case *rel.Distinct:
		r, err = c.distinct(n)
	case *rel.Sort:
		r, err = c.sort(n)
	case *rel.Take:
		r, err = c.take(n)
	case *rel.Skip:
		r, err = c.skip(n)
	case *rel.Range:
		r, err = c.rangeScan(n)
	case *rel.Seek:
		r, err = c.seek(n)
	case *rel.Alias:
		r, err = c.child(op, n.Source)
	case *rel.Select:
		r, err = c.project(n)
	case *rel.Store:
		r, err = c.store(n)
	default:
		return result{}, relcomp.NewUnsupportedOperatorError(op, "unknown operator")
	}
	if err != nil {
		return result{}, err
	}
	h := n.Header()
	if len(r.cols) != h.Len() {
		return result{}, relcomp.NewInvariantError(op, "compiled %d columns for a header of %d", len(r.cols), h.Len())
	}
	r.names = h.Names()
	r.types = make([]field.Type, h.Len())
	for i, col := range h.Columns {
		r.types[i] = col.Type
	}
	return r, nil
}

// child compiles the input of op, recording op in the error path.
func (c *compilation) child(op string, n rel.Node) (result, error) {
	r, err := c.compile(n)
	if err != nil {
		return result{}, relcomp.WithOperator(err, op)
	}
	return r, nil
}

func (c *compilation) index(n *rel.Index) result {
	alias := c.tableAlias()
	r := result{sel: &sql.Select{From: sql.TableRef{Schema: n.Table.Schema, Name: n.Table.Name, Alias: alias}}}
	for _, col := range n.Table.Columns {
		r.cols = append(r.cols, sql.C(alias, col.Name))
	}
	return r
}

func (c *compilation) filter(n *rel.Filter) (result, error) {
	r, err := c.child("Filter", n.Source)
	if err != nil {
		return result{}, err
	}
	if r.grouped || r.calculated || r.sel.Distinct || r.paged() {
		r = c.wrap(r)
	}
	p, err := c.pred(scopeOf("Filter", r), n.Predicate)
	if err != nil {
		return result{}, err
	}
	r.sel = r.sel.Clone()
	r.sel.Where = sql.And(r.sel.Where, p)
	return r, nil
}

// plain reports if r selects from a single table without restrictions.
func plain(r result) bool {
	_, ok := r.sel.From.(sql.TableRef)
	return ok && r.sel.Where == nil && !r.sel.Distinct && !r.paged() &&
		len(r.sel.GroupBy) == 0 && !r.grouped && !r.calculated
}

func (c *compilation) join(n *rel.Join) (result, error) {
	if len(n.Pairs) == 0 {
		return result{}, relcomp.NewUnsupportedOperatorError("Join", "join requires at least one column pair")
	}
	left, err := c.child("Join", n.Left)
	if err != nil {
		return result{}, err
	}
	right, err := c.child("Join", n.Right)
	if err != nil {
		return result{}, err
	}
	if !plain(left) {
		left = c.wrap(left)
	}
	if !plain(right) {
		right = c.wrap(right)
	}
	var on sql.Expr
	for _, p := range n.Pairs {
		if p.Left < 0 || p.Left >= len(left.cols) || p.Right < 0 || p.Right >= len(right.cols) {
			return result{}, relcomp.NewInvariantError("Join", "column pair (%d, %d) out of range", p.Left, p.Right)
		}
		on = sql.And(on, sql.EQ(left.cols[p.Left], right.cols[p.Right]))
	}
	kind := sql.JoinInner
	if n.Kind == rel.LeftOuterJoin {
		kind = sql.JoinLeftOuter
	}
	return result{
		sel: &sql.Select{From: sql.JoinSource{
			Kind:  kind,
			Left:  left.sel.From,
			Right: right.sel.From,
			On:    on,
		}},
		cols:    slices.Concat(left.cols, right.cols),
		order:   slices.Concat(left.order, right.order),
		prereqs: slices.Concat(left.prereqs, right.prereqs),
	}, nil
}

func (c *compilation) aggregate(n *rel.Aggregate) (result, error) {
	r, err := c.child("Aggregate", n.Source)
	if err != nil {
		return result{}, err
	}
	if r.sel.Distinct || r.grouped || r.paged() {
		r = c.wrap(r)
	}
	s := scopeOf("Aggregate", r)
	out := result{sel: r.sel.Clone(), prereqs: r.prereqs, grouped: true}
	for _, i := range n.GroupBy {
		x, err := s.column(i)
		if err != nil {
			return result{}, err
		}
		out.cols = append(out.cols, x)
		out.sel.GroupBy = append(out.sel.GroupBy, x)
	}
	for _, a := range n.Aggregates {
		x, err := c.aggregateExpr(s, a)
		if err != nil {
			return result{}, err
		}
		out.cols = append(out.cols, x)
	}
	return out, nil
}

func (c *compilation) aggregateExpr(s scope, a rel.AggregateColumn) (sql.Expr, error) {
	if a.Func == rel.Count && a.Arg < 0 {
		return sql.Count(nil), nil
	}
	x, err := s.column(a.Arg)
	if err != nil {
		return nil, err
	}
	switch a.Func {
	case rel.Count:
		return sql.Count(x), nil
	case rel.Sum:
		return sql.Coalesce{Args: []sql.Expr{sql.Func{Name: "SUM", Args: []sql.Expr{x}}, sql.Lit(0)}}, nil
	case rel.Avg:
		if s.typeOf(a.Arg).Integer() {
			x = sql.Cast{X: x, Type: c.caps.RealType}
		}
		return sql.Func{Name: "AVG", Args: []sql.Expr{x}}, nil
	case rel.Min:
		return sql.Func{Name: "MIN", Args: []sql.Expr{x}}, nil
	case rel.Max:
		return sql.Func{Name: "MAX", Args: []sql.Expr{x}}, nil
	default:
		return nil, relcomp.NewUnsupportedOperatorError("Aggregate", fmt.Sprintf("unknown aggregate %s", a.Func))
	}
}

func (c *compilation) calculate(n *rel.Calculate) (result, error) {
	r, err := c.child("Calculate", n.Source)
	if err != nil {
		return result{}, err
	}
	if r.grouped || r.sel.Distinct || r.paged() {
		r = c.wrap(r)
	}
	s := scopeOf("Calculate", r)
	cols := slices.Clone(r.cols)
	for _, col := range n.Columns {
		x, err := c.expr(s, col.Expr)
		if err != nil {
			return result{}, err
		}
		cols = append(cols, x)
	}
	r.cols = cols
	r.calculated = true
	return r, nil
}

func (c *compilation) distinct(n *rel.Distinct) (result, error) {
	r, err := c.child("Distinct", n.Source)
	if err != nil {
		return result{}, err
	}
	if r.paged() {
		r = c.wrap(r)
	}
	r.sel = r.sel.Clone()
	r.sel.Distinct = true
	// A distinct select can only be ordered by projected columns.
	for i, o := range r.order {
		if indexExpr(r.cols, o.Expr) < 0 {
			r.order = r.order[:i:i]
			break
		}
	}
	return r, nil
}

func (c *compilation) sort(n *rel.Sort) (result, error) {
	r, err := c.child("Sort", n.Source)
	if err != nil {
		return result{}, err
	}
	if r.paged() {
		r = c.wrap(r)
	}
	s := scopeOf("Sort", r)
	order := make([]sql.Order, 0, len(n.Order))
	for _, o := range n.Order {
		x, err := s.column(o.Index)
		if err != nil {
			return result{}, err
		}
		order = append(order, sql.Order{Expr: x, Desc: o.Dir == rel.Desc})
	}
	r.order = order
	return r, nil
}

func (c *compilation) take(n *rel.Take) (result, error) {
	r, err := c.child("Take", n.Source)
	if err != nil {
		return result{}, err
	}
	if r.limit != nil {
		r.limit = sql.MinSource(r.limit, n.Count)
	} else {
		r.limit = n.Count
	}
	return c.page(r), nil
}

func (c *compilation) skip(n *rel.Skip) (result, error) {
	r, err := c.child("Skip", n.Source)
	if err != nil {
		return result{}, err
	}
	if r.limit != nil {
		r.limit = sql.DiffSource(r.limit, n.Count)
	}
	if r.offset != nil {
		r.offset = sql.SumSource(r.offset, n.Count)
	} else {
		r.offset = n.Count
	}
	return c.page(r), nil
}

// page records the paging of r on its select. A paged select carries the
// required order in its ORDER BY clause.
func (c *compilation) page(r result) result {
	r.sel = r.sel.Clone()
	r.sel.Limit, r.sel.Offset = nil, nil
	if r.limit != nil {
		r.sel.Limit = sql.P(sql.NewBinding(r.limit, sql.KindLimitOffset, field.TypeInt64))
	}
	if r.offset != nil {
		r.sel.Offset = sql.P(sql.NewBinding(r.offset, sql.KindLimitOffset, field.TypeInt64))
	}
	r.sel.OrderBy = slices.Clone(r.order)
	return r
}

func (c *compilation) rangeScan(n *rel.Range) (result, error) {
	idx, ok := n.Source.(*rel.Index)
	if !ok {
		return result{}, relcomp.NewUnsupportedOperatorError("Range", "range source must be an index")
	}
	if !equalityRange(n, len(idx.Table.Key)) {
		return result{}, relcomp.NewUnsupportedOperatorError("Range", "only equality ranges are supported")
	}
	key := make([]sql.ValueSource, len(n.Low))
	for i, e := range n.Low {
		key[i] = e.Value
	}
	return c.keyLookup("Range", idx, key)
}

// equalityRange reports if every bound pair of the range is an inclusive
// equality on a prefix of the key.
func equalityRange(n *rel.Range, keyLen int) bool {
	if len(n.Low) == 0 || len(n.Low) != len(n.High) || len(n.Low) > keyLen {
		return false
	}
	for i := range n.Low {
		lo, hi := n.Low[i], n.High[i]
		if !lo.Inclusive || !hi.Inclusive || !sameSource(lo.Value, hi.Value) {
			return false
		}
	}
	return true
}

func sameSource(a, b sql.ValueSource) bool {
	if a == nil || b == nil {
		return false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	return ra.Type() == rb.Type() && ra.Comparable() && ra.Equal(rb)
}

func (c *compilation) seek(n *rel.Seek) (result, error) {
	idx, ok := n.Source.(*rel.Index)
	if !ok {
		return result{}, relcomp.NewUnsupportedOperatorError("Seek", "seek source must be an index")
	}
	if len(n.Key) == 0 {
		return result{}, relcomp.NewUnsupportedOperatorError("Seek", "seek key must not be empty")
	}
	if len(n.Key) > len(idx.Table.Key) {
		return result{}, relcomp.NewUnsupportedOperatorError("Seek",
			fmt.Sprintf("key has %d values but the index has %d key columns", len(n.Key), len(idx.Table.Key)))
	}
	return c.keyLookup("Seek", idx, n.Key)
}

// keyLookup restricts an index scan to the rows whose key prefix equals key.
func (c *compilation) keyLookup(op string, idx *rel.Index, key []sql.ValueSource) (result, error) {
	r, err := c.child(op, idx)
	if err != nil {
		return result{}, err
	}
	r.sel = r.sel.Clone()
	for i, v := range key {
		k := idx.Table.Key[i]
		if k < 0 || k >= len(r.cols) {
			return result{}, relcomp.NewInvariantError(op, "key column %d out of range", k)
		}
		b := sql.NewBinding(v, sql.KindRegular, idx.Table.Columns[k].Type)
		r.sel.Where = sql.And(r.sel.Where, sql.EQ(r.cols[k], sql.P(b)))
	}
	return r, nil
}

func (c *compilation) project(n *rel.Select) (result, error) {
	r, err := c.child("Select", n.Source)
	if err != nil {
		return result{}, err
	}
	for _, i := range n.Indexes {
		if i < 0 || i >= len(r.cols) {
			return result{}, relcomp.NewInvariantError("Select", "column %d out of range of %d input columns", i, len(r.cols))
		}
	}
	if r.sel.Distinct && !covers(n.Indexes, len(r.cols)) {
		r = c.wrap(r)
	}
	cols := make([]sql.Expr, len(n.Indexes))
	for i, idx := range n.Indexes {
		cols[i] = r.cols[idx]
	}
	r.cols = cols
	return r, nil
}

// covers reports if the indexes reference every one of n columns.
func covers(indexes []int, n int) bool {
	for i := range n {
		if !slices.Contains(indexes, i) {
			return false
		}
	}
	return true
}

func (c *compilation) store(n *rel.Store) (result, error) {
	if !c.caps.TemporaryTables {
		return result{}, relcomp.NewUnsupportedOperatorError("Store", "backend has no temporary tables")
	}
	names := uniqueNames(n.Header().Names())
	alias := c.tableAlias()
	r := result{
		sel:  &sql.Select{From: sql.TableRef{Name: n.Name, Alias: alias}},
		cols: refs(alias, names),
	}
	if n.Source != nil {
		q, err := c.query(n.Source)
		if err != nil {
			return result{}, relcomp.WithOperator(err, "Store")
		}
		r.prereqs = append(slices.Clone(q.Prerequisites), &sql.Insert{Table: n.Name, Columns: names, Query: q.Select})
	}
	return r, nil
}

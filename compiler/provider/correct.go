package provider

import (
	"slices"

	"github.com/syssam/relcomp"
	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
)

// correctShape makes the projection match the header: one column per
// header column, with distinct aliases.
func (c *compilation) correctShape(q *CompiledQuery) error {
	n := q.Header.Len()
	switch have := len(q.Select.Columns); {
	case have < n:
		return relcomp.NewInvariantError("", "projection has %d columns for a header of %d", have, n)
	case have > n:
		names := uniqueNames(aliases(q.Select.Columns))
		inner := q.Select.Clone()
		for i := range inner.Columns {
			inner.Columns[i].Alias = names[i]
		}
		if !inner.Paged() {
			inner.OrderBy = nil
		}
		alias := c.rewriteAlias()
		outer := &sql.Select{
			Columns: columns(refs(alias, names[:n]), names[:n]),
			From:    sql.Subquery{Select: inner, Alias: alias},
		}
		exprs := columnExprs(q.Select.Columns)
		var order []sql.Order
		for _, o := range q.Order {
			i := indexExpr(exprs, o.Expr)
			if i < 0 {
				break
			}
			order = append(order, sql.Order{Expr: sql.C(alias, names[i]), Desc: o.Desc})
		}
		q.Select, q.Order = outer, order
	}
	names := uniqueNames(aliases(q.Select.Columns))
	if !slices.Equal(names, aliases(q.Select.Columns)) {
		sel := q.Select.Clone()
		sel.Columns = columns(columnExprs(sel.Columns), names)
		q.Select = sel
	}
	return nil
}

// correctOrdering applies the order required by the plan to the final
// select when nothing else ordered it.
func (c *compilation) correctOrdering(q *CompiledQuery) error {
	if len(q.Select.OrderBy) > 0 || len(q.Order) == 0 {
		return nil
	}
	sel := q.Select.Clone()
	sel.OrderBy = slices.Clone(q.Order)
	q.Select = sel
	return nil
}

// correctPaging rewrites paged selects for backends without LIMIT/OFFSET.
func (c *compilation) correctPaging(q *CompiledQuery) error {
	switch c.caps.Paging {
	case dialect.PagingOffsetFetch:
		q.Select = rewriteSelects(q.Select, true, func(s *sql.Select, _ bool) *sql.Select {
			if !s.Paged() || len(s.OrderBy) > 0 {
				return s
			}
			s = s.Clone()
			s.OrderBy = []sql.Order{{Expr: sql.Raw{SQL: "(SELECT NULL)"}}}
			return s
		})
	case dialect.PagingRowNumber:
		top := q.Select
		q.Select = rewriteSelects(q.Select, true, c.rowNumber)
		if q.Select != top && top.Paged() {
			q.Order = q.Select.OrderBy
		}
	}
	return nil
}

// rewriteSelects applies f bottom-up to s and every derived table it
// selects from. Unchanged selects are shared, not copied.
func rewriteSelects(s *sql.Select, top bool, f func(*sql.Select, bool) *sql.Select) *sql.Select {
	if from, changed := rewriteSource(s.From, f); changed {
		s = s.Clone()
		s.From = from
	}
	return f(s, top)
}

func rewriteSource(src sql.Source, f func(*sql.Select, bool) *sql.Select) (sql.Source, bool) {
	switch src := src.(type) {
	case sql.Subquery:
		sel := rewriteSelects(src.Select, false, f)
		if sel == src.Select {
			return src, false
		}
		return sql.Subquery{Select: sel, Alias: src.Alias}, true
	case sql.JoinSource:
		l, lc := rewriteSource(src.Left, f)
		r, rc := rewriteSource(src.Right, f)
		if !lc && !rc {
			return src, false
		}
		src.Left, src.Right = l, r
		return src, true
	default:
		return src, false
	}
}

// rowNumber emulates the paging of s by numbering its rows and filtering
// on the row number in an enclosing select:
//
//	SELECT cols FROM (SELECT cols, ROW_NUMBER() OVER (ORDER BY ...) AS rn FROM ...) AS r
//	WHERE rn > offset AND rn <= offset + limit
//
// Only the top-level select is ordered by the row number, since derived
// tables cannot carry an ORDER BY clause.
func (c *compilation) rowNumber(s *sql.Select, top bool) *sql.Select {
	if !s.Paged() {
		return s
	}
	names := uniqueNames(aliases(s.Columns))
	inner := s.Clone()
	inner.Limit, inner.Offset, inner.OrderBy = nil, nil, nil
	inner.Columns = columns(columnExprs(s.Columns), names)
	order := s.OrderBy
	if inner.Distinct {
		// Rows are numbered after duplicates are removed.
		exprs := columnExprs(s.Columns)
		mid := c.rewriteAlias()
		var remapped []sql.Order
		for _, o := range order {
			if i := indexExpr(exprs, o.Expr); i >= 0 {
				remapped = append(remapped, sql.Order{Expr: sql.C(mid, names[i]), Desc: o.Desc})
			}
		}
		inner = &sql.Select{
			Columns: columns(refs(mid, names), names),
			From:    sql.Subquery{Select: inner, Alias: mid},
		}
		order = remapped
	}
	rn := freshName("rn", names)
	inner.Columns = append(inner.Columns, sql.Column{Expr: sql.RowNumber{OrderBy: slices.Clone(order)}, Alias: rn})
	alias := c.rewriteAlias()
	outer := &sql.Select{
		Columns: columns(refs(alias, names), names),
		From:    sql.Subquery{Select: inner, Alias: alias},
	}
	num := sql.C(alias, rn)
	switch {
	case s.Offset != nil && s.Limit != nil:
		outer.Where = sql.And(sql.GT(num, s.Offset), sql.LTE(num, sql.Add(s.Offset, s.Limit)))
	case s.Offset != nil:
		outer.Where = sql.GT(num, s.Offset)
	default:
		outer.Where = sql.LTE(num, s.Limit)
	}
	if top {
		outer.OrderBy = []sql.Order{{Expr: num}}
	}
	return outer
}

// aliases returns the output names of the columns.
func aliases(cols []sql.Column) []string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Alias
		if ref, ok := col.Expr.(sql.ColumnRef); ok && names[i] == "" {
			names[i] = ref.Name
		}
	}
	return names
}

func columnExprs(cols []sql.Column) []sql.Expr {
	exprs := make([]sql.Expr, len(cols))
	for i, col := range cols {
		exprs[i] = col.Expr
	}
	return exprs
}

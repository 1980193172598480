package provider

import (
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/schema/field"
)

// result is the compiled form of a node. cols holds one expression per
// header column, expressed over the FROM scope of sel; sel.Columns is
// only set when a result is wrapped or finished.
type result struct {
	sel     *sql.Select
	cols    []sql.Expr
	names   []string
	types   []field.Type
	order   []sql.Order
	limit   sql.ValueSource
	offset  sql.ValueSource
	prereqs []sql.Stmt
	// grouped is set after an aggregation, calculated after
	// computed columns were appended.
	grouped    bool
	calculated bool
}

func (r result) paged() bool { return r.limit != nil || r.offset != nil }

func (c *compilation) tableAlias() string {
	a := "t" + strconv.Itoa(c.tables)
	c.tables++
	return a
}

func (c *compilation) rewriteAlias() string {
	a := "r" + strconv.Itoa(c.rewrites)
	c.rewrites++
	return a
}

// wrap turns r into a derived table and returns a result selecting from
// it. Order expressions that are not projected are carried as extra
// columns of the derived table, unless it is distinct.
func (c *compilation) wrap(r result) result {
	inner := r.sel.Clone()
	names := uniqueNames(r.names)
	inner.Columns = columns(r.cols, names)
	alias := c.tableAlias()
	out := result{
		sel:     &sql.Select{From: sql.Subquery{Select: inner, Alias: alias}},
		cols:    refs(alias, names),
		names:   r.names,
		types:   r.types,
		prereqs: r.prereqs,
	}
	used := slices.Clone(names)
	for _, o := range r.order {
		if i := indexExpr(r.cols, o.Expr); i >= 0 {
			out.order = append(out.order, sql.Order{Expr: sql.C(alias, names[i]), Desc: o.Desc})
			continue
		}
		if inner.Distinct {
			break
		}
		hidden := freshName("o", used)
		used = append(used, hidden)
		inner.Columns = append(inner.Columns, sql.Column{Expr: o.Expr, Alias: hidden})
		out.order = append(out.order, sql.Order{Expr: sql.C(alias, hidden), Desc: o.Desc})
	}
	if !inner.Paged() {
		inner.OrderBy = nil
	}
	return out
}

func columns(exprs []sql.Expr, names []string) []sql.Column {
	cols := make([]sql.Column, len(exprs))
	for i, e := range exprs {
		cols[i] = sql.Column{Expr: e}
		if i < len(names) {
			cols[i].Alias = names[i]
		}
	}
	return cols
}

func refs(alias string, names []string) []sql.Expr {
	exprs := make([]sql.Expr, len(names))
	for i, n := range names {
		exprs[i] = sql.C(alias, n)
	}
	return exprs
}

func indexExpr(exprs []sql.Expr, x sql.Expr) int {
	return slices.IndexFunc(exprs, func(e sql.Expr) bool { return sql.EqualExpr(e, x) })
}

// uniqueNames suffixes repeated names so that all names are distinct
// regardless of case. Empty names are replaced by "c<position>".
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if n == "" {
			n = "c" + strconv.Itoa(i)
		}
		name := n
		for k := 1; seen[strings.ToLower(name)]; k++ {
			name = n + "_" + strconv.Itoa(k)
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

// freshName returns the first of prefix, prefix1, prefix2... not in used.
func freshName(prefix string, used []string) string {
	taken := func(name string) bool {
		return slices.ContainsFunc(used, func(u string) bool { return strings.EqualFold(u, name) })
	}
	name := prefix
	for k := 1; taken(name); k++ {
		name = prefix + strconv.Itoa(k)
	}
	return name
}

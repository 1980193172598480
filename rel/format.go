package rel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"

	"github.com/syssam/relcomp/dialect/sql"
)

// Operator returns the operator name of the node, e.g. "Filter".
func Operator(n Node) string {
	switch n.(type) {
	case *Index:
		return "Index"
	case *Filter:
		return "Filter"
	case *Join:
		return "Join"
	case *Aggregate:
		return "Aggregate"
	case *Calculate:
		return "Calculate"
	case *Distinct:
		return "Distinct"
	case *Sort:
		return "Sort"
	case *Take:
		return "Take"
	case *Skip:
		return "Skip"
	case *Range:
		return "Range"
	case *Seek:
		return "Seek"
	case *Alias:
		return "Alias"
	case *Select:
		return "Select"
	case *Store:
		return "Store"
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", n)
	}
}

// Format returns an indented description of the plan rooted at n, one
// operator per line:
//
//	Take(?)
//	  Sort(#1 asc)
//	    Filter(#2 > ?)
//	      Index(people)
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n, 0)
	return sb.String()
}

// Fingerprint returns a structural hash of the plan rooted at n. Plans
// with equal fingerprints have the same shape, but may differ in the
// values supplied at execution time.
func Fingerprint(n Node) uint64 {
	return xxhash.Sum64([]byte(Format(n)))
}

func format(sb *strings.Builder, n Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(Operator(n))
	sb.WriteString("(")
	sb.WriteString(args(n))
	sb.WriteString(")\n")
	if n == nil {
		return
	}
	for _, c := range n.Children() {
		format(sb, c, depth+1)
	}
}

func args(n Node) string {
	switch n := n.(type) {
	case *Index:
		return n.Table.String()
	case *Filter:
		return FormatExpr(n.Predicate)
	case *Join:
		pairs := make([]string, len(n.Pairs))
		for i, p := range n.Pairs {
			pairs[i] = fmt.Sprintf("#%d = #%d", p.Left, p.Right)
		}
		return n.Kind.String() + ": " + strings.Join(pairs, ", ")
	case *Aggregate:
		items := make([]string, 0, len(n.GroupBy)+len(n.Aggregates))
		for _, g := range n.GroupBy {
			items = append(items, "#"+strconv.Itoa(g))
		}
		for _, a := range n.Aggregates {
			arg := "*"
			if a.Arg >= 0 {
				arg = "#" + strconv.Itoa(a.Arg)
			}
			items = append(items, fmt.Sprintf("%s(%s) as %s", a.Func, arg, a.Name))
		}
		return strings.Join(items, ", ")
	case *Calculate:
		items := make([]string, len(n.Columns))
		for i, c := range n.Columns {
			items[i] = FormatExpr(c.Expr) + " as " + c.Name
		}
		return strings.Join(items, ", ")
	case *Sort:
		return formatOrder(n.Order)
	case *Take:
		return source(n.Count)
	case *Skip:
		return source(n.Count)
	case *Range:
		return endpoints(n.Low) + " .. " + endpoints(n.High)
	case *Seek:
		keys := make([]string, len(n.Key))
		for i, k := range n.Key {
			keys[i] = source(k)
		}
		return strings.Join(keys, ", ")
	case *Alias:
		return n.Name
	case *Select:
		items := make([]string, len(n.Indexes))
		for i, idx := range n.Indexes {
			items[i] = "#" + strconv.Itoa(idx)
		}
		return strings.Join(items, ", ")
	case *Store:
		return n.Name
	}
	return ""
}

func formatOrder(order []OrderItem) string {
	items := make([]string, len(order))
	for i, o := range order {
		items[i] = fmt.Sprintf("#%d %s", o.Index, o.Dir)
	}
	return strings.Join(items, ", ")
}

func endpoints(es []Endpoint) string {
	items := make([]string, len(es))
	for i, e := range es {
		if e.Inclusive {
			items[i] = "[" + source(e.Value) + "]"
		} else {
			items[i] = "(" + source(e.Value) + ")"
		}
	}
	return strings.Join(items, ", ")
}

// source describes a value source without evaluating it.
func source(src sql.ValueSource) string {
	if s, ok := src.(*Parameter); ok {
		return s.String()
	}
	return "?"
}

// FormatExpr returns a textual form of the expression.
func FormatExpr(e Expr) string {
	return formatExpr(e, false)
}

func formatExpr(e Expr, nested bool) string {
	switch e := e.(type) {
	case ColumnExpr:
		return "#" + strconv.Itoa(e.Index)
	case ConstExpr:
		if s, ok := e.Value.(string); ok {
			return strconv.Quote(s)
		}
		return fmt.Sprint(e.Value)
	case ParamExpr:
		return source(e.Source)
	case BinaryExpr:
		s := formatExpr(e.L, true) + " " + e.Op.String() + " " + formatExpr(e.R, true)
		if nested {
			return "(" + s + ")"
		}
		return s
	case UnaryExpr:
		switch e.Op {
		case OpIsNull, OpNotNull:
			return formatExpr(e.X, true) + " " + e.Op.String()
		case OpNot:
			return "not " + formatExpr(e.X, true)
		default:
			return e.Op.String() + formatExpr(e.X, true)
		}
	case FuncExpr:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = FormatExpr(a)
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("%T", e)
}

package rel

import (
	"slices"

	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/schema"
	"github.com/syssam/relcomp/schema/field"
)

// Node is an operator of a relational plan. Nodes are immutable once
// constructed and may be shared between plans and goroutines. The set of
// implementations is closed.
type Node interface {
	// Header returns the output columns and order of the node.
	// It must not be modified.
	Header() Header
	// Children returns the input nodes.
	Children() []Node
	node()
}

type base struct {
	header Header
}

func (b *base) Header() Header { return b.header }
func (*base) node()            {}

// unary is the base of nodes with a single input.
type unary struct {
	base
	Source Node
}

func (u *unary) Children() []Node { return []Node{u.Source} }

func headerOf(n Node) Header {
	if n == nil {
		return Header{}
	}
	return n.Header()
}

// Index scans a mapped table.
type Index struct {
	base
	Table *schema.Table
}

// NewIndex returns a scan of all columns of the table.
func NewIndex(t *schema.Table) *Index {
	n := &Index{Table: t}
	for _, c := range t.Columns {
		n.header.Columns = append(n.header.Columns, Column{Name: c.Name, Type: c.Type})
	}
	return n
}

// Children implements Node.
func (*Index) Children() []Node { return nil }

// Filter keeps the rows matching a predicate.
type Filter struct {
	unary
	Predicate Expr
}

// NewFilter returns a filter of the source rows.
func NewFilter(src Node, pred Expr) *Filter {
	n := &Filter{Predicate: pred}
	n.Source, n.header = src, headerOf(src)
	return n
}

// JoinKind is the kind of a join.
type JoinKind uint8

// Join kinds.
const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

// String implements fmt.Stringer.
func (k JoinKind) String() string {
	if k == LeftOuterJoin {
		return "left"
	}
	return "inner"
}

// JoinPair equates a column of the left input with a column of the right input.
type JoinPair struct {
	Left, Right int
}

// Join combines the rows of two inputs on equal column pairs.
type Join struct {
	base
	Left, Right Node
	Kind        JoinKind
	Pairs       []JoinPair
}

// NewJoin returns a join of left and right. The header is the left header
// followed by the right header.
func NewJoin(left, right Node, kind JoinKind, pairs ...JoinPair) *Join {
	n := &Join{Left: left, Right: right, Kind: kind, Pairs: pairs}
	lh, rh := headerOf(left), headerOf(right)
	n.header.Columns = slices.Concat(lh.Columns, rh.Columns)
	n.header.Order = slices.Clone(lh.Order)
	for _, o := range rh.Order {
		n.header.Order = append(n.header.Order, OrderItem{Index: o.Index + lh.Len(), Dir: o.Dir})
	}
	return n
}

// Children implements Node.
func (n *Join) Children() []Node { return []Node{n.Left, n.Right} }

// AggFunc is an aggregate function.
type AggFunc uint8

// Aggregate functions.
const (
	Count AggFunc = iota
	Sum
	Avg
	Min
	Max
)

var aggNames = [...]string{
	Count: "count",
	Sum:   "sum",
	Avg:   "avg",
	Min:   "min",
	Max:   "max",
}

// String implements fmt.Stringer.
func (f AggFunc) String() string {
	if int(f) < len(aggNames) {
		return aggNames[f]
	}
	return "?agg"
}

// AggregateColumn is an aggregate computed over an input column.
// Arg is -1 for COUNT(*).
type AggregateColumn struct {
	Func AggFunc
	Arg  int
	Name string
}

// Aggregate groups the rows and computes aggregates per group.
type Aggregate struct {
	unary
	GroupBy    []int
	Aggregates []AggregateColumn
}

// NewAggregate returns an aggregation of the source rows. The header is the
// group columns followed by the aggregate columns, without order.
func NewAggregate(src Node, groupBy []int, aggs ...AggregateColumn) *Aggregate {
	n := &Aggregate{GroupBy: groupBy, Aggregates: aggs}
	n.Source = src
	h := headerOf(src)
	for _, i := range groupBy {
		var c Column
		if h.Valid(i) {
			c = h.Columns[i]
		}
		n.header.Columns = append(n.header.Columns, c)
	}
	for _, a := range aggs {
		n.header.Columns = append(n.header.Columns, Column{Name: a.Name, Type: aggType(h, a)})
	}
	return n
}

func aggType(h Header, a AggregateColumn) field.Type {
	switch {
	case a.Func == Count:
		return field.TypeInt64
	case a.Func == Avg:
		return field.TypeFloat64
	case h.Valid(a.Arg):
		return h.Columns[a.Arg].Type
	default:
		return field.TypeInvalid
	}
}

// CalculatedColumn is a column computed from the input columns.
type CalculatedColumn struct {
	Name string
	Expr Expr
	Type field.Type
}

// Calculate appends computed columns to the source rows.
type Calculate struct {
	unary
	Columns []CalculatedColumn
}

// NewCalculate returns the source rows extended with computed columns.
func NewCalculate(src Node, cols ...CalculatedColumn) *Calculate {
	n := &Calculate{Columns: cols}
	n.Source = src
	n.header = headerOf(src).withOrder(headerOf(src).Order)
	for _, c := range cols {
		n.header.Columns = append(n.header.Columns, Column{Name: c.Name, Type: c.Type})
	}
	return n
}

// Distinct removes duplicate rows.
type Distinct struct {
	unary
}

// NewDistinct returns the distinct source rows.
func NewDistinct(src Node) *Distinct {
	n := &Distinct{}
	n.Source, n.header = src, headerOf(src)
	return n
}

// Sort orders the rows. It replaces any previous order.
type Sort struct {
	unary
	Order []OrderItem
}

// NewSort returns the source rows in the given order.
func NewSort(src Node, order ...OrderItem) *Sort {
	n := &Sort{Order: order}
	n.Source = src
	n.header = headerOf(src).withOrder(order)
	return n
}

// Take keeps the first Count rows.
type Take struct {
	unary
	Count sql.ValueSource
}

// NewTake returns at most count rows of the source.
func NewTake(src Node, count sql.ValueSource) *Take {
	n := &Take{Count: count}
	n.Source, n.header = src, headerOf(src)
	return n
}

// Skip drops the first Count rows.
type Skip struct {
	unary
	Count sql.ValueSource
}

// NewSkip returns the source rows after the first count.
func NewSkip(src Node, count sql.ValueSource) *Skip {
	n := &Skip{Count: count}
	n.Source, n.header = src, headerOf(src)
	return n
}

// Endpoint is a bound of a range over a key column.
type Endpoint struct {
	Value     sql.ValueSource
	Inclusive bool
}

// Range keeps the rows whose key lies between Low and High. The i-th
// endpoint bounds the i-th key column.
type Range struct {
	unary
	Low, High []Endpoint
}

// NewRange returns the rows of an index between two key bounds.
func NewRange(src Node, low, high []Endpoint) *Range {
	n := &Range{Low: low, High: high}
	n.Source, n.header = src, headerOf(src)
	return n
}

// Seek keeps the rows whose key prefix equals Key.
type Seek struct {
	unary
	Key []sql.ValueSource
}

// NewSeek returns the rows of an index matching a key prefix.
func NewSeek(src Node, key ...sql.ValueSource) *Seek {
	n := &Seek{Key: key}
	n.Source, n.header = src, headerOf(src)
	return n
}

// Alias qualifies the column names of the source with a name.
type Alias struct {
	unary
	Name string
}

// NewAlias returns the source with columns renamed to "name.column".
func NewAlias(src Node, name string) *Alias {
	n := &Alias{Name: name}
	n.Source = src
	n.header = headerOf(src).withOrder(headerOf(src).Order)
	for i := range n.header.Columns {
		n.header.Columns[i].Name = name + "." + n.header.Columns[i].Name
	}
	return n
}

// Select projects the source onto a list of columns.
type Select struct {
	unary
	Indexes []int
}

// NewSelect returns the source columns at the given positions.
func NewSelect(src Node, indexes ...int) *Select {
	n := &Select{Indexes: indexes}
	n.Source = src
	n.header = headerOf(src).project(indexes)
	return n
}

// Store materializes rows in a temporary table. A store without a source
// reads a table filled earlier.
type Store struct {
	base
	Name   string
	Source Node
}

// NewStore returns a node materializing the source rows in the named table.
func NewStore(name string, src Node) *Store {
	return &Store{base: base{header: headerOf(src).unordered()}, Name: name, Source: src}
}

// NewStoreRef returns a node reading a previously stored table.
func NewStoreRef(name string, cols ...Column) *Store {
	return &Store{base: base{header: Header{Columns: slices.Clone(cols)}}, Name: name}
}

// Children implements Node.
func (n *Store) Children() []Node {
	if n.Source == nil {
		return nil
	}
	return []Node{n.Source}
}

var (
	_ Node = (*Index)(nil)
	_ Node = (*Filter)(nil)
	_ Node = (*Join)(nil)
	_ Node = (*Aggregate)(nil)
	_ Node = (*Calculate)(nil)
	_ Node = (*Distinct)(nil)
	_ Node = (*Sort)(nil)
	_ Node = (*Take)(nil)
	_ Node = (*Skip)(nil)
	_ Node = (*Range)(nil)
	_ Node = (*Seek)(nil)
	_ Node = (*Alias)(nil)
	_ Node = (*Select)(nil)
	_ Node = (*Store)(nil)
)

package rel

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/syssam/relcomp/schema/field"
)

// Direction is a sort direction.
type Direction uint8

// Sort directions.
const (
	Asc Direction = iota
	Desc
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// OrderItem is a sort key referencing a header column by position.
type OrderItem struct {
	Index int
	Dir   Direction
}

// Column is a column of a header.
type Column struct {
	Name string
	Type field.Type
}

// Header describes the output of a node: its ordered columns and the
// order the rows are guaranteed to have.
type Header struct {
	Columns []Column
	Order   []OrderItem
}

// Len returns the number of columns.
func (h Header) Len() int { return len(h.Columns) }

// Valid reports if i is a column position of the header.
func (h Header) Valid(i int) bool { return i >= 0 && i < len(h.Columns) }

// Lookup returns the position of the first column with the given name.
// Names are compared case-insensitively.
func (h Header) Lookup(name string) (int, bool) {
	fold := cases.Fold()
	name = fold.String(name)
	i := slices.IndexFunc(h.Columns, func(c Column) bool {
		return fold.String(c.Name) == name
	})
	return i, i >= 0
}

// Names returns the column names.
func (h Header) Names() []string {
	names := make([]string, len(h.Columns))
	for i, c := range h.Columns {
		names[i] = c.Name
	}
	return names
}

// Equal reports if two headers have the same columns and order.
func (h Header) Equal(o Header) bool {
	return slices.Equal(h.Columns, o.Columns) && slices.Equal(h.Order, o.Order)
}

// String returns the header as "(a int64, b string) order by a asc".
func (h Header) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, c := range h.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.Name + " " + c.Type.ConstName())
	}
	sb.WriteString(")")
	if len(h.Order) > 0 {
		sb.WriteString(" order by ")
		for i, o := range h.Order {
			if i > 0 {
				sb.WriteString(", ")
			}
			if h.Valid(o.Index) {
				sb.WriteString(h.Columns[o.Index].Name)
			} else {
				sb.WriteString("#" + strconv.Itoa(o.Index))
			}
			sb.WriteString(" " + o.Dir.String())
		}
	}
	return sb.String()
}

// unordered returns a copy of the header without order.
func (h Header) unordered() Header {
	return Header{Columns: slices.Clone(h.Columns)}
}

// withOrder returns a copy of the header with the given order.
func (h Header) withOrder(order []OrderItem) Header {
	return Header{Columns: slices.Clone(h.Columns), Order: slices.Clone(order)}
}

// project returns the header of the columns at the given positions. Order
// items survive as long as their columns are projected; the order is cut
// at the first hidden column.
func (h Header) project(indexes []int) Header {
	out := Header{Columns: make([]Column, len(indexes))}
	for i, idx := range indexes {
		if h.Valid(idx) {
			out.Columns[i] = h.Columns[idx]
		}
	}
	for _, o := range h.Order {
		pos := slices.Index(indexes, o.Index)
		if pos < 0 {
			break
		}
		out.Order = append(out.Order, OrderItem{Index: pos, Dir: o.Dir})
	}
	return out
}

package sql

import (
	"reflect"
	"slices"
)

type (
	// Expr is a native SQL scalar expression. The set of implementations
	// is closed; renderers switch over it exhaustively.
	Expr interface{ expr() }

	// Source is an item of a FROM clause.
	Source interface{ source() }

	// Stmt is a complete SQL statement.
	Stmt interface{ stmt() }
)

// Op is a binary operator.
type Op uint8

// Binary operators.
const (
	OpEQ Op = iota
	OpNEQ
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLike
	OpIn
)

var opText = [...]string{
	OpEQ:   "=",
	OpNEQ:  "<>",
	OpGT:   ">",
	OpGTE:  ">=",
	OpLT:   "<",
	OpLTE:  "<=",
	OpAnd:  "AND",
	OpOr:   "OR",
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpDiv:  "/",
	OpMod:  "%",
	OpLike: "LIKE",
	OpIn:   "IN",
}

// String returns the SQL text of the operator.
func (o Op) String() string { return opText[o] }

// precedence returns the binding strength of the operator.
func (o Op) precedence() int {
	switch o {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpAdd, OpSub:
		return 5
	case OpMul, OpDiv, OpMod:
		return 6
	default:
		return 4
	}
}

// UnaryOp is a unary operator.
type UnaryOp uint8

// Unary operators.
const (
	OpNot UnaryOp = iota
	OpIsNull
	OpNotNull
	OpNeg
)

// JoinKind is the kind of a join.
type JoinKind uint8

// Join kinds.
const (
	JoinInner JoinKind = iota
	JoinLeftOuter
)

// String returns the SQL keyword of the join.
func (k JoinKind) String() string {
	if k == JoinLeftOuter {
		return "LEFT JOIN"
	}
	return "JOIN"
}

type (
	// ColumnRef references a column, optionally qualified by a table alias.
	ColumnRef struct {
		Table string
		Name  string
	}

	// Param is a placeholder carrying a binding.
	Param struct {
		Binding *Binding
	}

	// Literal is a constant rendered inline.
	Literal struct {
		Value any
	}

	// Raw is SQL text rendered as is.
	Raw struct {
		SQL string
	}

	// Binary is a binary operation.
	Binary struct {
		Op   Op
		L, R Expr
	}

	// Unary is a unary operation.
	Unary struct {
		Op UnaryOp
		X  Expr
	}

	// Func is a function call. Star renders COUNT(*)-style calls.
	Func struct {
		Name string
		Args []Expr
		Star bool
	}

	// List is a parenthesized expression list, the right operand of IN.
	List struct {
		Items []Expr
	}

	// RowNumber is ROW_NUMBER() OVER (ORDER BY ...).
	RowNumber struct {
		OrderBy []Order
	}

	// Cast is CAST(x AS type).
	Cast struct {
		X    Expr
		Type string
	}

	// Coalesce is COALESCE(args...).
	Coalesce struct {
		Args []Expr
	}
)

func (ColumnRef) expr() {}
func (Param) expr()     {}
func (Literal) expr()   {}
func (Raw) expr()       {}
func (Binary) expr()    {}
func (Unary) expr()     {}
func (Func) expr()      {}
func (List) expr()      {}
func (RowNumber) expr() {}
func (Cast) expr()      {}
func (Coalesce) expr()  {}

type (
	// TableRef is a physical table.
	TableRef struct {
		Schema string
		Name   string
		Alias  string
	}

	// Subquery is a derived table.
	Subquery struct {
		Select *Select
		Alias  string
	}

	// JoinSource joins two sources.
	JoinSource struct {
		Kind        JoinKind
		Left, Right Source
		On          Expr
	}
)

func (TableRef) source()   {}
func (Subquery) source()   {}
func (JoinSource) source() {}

// Order is an item of an ORDER BY clause.
type Order struct {
	Expr Expr
	Desc bool
}

// Column is a projected expression.
type Column struct {
	Expr  Expr
	Alias string
}

// Select is a SELECT statement. Limit and Offset are usually Params with
// a KindLimitOffset binding.
type Select struct {
	Distinct bool
	Columns  []Column
	From     Source
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []Order
	Limit    Expr
	Offset   Expr
}

// Clone returns a shallow copy of the select. Slices are copied so the
// clone can be extended without affecting s; sub-selects are shared.
func (s *Select) Clone() *Select {
	c := *s
	c.Columns = slices.Clone(s.Columns)
	c.GroupBy = slices.Clone(s.GroupBy)
	c.OrderBy = slices.Clone(s.OrderBy)
	return &c
}

// Paged reports if the select restricts its row count.
func (s *Select) Paged() bool {
	return s.Limit != nil || s.Offset != nil
}

// Assignment is an item of an UPDATE SET clause.
type Assignment struct {
	Column string
	Value  Expr
}

type (
	// Insert is an INSERT statement. With a Query it renders INSERT ... SELECT;
	// without Columns it inserts a row of default values.
	Insert struct {
		Schema  string
		Table   string
		Columns []string
		Values  []Expr
		Query   *Select
	}

	// Update is an UPDATE statement.
	Update struct {
		Schema string
		Table  string
		Set    []Assignment
		Where  Expr
	}

	// Delete is a DELETE statement.
	Delete struct {
		Schema string
		Table  string
		Where  Expr
	}
)

func (*Select) stmt() {}
func (*Insert) stmt() {}
func (*Update) stmt() {}
func (*Delete) stmt() {}

// EqualExpr reports if two expressions are structurally equal. Params are
// equal only if they carry the same binding.
func EqualExpr(a, b Expr) bool {
	switch a := a.(type) {
	case ColumnRef:
		b, ok := b.(ColumnRef)
		return ok && a == b
	case Param:
		b, ok := b.(Param)
		return ok && a.Binding == b.Binding
	case Literal:
		b, ok := b.(Literal)
		return ok && literalEqual(a.Value, b.Value)
	case Raw:
		b, ok := b.(Raw)
		return ok && a == b
	case Binary:
		b, ok := b.(Binary)
		return ok && a.Op == b.Op && EqualExpr(a.L, b.L) && EqualExpr(a.R, b.R)
	case Unary:
		b, ok := b.(Unary)
		return ok && a.Op == b.Op && EqualExpr(a.X, b.X)
	case Func:
		b, ok := b.(Func)
		return ok && a.Name == b.Name && a.Star == b.Star && equalExprs(a.Args, b.Args)
	case List:
		b, ok := b.(List)
		return ok && equalExprs(a.Items, b.Items)
	case Cast:
		b, ok := b.(Cast)
		return ok && a.Type == b.Type && EqualExpr(a.X, b.X)
	case Coalesce:
		b, ok := b.(Coalesce)
		return ok && equalExprs(a.Args, b.Args)
	case RowNumber:
		b, ok := b.(RowNumber)
		if !ok || len(a.OrderBy) != len(b.OrderBy) {
			return false
		}
		for i := range a.OrderBy {
			if a.OrderBy[i].Desc != b.OrderBy[i].Desc || !EqualExpr(a.OrderBy[i].Expr, b.OrderBy[i].Expr) {
				return false
			}
		}
		return true
	}
	return false
}

func equalExprs(a, b []Expr) bool {
	return slices.EqualFunc(a, b, EqualExpr)
}

func literalEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	return ra.Type() == rb.Type() && ra.Comparable() && ra.Equal(rb)
}

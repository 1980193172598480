package rel

import (
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/schema/field"
)

// Expr is a scalar expression evaluated against the input header of the
// node it belongs to. The set of implementations is closed.
type Expr interface{ expr() }

// Op is a binary operator.
type Op uint8

// Binary operators.
const (
	OpEq Op = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLike
)

var opNames = [...]string{
	OpEq:   "=",
	OpNeq:  "<>",
	OpGt:   ">",
	OpGte:  ">=",
	OpLt:   "<",
	OpLte:  "<=",
	OpAnd:  "and",
	OpOr:   "or",
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpDiv:  "/",
	OpMod:  "%",
	OpLike: "like",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "?op"
}

// Comparison reports if o compares two values.
func (o Op) Comparison() bool { return o <= OpLte || o == OpLike }

// UnaryOp is a unary operator.
type UnaryOp uint8

// Unary operators.
const (
	OpNot UnaryOp = iota
	OpIsNull
	OpNotNull
	OpNeg
)

var unaryNames = [...]string{
	OpNot:     "not",
	OpIsNull:  "is null",
	OpNotNull: "is not null",
	OpNeg:     "-",
}

// String implements fmt.Stringer.
func (o UnaryOp) String() string {
	if int(o) < len(unaryNames) {
		return unaryNames[o]
	}
	return "?op"
}

type (
	// ColumnExpr references an input column by position.
	ColumnExpr struct {
		Index int
	}

	// ConstExpr is a constant rendered inline.
	ConstExpr struct {
		Value any
	}

	// ParamExpr is a value supplied at execution time. A nullable
	// parameter compared with = or <> matches NULL when its value is nil.
	ParamExpr struct {
		Source   sql.ValueSource
		Type     field.Type
		Nullable bool
	}

	// BinaryExpr is a binary operation.
	BinaryExpr struct {
		Op   Op
		L, R Expr
	}

	// UnaryExpr is a unary operation.
	UnaryExpr struct {
		Op UnaryOp
		X  Expr
	}

	// FuncExpr is a scalar function call.
	FuncExpr struct {
		Name string
		Args []Expr
	}
)

func (ColumnExpr) expr() {}
func (ConstExpr) expr()  {}
func (ParamExpr) expr()  {}
func (BinaryExpr) expr() {}
func (UnaryExpr) expr()  {}
func (FuncExpr) expr()   {}

// Col references the i-th input column.
func Col(i int) Expr { return ColumnExpr{Index: i} }

// Const returns a constant expression.
func Const(v any) Expr { return ConstExpr{Value: v} }

// Param returns an execution-time value of the given type.
func Param(src sql.ValueSource, typ field.Type) Expr {
	return ParamExpr{Source: src, Type: typ}
}

// NullableParam returns an execution-time value that may be nil.
func NullableParam(src sql.ValueSource, typ field.Type) Expr {
	return ParamExpr{Source: src, Type: typ, Nullable: true}
}

// Eq returns x = y.
func Eq(x, y Expr) Expr { return BinaryExpr{Op: OpEq, L: x, R: y} }

// Neq returns x <> y.
func Neq(x, y Expr) Expr { return BinaryExpr{Op: OpNeq, L: x, R: y} }

// Gt returns x > y.
func Gt(x, y Expr) Expr { return BinaryExpr{Op: OpGt, L: x, R: y} }

// Gte returns x >= y.
func Gte(x, y Expr) Expr { return BinaryExpr{Op: OpGte, L: x, R: y} }

// Lt returns x < y.
func Lt(x, y Expr) Expr { return BinaryExpr{Op: OpLt, L: x, R: y} }

// Lte returns x <= y.
func Lte(x, y Expr) Expr { return BinaryExpr{Op: OpLte, L: x, R: y} }

// Like returns x LIKE pattern.
func Like(x, pattern Expr) Expr { return BinaryExpr{Op: OpLike, L: x, R: pattern} }

// And conjoins the expressions.
func And(x, y Expr, more ...Expr) Expr {
	e := BinaryExpr{Op: OpAnd, L: x, R: y}
	for _, m := range more {
		e = BinaryExpr{Op: OpAnd, L: e, R: m}
	}
	return e
}

// Or disjoins the expressions.
func Or(x, y Expr, more ...Expr) Expr {
	e := BinaryExpr{Op: OpOr, L: x, R: y}
	for _, m := range more {
		e = BinaryExpr{Op: OpOr, L: e, R: m}
	}
	return e
}

// Add returns x + y.
func Add(x, y Expr) Expr { return BinaryExpr{Op: OpAdd, L: x, R: y} }

// Sub returns x - y.
func Sub(x, y Expr) Expr { return BinaryExpr{Op: OpSub, L: x, R: y} }

// Mul returns x * y.
func Mul(x, y Expr) Expr { return BinaryExpr{Op: OpMul, L: x, R: y} }

// Div returns x / y.
func Div(x, y Expr) Expr { return BinaryExpr{Op: OpDiv, L: x, R: y} }

// Not negates x.
func Not(x Expr) Expr { return UnaryExpr{Op: OpNot, X: x} }

// IsNull returns x IS NULL.
func IsNull(x Expr) Expr { return UnaryExpr{Op: OpIsNull, X: x} }

// NotNull returns x IS NOT NULL.
func NotNull(x Expr) Expr { return UnaryExpr{Op: OpNotNull, X: x} }

// Neg returns -x.
func Neg(x Expr) Expr { return UnaryExpr{Op: OpNeg, X: x} }

// Func returns a call of the named scalar function.
func Func(name string, args ...Expr) Expr { return FuncExpr{Name: name, Args: args} }

// Columns returns the input column positions referenced by e.
func Columns(e Expr) []int {
	var cols []int
	walkExpr(e, func(x Expr) {
		if c, ok := x.(ColumnExpr); ok {
			cols = append(cols, c.Index)
		}
	})
	return cols
}

func walkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case BinaryExpr:
		walkExpr(e.L, fn)
		walkExpr(e.R, fn)
	case UnaryExpr:
		walkExpr(e.X, fn)
	case FuncExpr:
		for _, a := range e.Args {
			walkExpr(a, fn)
		}
	}
}

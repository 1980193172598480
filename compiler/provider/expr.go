package provider

import (
	"fmt"
	"strings"

	"github.com/syssam/relcomp"
	"github.com/syssam/relcomp/dialect/sql"
	"github.com/syssam/relcomp/rel"
	"github.com/syssam/relcomp/schema/field"
)

// scope resolves column positions of an operator input.
type scope struct {
	op    string
	cols  []sql.Expr
	types []field.Type
}

func scopeOf(op string, r result) scope {
	return scope{op: op, cols: r.cols, types: r.types}
}

func (s scope) column(i int) (sql.Expr, error) {
	if i < 0 || i >= len(s.cols) {
		return nil, relcomp.NewInvariantError(s.op, "column %d out of range of %d input columns", i, len(s.cols))
	}
	return s.cols[i], nil
}

func (s scope) typeOf(i int) field.Type {
	if i < 0 || i >= len(s.types) {
		return field.TypeInvalid
	}
	return s.types[i]
}

var binaryOps = map[rel.Op]sql.Op{
	rel.OpEq:   sql.OpEQ,
	rel.OpNeq:  sql.OpNEQ,
	rel.OpGt:   sql.OpGT,
	rel.OpGte:  sql.OpGTE,
	rel.OpLt:   sql.OpLT,
	rel.OpLte:  sql.OpLTE,
	rel.OpAnd:  sql.OpAnd,
	rel.OpOr:   sql.OpOr,
	rel.OpAdd:  sql.OpAdd,
	rel.OpSub:  sql.OpSub,
	rel.OpMul:  sql.OpMul,
	rel.OpDiv:  sql.OpDiv,
	rel.OpMod:  sql.OpMod,
	rel.OpLike: sql.OpLike,
}

// expr translates a scalar expression over the scope s.
func (c *compilation) expr(s scope, e rel.Expr) (sql.Expr, error) {
	switch e := e.(type) {
	case nil:
		return nil, relcomp.NewInvariantError(s.op, "nil expression")
	case rel.ColumnExpr:
		return s.column(e.Index)
	case rel.ConstExpr:
		return sql.Lit(e.Value), nil
	case rel.ParamExpr:
		kind := sql.KindRegular
		if e.Nullable {
			kind = sql.KindSmartNull
		}
		return sql.P(sql.NewBinding(e.Source, kind, e.Type)), nil
	case rel.BinaryExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, relcomp.NewUnsupportedOperatorError(s.op, fmt.Sprintf("unknown binary operator %d", e.Op))
		}
		operand := c.expr
		if op == sql.OpAnd || op == sql.OpOr {
			operand = c.pred
		}
		l, err := operand(s, e.L)
		if err != nil {
			return nil, err
		}
		r, err := operand(s, e.R)
		if err != nil {
			return nil, err
		}
		return sql.Binary{Op: op, L: l, R: r}, nil
	case rel.UnaryExpr:
		switch e.Op {
		case rel.OpNot:
			x, err := c.pred(s, e.X)
			if err != nil {
				return nil, err
			}
			return sql.Not(x), nil
		case rel.OpIsNull, rel.OpNotNull, rel.OpNeg:
			x, err := c.expr(s, e.X)
			if err != nil {
				return nil, err
			}
			switch e.Op {
			case rel.OpIsNull:
				return sql.IsNull(x), nil
			case rel.OpNotNull:
				return sql.NotNull(x), nil
			}
			return sql.Unary{Op: sql.OpNeg, X: x}, nil
		}
		return nil, relcomp.NewUnsupportedOperatorError(s.op, fmt.Sprintf("unknown unary operator %d", e.Op))
	case rel.FuncExpr:
		args := make([]sql.Expr, len(e.Args))
		for i, a := range e.Args {
			x, err := c.expr(s, a)
			if err != nil {
				return nil, err
			}
			args[i] = x
		}
		return sql.Func{Name: strings.ToUpper(e.Name), Args: args}, nil
	default:
		return nil, relcomp.NewUnsupportedOperatorError(s.op, fmt.Sprintf("unsupported expression %T", e))
	}
}

// pred translates an expression used as a predicate. Backends without
// boolean parameters cannot use a boolean value as a condition.
func (c *compilation) pred(s scope, e rel.Expr) (sql.Expr, error) {
	if c.caps.BooleanParams {
		return c.expr(s, e)
	}
	switch e := e.(type) {
	case rel.ParamExpr:
		if e.Type == field.TypeBool {
			return sql.P(sql.NewBinding(e.Source, sql.KindBooleanConstant, e.Type)), nil
		}
	case rel.ColumnExpr:
		if s.typeOf(e.Index) == field.TypeBool {
			x, err := s.column(e.Index)
			if err != nil {
				return nil, err
			}
			return sql.EQ(x, sql.Lit(true)), nil
		}
	case rel.ConstExpr:
		if v, ok := e.Value.(bool); ok {
			if v {
				return sql.Raw{SQL: "1 = 1"}, nil
			}
			return sql.Raw{SQL: "1 = 0"}, nil
		}
	}
	return c.expr(s, e)
}

package sql

// C returns a reference to a column of the given table alias.
func C(table, name string) ColumnRef { return ColumnRef{Table: table, Name: name} }

// P returns a placeholder expression for the binding.
func P(b *Binding) Param { return Param{Binding: b} }

// Lit returns a literal expression.
func Lit(v any) Literal { return Literal{Value: v} }

// EQ returns a predicate that checks if x equals y.
func EQ(x, y Expr) Expr { return Binary{Op: OpEQ, L: x, R: y} }

// NEQ returns a predicate that checks if x does not equal y.
func NEQ(x, y Expr) Expr { return Binary{Op: OpNEQ, L: x, R: y} }

// GT returns a predicate that checks if x is greater than y.
func GT(x, y Expr) Expr { return Binary{Op: OpGT, L: x, R: y} }

// GTE returns a predicate that checks if x is greater than or equal to y.
func GTE(x, y Expr) Expr { return Binary{Op: OpGTE, L: x, R: y} }

// LT returns a predicate that checks if x is less than y.
func LT(x, y Expr) Expr { return Binary{Op: OpLT, L: x, R: y} }

// LTE returns a predicate that checks if x is less than or equal to y.
func LTE(x, y Expr) Expr { return Binary{Op: OpLTE, L: x, R: y} }

// Like returns a predicate that checks if x matches the pattern.
func Like(x, pattern Expr) Expr { return Binary{Op: OpLike, L: x, R: pattern} }

// In returns a predicate that checks if x is one of the given values.
// An empty list is always false.
func In(x Expr, values ...Expr) Expr {
	if len(values) == 0 {
		return Raw{SQL: "1 = 0"}
	}
	return Binary{Op: OpIn, L: x, R: List{Items: values}}
}

// IsNull returns a predicate that checks if x is NULL.
func IsNull(x Expr) Expr { return Unary{Op: OpIsNull, X: x} }

// NotNull returns a predicate that checks if x is not NULL.
func NotNull(x Expr) Expr { return Unary{Op: OpNotNull, X: x} }

// Not negates the predicate.
func Not(x Expr) Expr { return Unary{Op: OpNot, X: x} }

// And conjoins the predicates. Nil predicates are skipped.
func And(preds ...Expr) Expr { return fold(OpAnd, preds) }

// Or disjoins the predicates. Nil predicates are skipped.
func Or(preds ...Expr) Expr { return fold(OpOr, preds) }

func fold(op Op, preds []Expr) Expr {
	var e Expr
	for _, p := range preds {
		switch {
		case p == nil:
		case e == nil:
			e = p
		default:
			e = Binary{Op: op, L: e, R: p}
		}
	}
	return e
}

// Add returns x + y.
func Add(x, y Expr) Expr { return Binary{Op: OpAdd, L: x, R: y} }

// Sub returns x - y.
func Sub(x, y Expr) Expr { return Binary{Op: OpSub, L: x, R: y} }

// Count returns COUNT(x), or COUNT(*) if x is nil.
func Count(x Expr) Func {
	if x == nil {
		return Func{Name: "COUNT", Star: true}
	}
	return Func{Name: "COUNT", Args: []Expr{x}}
}

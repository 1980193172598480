package sql

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/syssam/relcomp/schema/field"
)

// ValueSource is a deferred value accessor. It is invoked by the execution
// layer right before a statement runs, once per execution, so that one
// compiled statement can be executed many times with fresh values.
type ValueSource interface {
	Current(context.Context) (any, error)
}

// SourceFunc adapts a function to the ValueSource interface.
type SourceFunc func(context.Context) (any, error)

// Current implements ValueSource.
func (f SourceFunc) Current(ctx context.Context) (any, error) { return f(ctx) }

// constant is a ValueSource that always returns the same value.
type constant struct{ v any }

func (c constant) Current(context.Context) (any, error) { return c.v, nil }

// Value returns a ValueSource for a fixed value.
func Value(v any) ValueSource { return constant{v: v} }

// SumSource returns a ValueSource evaluating to a+b.
func SumSource(a, b ValueSource) ValueSource {
	return &composite{op: "+", a: a, b: b, fn: func(x, y int64) int64 { return x + y }}
}

// DiffSource returns a ValueSource evaluating to a-b, clamped at zero.
func DiffSource(a, b ValueSource) ValueSource {
	return &composite{op: "-", a: a, b: b, fn: func(x, y int64) int64 { return max(x-y, 0) }}
}

// MinSource returns a ValueSource evaluating to min(a, b).
func MinSource(a, b ValueSource) ValueSource {
	return &composite{op: "min", a: a, b: b, fn: func(x, y int64) int64 { return min(x, y) }}
}

// composite combines two integer sources. It is used when consecutive
// paging operators are folded into one select.
type composite struct {
	op   string
	a, b ValueSource
	fn   func(x, y int64) int64
}

func (c *composite) Current(ctx context.Context) (any, error) {
	x, err := intValue(ctx, c.a)
	if err != nil {
		return nil, err
	}
	y, err := intValue(ctx, c.b)
	if err != nil {
		return nil, err
	}
	return c.fn(x, y), nil
}

// String describes the composition, e.g. "min(?, ?)".
func (c *composite) String() string {
	if c.op == "min" {
		return "min(?, ?)"
	}
	return "? " + c.op + " ?"
}

func intValue(ctx context.Context, src ValueSource) (int64, error) {
	v, err := src.Current(ctx)
	if err != nil {
		return 0, err
	}
	n, err := ToInt64(v)
	if err != nil {
		return 0, err
	}
	return max(n, 0), nil
}

// ErrNilValue is returned when an integer value is required but nil was given.
var ErrNilValue = errors.New("relcomp: nil value where an integer is required")

// ToInt64 converts an integer value of any Go integer kind to int64.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, ErrNilValue
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case []byte:
		return ToInt64(string(n))
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("relcomp: invalid integer %q: %w", n, err)
		}
		return i, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return math.MaxInt64, nil
		}
		return int64(u), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return 0, ErrNilValue
		}
		return ToInt64(rv.Elem().Interface())
	default:
		return 0, fmt.Errorf("relcomp: unexpected type %T for an integer value", v)
	}
}

// BindingKind determines how a placeholder is rendered at bind time.
type BindingKind uint8

// Binding kinds.
const (
	// KindRegular is a plain placeholder.
	KindRegular BindingKind = iota
	// KindSmartNull renders "x IS NULL" instead of "x = ?" when the
	// value is nil at bind time.
	KindSmartNull
	// KindBooleanConstant renders a boolean parameter used as a predicate
	// as "1 = 1" or "1 = 0" for backends without boolean parameters.
	KindBooleanConstant
	// KindLimitOffset is a row count. Negative values are clamped to zero
	// and the value may be rendered inline.
	KindLimitOffset
	// KindLargeObject is a value the execution layer streams instead of
	// binding it inline.
	KindLargeObject
)

var kindNames = [...]string{
	KindRegular:         "regular",
	KindSmartNull:       "smart_null",
	KindBooleanConstant: "boolean_constant",
	KindLimitOffset:     "limit_offset",
	KindLargeObject:     "large_object",
}

// String implements fmt.Stringer.
func (k BindingKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Binding pairs a placeholder with its deferred value accessor. A binding
// is identified by its pointer and is never mutated after creation.
type Binding struct {
	Source ValueSource
	Kind   BindingKind
	Type   field.Type
}

// NewBinding returns a new binding.
func NewBinding(src ValueSource, kind BindingKind, typ field.Type) *Binding {
	return &Binding{Source: src, Kind: kind, Type: typ}
}

// Eval invokes the accessor of the binding.
func (b *Binding) Eval(ctx context.Context) (any, error) {
	if b.Source == nil {
		return nil, fmt.Errorf("relcomp: %s binding without a value source", b.Kind)
	}
	v, err := b.Source.Current(ctx)
	if err != nil {
		return nil, err
	}
	switch b.Kind {
	case KindLimitOffset:
		n, err := ToInt64(v)
		if err != nil {
			return nil, err
		}
		return max(n, 0), nil
	case KindBooleanConstant:
		switch v := v.(type) {
		case bool:
			return v, nil
		case *bool:
			return v != nil && *v, nil
		case nil:
			return false, nil
		default:
			return nil, fmt.Errorf("relcomp: unexpected type %T for a boolean constant", v)
		}
	}
	return v, nil
}

// String returns the kind and type of the binding.
func (b *Binding) String() string {
	return b.Kind.String() + ":" + b.Type.ConstName()
}

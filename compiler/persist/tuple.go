package persist

import (
	"context"
	"errors"
	"fmt"
)

// Tuple holds the field values of an entity, indexed by field offset.
type Tuple []any

type tupleKey struct{}

// WithTuple returns a context carrying the entity values read by the
// bindings of compiled statements.
func WithTuple(ctx context.Context, t Tuple) context.Context {
	return context.WithValue(ctx, tupleKey{}, t)
}

// TupleFrom returns the tuple stored in ctx.
func TupleFrom(ctx context.Context) (Tuple, bool) {
	t, ok := ctx.Value(tupleKey{}).(Tuple)
	return t, ok
}

// ErrNoTuple is returned when a statement is rendered without a tuple.
var ErrNoTuple = errors.New("relcomp: no tuple in context")

// FieldSource reads a field of the tuple in the context. It implements
// sql.ValueSource.
type FieldSource struct {
	Offset int
}

// Current implements sql.ValueSource.
func (s FieldSource) Current(ctx context.Context) (any, error) {
	t, ok := TupleFrom(ctx)
	if !ok {
		return nil, ErrNoTuple
	}
	if s.Offset < 0 || s.Offset >= len(t) {
		return nil, fmt.Errorf("relcomp: field offset %d out of range of tuple with %d values", s.Offset, len(t))
	}
	return t[s.Offset], nil
}

// String returns the offset, e.g. "$2".
func (s FieldSource) String() string {
	return fmt.Sprintf("$%d", s.Offset)
}

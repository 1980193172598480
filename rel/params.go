package rel

import (
	"context"
	"fmt"
	"maps"

	"github.com/syssam/relcomp/schema/field"
)

// Parameter is a named value supplied when a compiled query runs. It is a
// sql.ValueSource reading its value from the context, so one compiled
// query can be executed many times with fresh values.
//
//	limit := rel.NewParameter("limit", field.TypeInt)
//	node := rel.NewTake(people, limit)
//	ctx = rel.WithParams(ctx, rel.Params{limit: 10})
type Parameter struct {
	Name string
	Type field.Type
}

// NewParameter returns a new parameter. Parameters are identified by
// pointer, so two parameters with the same name are distinct.
func NewParameter(name string, typ field.Type) *Parameter {
	return &Parameter{Name: name, Type: typ}
}

// Params maps parameters to their values.
type Params map[*Parameter]any

type paramsKey struct{}

// WithParams returns a context carrying the parameter values. Values
// already present in ctx are kept unless overridden.
func WithParams(ctx context.Context, params Params) context.Context {
	if prev, ok := ctx.Value(paramsKey{}).(Params); ok {
		merged := maps.Clone(prev)
		maps.Copy(merged, params)
		params = merged
	}
	return context.WithValue(ctx, paramsKey{}, params)
}

// ParamsFrom returns the parameter values carried by ctx.
func ParamsFrom(ctx context.Context) Params {
	params, _ := ctx.Value(paramsKey{}).(Params)
	return params
}

// Current implements sql.ValueSource.
func (p *Parameter) Current(ctx context.Context) (any, error) {
	v, ok := ParamsFrom(ctx)[p]
	if !ok {
		return nil, fmt.Errorf("relcomp: missing value for parameter %q", p.Name)
	}
	return v, nil
}

// String returns the parameter name prefixed with a colon.
func (p *Parameter) String() string { return ":" + p.Name }

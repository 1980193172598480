package sql

import (
	"context"
	"testing"

	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/schema/field"
)

func benchSelect() *Select {
	age := NewBinding(Value(30), KindRegular, field.TypeInt)
	limit := NewBinding(Value(10), KindLimitOffset, field.TypeInt64)
	inner := &Select{
		Columns: []Column{{Expr: C("t0", "id")}, {Expr: C("t0", "name")}, {Expr: C("t0", "age")}},
		From:    TableRef{Name: "people", Alias: "t0"},
		Where:   And(GT(C("t0", "age"), P(age)), NotNull(C("t0", "name"))),
	}
	return &Select{
		Columns: []Column{{Expr: C("t1", "id")}, {Expr: C("t1", "name")}},
		From:    Subquery{Select: inner, Alias: "t1"},
		OrderBy: []Order{{Expr: C("t1", "name")}},
		Limit:   P(limit),
	}
}

func BenchmarkRender(b *testing.B) {
	s := benchSelect()
	caps := dialect.PostgresCapabilities()
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, _ = Render(ctx, caps, s)
	}
}

func BenchmarkTemplate(b *testing.B) {
	s := benchSelect()
	caps := dialect.SQLServerCapabilities()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Template(caps, s)
	}
}

func BenchmarkClone(b *testing.B) {
	s := benchSelect()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = s.Clone()
	}
}

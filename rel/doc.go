// Package rel defines relational plans: trees of immutable operator nodes
// whose headers are computed at construction.
//
//	people := rel.NewIndex(peopleTable)              // (id, name, age)
//	adults := rel.NewFilter(people, rel.Gt(rel.Col(2), rel.Param(minAge, field.TypeInt)))
//	byName := rel.NewSort(adults, rel.OrderItem{Index: 1})
//	first := rel.NewTake(byName, limit)
//
// Expressions reference input columns by position. Values supplied at
// execution time are sql.ValueSource implementations; Parameter reads its
// value from the context set up with WithParams.
package rel

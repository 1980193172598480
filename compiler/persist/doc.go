// Package persist compiles persist tasks (insert, update or remove of one
// entity of a mapped type) into INSERT, UPDATE and DELETE statements.
//
// Statements bind entity values through FieldSource, which reads the tuple
// stored in the context by WithTuple. A compiled task therefore holds no
// entity data and is shared by every task with the same key.
package persist

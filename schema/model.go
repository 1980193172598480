package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/relcomp/schema/field"
)

// Op is the kind of a persist operation.
type Op uint8

// Persist operations.
const (
	OpInsert Op = iota + 1
	OpUpdate
	OpRemove
)

var opNames = [...]string{
	OpInsert: "insert",
	OpUpdate: "update",
	OpRemove: "remove",
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if o > 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Valid reports if o is a known operation.
func (o Op) Valid() bool {
	return o >= OpInsert && o <= OpRemove
}

// Inheritance is the storage strategy of a type hierarchy.
type Inheritance uint8

// Inheritance strategies.
const (
	// InheritNone stores the type in a single table of its own.
	InheritNone Inheritance = iota
	// InheritClassTable stores each level of the hierarchy in its own
	// table, all sharing the primary key of the root table.
	InheritClassTable
	// InheritSingleTable stores the whole hierarchy in one table and
	// tells types apart with a discriminator column.
	InheritSingleTable
)

var inheritanceNames = [...]string{
	InheritNone:        "none",
	InheritClassTable:  "class_table",
	InheritSingleTable: "single_table",
}

// String implements fmt.Stringer.
func (i Inheritance) String() string {
	if int(i) < len(inheritanceNames) {
		return inheritanceNames[i]
	}
	return "inheritance(" + strconv.Itoa(int(i)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (i Inheritance) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Inheritance) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if s == "" {
		*i = InheritNone
		return nil
	}
	for v, name := range inheritanceNames {
		if name == s {
			*i = Inheritance(v)
			return nil
		}
	}
	return fmt.Errorf("schema: unknown inheritance %q", text)
}

// Field is a persistent attribute of a type. Offset is the position of
// the field value in the tuples handed to persist statements.
type Field struct {
	Name   string
	Type   field.Type
	Offset int
}

// Column is a column of a mapped table.
type Column struct {
	Name string
	Type field.Type
	// Size is the declared maximum size of string and bytes columns.
	// Zero means unbounded.
	Size int
	// Field is the offset of the field stored in the column,
	// or -1 if the column is not mapped.
	Field    int
	Nullable bool
}

// Mapped reports if the column stores a field.
func (c Column) Mapped() bool { return c.Field >= 0 }

// Table is a physical table storing (part of) a type.
type Table struct {
	Schema  string
	Name    string
	Columns []Column
	// Key holds the positions of the primary key columns.
	Key []int
}

// Column returns the position of the named column.
func (t *Table) Column(name string) (int, bool) {
	i := slices.IndexFunc(t.Columns, func(c Column) bool { return c.Name == name })
	return i, i >= 0
}

// IsKey reports if the i-th column is part of the primary key.
func (t *Table) IsKey(i int) bool {
	return slices.Contains(t.Key, i)
}

// KeyColumns returns the primary key columns in key order.
func (t *Table) KeyColumns() []Column {
	cols := make([]Column, 0, len(t.Key))
	for _, i := range t.Key {
		if i >= 0 && i < len(t.Columns) {
			cols = append(cols, t.Columns[i])
		}
	}
	return cols
}

// String returns the qualified table name.
func (t *Table) String() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// Discriminator identifies the rows of a type in a shared table.
type Discriminator struct {
	Column string
	Value  any
}

// Type is a persistent type and its mapping to tables.
type Type struct {
	// ID is the identity of the type. It is derived from the name, so
	// two mappings of the same type name share one identity.
	ID     uuid.UUID
	Name   string
	Fields []Field
	// Tables are ordered from the root of the hierarchy to the leaf.
	Tables        []*Table
	Inheritance   Inheritance
	Discriminator *Discriminator
}

// Namespace is the UUID namespace of type identities.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/syssam/relcomp/schema"))

// Option configures a Type.
type Option func(*Type)

// WithFields sets the fields of the type.
func WithFields(fields ...Field) Option {
	return func(t *Type) {
		t.Fields = append(t.Fields, fields...)
	}
}

// WithTables sets the tables of the type, ordered from root to leaf.
func WithTables(tables ...*Table) Option {
	return func(t *Type) {
		t.Tables = append(t.Tables, tables...)
	}
}

// WithInheritance sets the inheritance strategy.
func WithInheritance(i Inheritance) Option {
	return func(t *Type) {
		t.Inheritance = i
	}
}

// WithDiscriminator sets the discriminator column and the value
// identifying the rows of the type.
func WithDiscriminator(column string, value any) Option {
	return func(t *Type) {
		t.Discriminator = &Discriminator{Column: column, Value: value}
	}
}

// NewType returns a new type with a deterministic identity.
func NewType(name string, opts ...Option) *Type {
	t := &Type{
		ID:   uuid.NewSHA1(Namespace, []byte(name)),
		Name: name,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Field returns the field stored at the given offset.
func (t *Type) Field(offset int) (Field, bool) {
	i := slices.IndexFunc(t.Fields, func(f Field) bool { return f.Offset == offset })
	if i < 0 {
		return Field{}, false
	}
	return t.Fields[i], true
}

// FieldByName returns the named field.
func (t *Type) FieldByName(name string) (Field, bool) {
	i := slices.IndexFunc(t.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return t.Fields[i], true
}

// AffectedTables returns the tables touched by the operation in execution
// order. Inserts run from the root to the leaf so that every row can
// reference its parent; removes run in the opposite direction.
func (t *Type) AffectedTables(op Op) []*Table {
	tables := slices.Clone(t.Tables)
	if op == OpRemove {
		slices.Reverse(tables)
	}
	return tables
}

// Discriminates reports if the i-th column of the table is the
// discriminator column of the type.
func (t *Type) Discriminates(table *Table, i int) bool {
	return t.Discriminator != nil && table.Columns[i].Name == t.Discriminator.Column
}

// String returns the type name.
func (t *Type) String() string { return t.Name }

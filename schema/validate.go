package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a mapping validation error.
type ValidationError struct {
	Type    string
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Type)
	if e.Table != "" {
		sb.WriteString("(" + e.Table)
		if e.Column != "" {
			sb.WriteString("." + e.Column)
		}
		sb.WriteString(")")
	}
	sb.WriteString(": " + e.Message)
	return sb.String()
}

// ValidationResult holds the results of mapping validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the validation errors as a single error, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("schema: invalid mapping: %s", strings.Join(msgs, "; "))
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) errorf(t *Type, table *Table, column, format string, args ...any) {
	r.Errors = append(r.Errors, newValidationError(t, table, column, fmt.Sprintf(format, args...)))
}

func (r *ValidationResult) warnf(t *Type, table *Table, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, newValidationError(t, table, column, fmt.Sprintf(format, args...)))
}

func newValidationError(t *Type, table *Table, column, msg string) *ValidationError {
	e := &ValidationError{Type: t.Name, Column: column, Message: msg}
	if table != nil {
		e.Table = table.String()
	}
	return e
}

// Validate checks that the types can be compiled into persist statements.
// It returns errors for mappings the builder cannot handle and warnings
// for fields that are never written.
//
// Example:
//
//	if result := schema.Validate(person, employee); result.HasErrors() {
//	    log.Fatal("invalid mapping:\n", result)
//	}
func Validate(types ...*Type) *ValidationResult {
	result := &ValidationResult{}
	names := make(map[string]bool, len(types))
	for _, t := range types {
		if names[t.Name] {
			result.errorf(t, nil, "", "duplicate type name")
		}
		names[t.Name] = true
		validateType(result, t)
	}
	return result
}

func validateType(r *ValidationResult, t *Type) {
	offsets := make(map[int]string, len(t.Fields))
	for _, f := range t.Fields {
		switch prev, ok := offsets[f.Offset]; {
		case f.Offset < 0:
			r.errorf(t, nil, "", "field %q has negative offset %d", f.Name, f.Offset)
		case ok:
			r.errorf(t, nil, "", "fields %q and %q share offset %d", prev, f.Name, f.Offset)
		default:
			offsets[f.Offset] = f.Name
		}
		if !f.Type.Valid() {
			r.errorf(t, nil, "", "field %q has invalid type", f.Name)
		}
	}
	if len(t.Tables) == 0 {
		r.errorf(t, nil, "", "type is not mapped to any table")
		return
	}
	switch {
	case t.Inheritance == InheritSingleTable && len(t.Tables) > 1:
		r.errorf(t, nil, "", "single table inheritance maps to %d tables", len(t.Tables))
	case t.Inheritance == InheritNone && len(t.Tables) > 1:
		r.errorf(t, nil, "", "type without inheritance maps to %d tables", len(t.Tables))
	case t.Inheritance == InheritSingleTable && t.Discriminator == nil:
		r.errorf(t, nil, "", "single table inheritance requires a discriminator")
	}
	mapped := make(map[int]bool, len(t.Fields))
	for _, table := range t.Tables {
		validateTable(r, t, table, offsets, mapped)
	}
	if d := t.Discriminator; d != nil && !discriminated(t) {
		r.errorf(t, nil, d.Column, "discriminator column not found in any table")
	}
	root := t.Tables[0]
	for _, table := range t.Tables[1:] {
		if !sameKeyShape(root, table) {
			r.errorf(t, table, "", "primary key does not match the key of %q", root.String())
		}
	}
	for _, f := range t.Fields {
		if !mapped[f.Offset] {
			r.warnf(t, nil, "", "field %q is not stored in any column", f.Name)
		}
	}
}

func validateTable(r *ValidationResult, t *Type, table *Table, offsets map[int]string, mapped map[int]bool) {
	if table.Name == "" {
		r.errorf(t, table, "", "table without a name")
	}
	if len(table.Key) == 0 {
		r.errorf(t, table, "", "table has no primary key")
	}
	for _, k := range table.Key {
		if k < 0 || k >= len(table.Columns) {
			r.errorf(t, table, "", "primary key references column %d of %d", k, len(table.Columns))
			continue
		}
		if !table.Columns[k].Mapped() {
			r.errorf(t, table, table.Columns[k].Name, "primary key column is not mapped to a field")
		}
	}
	names := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		if names[c.Name] {
			r.errorf(t, table, c.Name, "duplicate column")
		}
		names[c.Name] = true
		if !c.Mapped() {
			continue
		}
		if _, ok := offsets[c.Field]; !ok {
			r.errorf(t, table, c.Name, "column maps unknown field offset %d", c.Field)
			continue
		}
		mapped[c.Field] = true
	}
}

func discriminated(t *Type) bool {
	for _, table := range t.Tables {
		if _, ok := table.Column(t.Discriminator.Column); ok {
			return true
		}
	}
	return false
}

// sameKeyShape reports if two tables have primary keys of the same
// arity, types and field mapping.
func sameKeyShape(a, b *Table) bool {
	ka, kb := a.KeyColumns(), b.KeyColumns()
	if len(ka) != len(kb) || len(ka) != len(a.Key) || len(kb) != len(b.Key) {
		return false
	}
	for i := range ka {
		if ka[i].Type != kb[i].Type || ka[i].Field != kb[i].Field {
			return false
		}
	}
	return true
}

// Package field defines the semantic column types shared by operator
// headers and persistence mappings.
//
// Types have a Go name (String) used in diagnostics and a configuration
// name (ConstName) used in YAML mapping and capability files:
//
//	t, err := field.ParseType("int64")
//	t.Integer() // true
//	t.String()  // "int64"
package field

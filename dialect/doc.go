// Package dialect describes the database backends relcomp compiles for.
//
// A backend is described by an immutable Capabilities value: the flag set
// the compilers consult to choose between native and emulated constructs
// (paging, sequences, batches, parameter style, large objects).
//
// # Presets
//
//	dialect.PostgresCapabilities()     // LIMIT/OFFSET, $1 parameters, sequences, batches
//	dialect.MySQLCapabilities()        // LIMIT/OFFSET, ? parameters, OFFSET needs LIMIT
//	dialect.SQLiteCapabilities()       // LIMIT/OFFSET, ? parameters, OFFSET needs LIMIT
//	dialect.SQLServerCapabilities()    // OFFSET ... FETCH, @p1 parameters
//	dialect.SQLServer2008Capabilities() // ROW_NUMBER() paging, no sequences
//
// # Configuration
//
// Capabilities can be loaded from YAML, starting from a preset:
//
//	dialect: sqlserver
//	overrides:
//	  paging: row_number
//	  inline_limit_offset: true
//
//	caps, err := dialect.LoadConfig(f)
//
// # Driver Interface
//
// Driver, Tx and ExecQuerier are the execution boundary used by the
// dialect/sql/sqlgraph helpers to run compiled statements.
package dialect

package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/relcomp/schema/field"
)

// PagingStyle describes how a backend restricts the number of returned rows.
type PagingStyle uint8

// Paging styles.
const (
	// PagingLimitOffset renders LIMIT n OFFSET m.
	PagingLimitOffset PagingStyle = iota
	// PagingOffsetFetch renders OFFSET m ROWS FETCH NEXT n ROWS ONLY.
	PagingOffsetFetch
	// PagingRowNumber emulates paging with a ROW_NUMBER() column
	// and an outer filtering select.
	PagingRowNumber
)

var pagingNames = [...]string{
	PagingLimitOffset: "limit_offset",
	PagingOffsetFetch: "offset_fetch",
	PagingRowNumber:   "row_number",
}

// String implements fmt.Stringer.
func (p PagingStyle) String() string {
	if int(p) < len(pagingNames) {
		return pagingNames[p]
	}
	return "paging(" + strconv.Itoa(int(p)) + ")"
}

// Native reports if the style is expressed directly on the select.
func (p PagingStyle) Native() bool {
	return p == PagingLimitOffset || p == PagingOffsetFetch
}

// ParsePagingStyle parses the configuration name of a paging style.
func ParsePagingStyle(s string) (PagingStyle, error) {
	for i, name := range pagingNames {
		if strings.EqualFold(name, s) {
			return PagingStyle(i), nil
		}
	}
	return 0, fmt.Errorf("unknown paging style %q", s)
}

// ParamStyle describes the placeholder syntax of a backend.
type ParamStyle uint8

// Parameter styles.
const (
	ParamQuestion ParamStyle = iota // ?
	ParamDollar                     // $1
	ParamAt                         // @p1
	ParamColon                      // :1
)

var paramNames = [...]string{
	ParamQuestion: "question",
	ParamDollar:   "dollar",
	ParamAt:       "at",
	ParamColon:    "colon",
}

// String implements fmt.Stringer.
func (p ParamStyle) String() string {
	if int(p) < len(paramNames) {
		return paramNames[p]
	}
	return "params(" + strconv.Itoa(int(p)) + ")"
}

// ParseParamStyle parses the configuration name of a parameter style.
func ParseParamStyle(s string) (ParamStyle, error) {
	for i, name := range paramNames {
		if strings.EqualFold(name, s) {
			return ParamStyle(i), nil
		}
	}
	return 0, fmt.Errorf("unknown parameter style %q", s)
}

// Capabilities is the static flag set describing what a backend can
// express natively. A value is created once per connection configuration
// and never mutated; all methods have value receivers.
type Capabilities struct {
	// Name is the dialect name, e.g. dialect.Postgres.
	Name string
	// Paging selects native or emulated paging.
	Paging PagingStyle
	// LimitRequiredForOffset is set for backends that reject OFFSET
	// without LIMIT. MaxLimit is rendered as the limit in that case.
	LimitRequiredForOffset bool
	MaxLimit               string
	// InlineLimitOffset renders limit and offset values as literals.
	InlineLimitOffset bool
	// Params is the placeholder style.
	Params ParamStyle
	// QuoteLeft and QuoteRight delimit identifiers.
	QuoteLeft, QuoteRight string
	// BackslashEscapes is set for backends that treat a backslash inside
	// a string literal as an escape character.
	BackslashEscapes bool
	// Sequences reports native sequence support. Without it, keys are
	// generated from table-based counters.
	Sequences bool
	// Batches reports support for several DML statements per round-trip.
	Batches      bool
	MaxBatchSize int
	// BooleanParams reports if a boolean parameter may be used as a predicate.
	BooleanParams bool
	// TemporaryTables reports if materialized (stored) operators are supported.
	TemporaryTables bool
	// Returning reports RETURNING clause support.
	Returning bool
	// MaxInlineSize is the largest string/bytes size that is bound inline.
	// Larger or unbounded columns are large objects. Zero disables LOB handling.
	MaxInlineSize int
	// RealType is the SQL type integer AVG operands are cast to.
	RealType string
}

// PostgresCapabilities returns the capabilities of PostgreSQL.
func PostgresCapabilities() Capabilities {
	return Capabilities{
		Name:            Postgres,
		Paging:          PagingLimitOffset,
		Params:          ParamDollar,
		QuoteLeft:       `"`,
		QuoteRight:      `"`,
		Sequences:       true,
		Batches:         true,
		MaxBatchSize:    25,
		BooleanParams:   true,
		TemporaryTables: true,
		Returning:       true,
		RealType:        "DOUBLE PRECISION",
	}
}

// MySQLCapabilities returns the capabilities of MySQL.
func MySQLCapabilities() Capabilities {
	return Capabilities{
		Name:                   MySQL,
		Paging:                 PagingLimitOffset,
		LimitRequiredForOffset: true,
		MaxLimit:               "18446744073709551615",
		Params:                 ParamQuestion,
		QuoteLeft:              "`",
		QuoteRight:             "`",
		BackslashEscapes:       true,
		BooleanParams:          true,
		TemporaryTables:        true,
		MaxInlineSize:          65535,
		RealType:               "DOUBLE",
	}
}

// SQLiteCapabilities returns the capabilities of SQLite.
func SQLiteCapabilities() Capabilities {
	return Capabilities{
		Name:                   SQLite,
		Paging:                 PagingLimitOffset,
		LimitRequiredForOffset: true,
		MaxLimit:               "-1",
		Params:                 ParamQuestion,
		QuoteLeft:              `"`,
		QuoteRight:             `"`,
		BooleanParams:          true,
		TemporaryTables:        true,
		Returning:              true,
		RealType:               "REAL",
	}
}

// SQLServerCapabilities returns the capabilities of SQL Server 2012 and later.
func SQLServerCapabilities() Capabilities {
	return Capabilities{
		Name:            SQLServer,
		Paging:          PagingOffsetFetch,
		Params:          ParamAt,
		QuoteLeft:       "[",
		QuoteRight:      "]",
		Sequences:       true,
		Batches:         true,
		MaxBatchSize:    25,
		TemporaryTables: true,
		MaxInlineSize:   4000,
		RealType:        "FLOAT",
	}
}

// SQLServer2008Capabilities returns the capabilities of SQL Server 2008, which has
// neither native paging nor sequences.
func SQLServer2008Capabilities() Capabilities {
	c := SQLServerCapabilities()
	c.Name = SQLServer2008
	c.Paging = PagingRowNumber
	c.Sequences = false
	return c
}

// Lookup returns the preset capabilities of the named dialect.
func Lookup(name string) (Capabilities, error) {
	switch strings.ToLower(name) {
	case Postgres, "postgresql":
		return PostgresCapabilities(), nil
	case MySQL:
		return MySQLCapabilities(), nil
	case SQLite, "sqlite3":
		return SQLiteCapabilities(), nil
	case SQLServer, "mssql":
		return SQLServerCapabilities(), nil
	case SQLServer2008:
		return SQLServer2008Capabilities(), nil
	default:
		return Capabilities{}, NewConfigError("dialect", name, "unknown dialect")
	}
}

// Validate reports the first inconsistency in the flag set.
func (c Capabilities) Validate() error {
	switch {
	case c.Name == "":
		return NewConfigError("dialect", nil, "missing dialect name")
	case c.Paging > PagingRowNumber:
		return NewConfigError("paging", c.Paging, "unknown paging style")
	case c.Params > ParamColon:
		return NewConfigError("params", c.Params, "unknown parameter style")
	case c.QuoteLeft == "" || c.QuoteRight == "":
		return NewConfigError("quote", nil, "identifier quotes must be set")
	case c.Batches && c.MaxBatchSize <= 0:
		return NewConfigError("max_batch_size", c.MaxBatchSize, "batch support requires a positive batch size")
	case c.LimitRequiredForOffset && c.MaxLimit == "":
		return NewConfigError("max_limit", nil, "required when OFFSET needs a LIMIT")
	case c.MaxInlineSize < 0:
		return NewConfigError("max_inline_size", c.MaxInlineSize, "must not be negative")
	}
	return nil
}

// IsLOB reports if values of a column with the given type and size are
// large objects that must be streamed rather than bound inline.
func (c Capabilities) IsLOB(t field.Type, size int) bool {
	if c.MaxInlineSize == 0 {
		return false
	}
	if t != field.TypeBytes && !t.Textual() {
		return false
	}
	return size <= 0 || size > c.MaxInlineSize
}

// Placeholder returns the placeholder of the i-th (1-based) parameter.
func (c Capabilities) Placeholder(i int) string {
	switch c.Params {
	case ParamDollar:
		return "$" + strconv.Itoa(i)
	case ParamAt:
		return "@p" + strconv.Itoa(i)
	case ParamColon:
		return ":" + strconv.Itoa(i)
	default:
		return "?"
	}
}

// QuoteIdent quotes a single identifier.
func (c Capabilities) QuoteIdent(name string) string {
	return c.QuoteLeft + strings.ReplaceAll(name, c.QuoteRight, c.QuoteRight+c.QuoteRight) + c.QuoteRight
}

// QuoteTable quotes a table name, optionally qualified by a schema.
func (c Capabilities) QuoteTable(schema, name string) string {
	if schema == "" {
		return c.QuoteIdent(name)
	}
	return c.QuoteIdent(schema) + "." + c.QuoteIdent(name)
}

// String returns a compact description of the flag set.
func (c Capabilities) String() string {
	return fmt.Sprintf("%s(paging=%s params=%s sequences=%t batches=%t)",
		c.Name, c.Paging, c.Params, c.Sequences, c.Batches)
}

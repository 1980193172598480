package persist

import (
	"errors"
	"strings"

	"github.com/syssam/relcomp/dialect"
	"github.com/syssam/relcomp/dialect/sql"
)

// KeyGenerator produces new key values. Statements run in order; the
// last one returns the key as a single row with a single column.
type KeyGenerator struct {
	Name       string
	Statements []sql.Stmt

	caps dialect.Capabilities
}

// Template returns the statement texts, one per line.
func (g *KeyGenerator) Template() string {
	lines := make([]string, len(g.Statements))
	for i, s := range g.Statements {
		lines[i] = sql.Template(g.caps, s)
	}
	return strings.Join(lines, "\n")
}

// Capabilities returns the capabilities the generator was built for.
func (g *KeyGenerator) Capabilities() dialect.Capabilities { return g.caps }

// KeyGenerator returns the generator of the named sequence. Backends
// without sequences use a counter table of that name with an identity
// column: a row is inserted and the generated identity is read back.
func (b *Builder) KeyGenerator(name string) (*KeyGenerator, error) {
	if name == "" {
		return nil, errors.New("relcomp: key generator without a name")
	}
	g := &KeyGenerator{Name: name, caps: b.caps}
	switch {
	case b.caps.Sequences && b.caps.Name == dialect.Postgres:
		g.Statements = []sql.Stmt{&sql.Select{
			Columns: []sql.Column{{Expr: sql.Func{Name: "nextval", Args: []sql.Expr{sql.Lit(name)}}}},
		}}
	case b.caps.Sequences:
		g.Statements = []sql.Stmt{&sql.Select{
			Columns: []sql.Column{{Expr: sql.Raw{SQL: "NEXT VALUE FOR " + b.caps.QuoteIdent(name)}}},
		}}
	default:
		g.Statements = []sql.Stmt{
			&sql.Insert{Table: name},
			&sql.Select{Columns: []sql.Column{{Expr: sql.Func{Name: identityFunc(b.caps.Name)}}}},
		}
	}
	return g, nil
}

func identityFunc(name string) string {
	switch name {
	case dialect.MySQL:
		return "LAST_INSERT_ID"
	case dialect.SQLite:
		return "last_insert_rowid"
	case dialect.Postgres:
		return "lastval"
	default:
		return "SCOPE_IDENTITY"
	}
}

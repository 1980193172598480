package sql

import (
	"database/sql"
	"fmt"

	"github.com/syssam/relcomp/dialect"

	// Drivers of the supported backends.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// driverNames maps dialect names to registered database/sql driver names.
var driverNames = map[string]string{
	dialect.Postgres: "postgres",
	dialect.MySQL:    "mysql",
	dialect.SQLite:   "sqlite",
}

// Open opens a connection for the named dialect and returns a Driver.
// SQL Server dialects need a driver registered by the caller under the
// dialect name.
func Open(name, source string) (*Driver, error) {
	driverName, ok := driverNames[name]
	if !ok {
		driverName = name
	}
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: open %s: %w", name, err)
	}
	return OpenDB(name, db), nil
}

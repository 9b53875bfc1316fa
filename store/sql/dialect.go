package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Dialect maps a persistence driver name to the bun schema dialect the
// persistence client is built with.
func Dialect(driver string) (schema.Dialect, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case DriverPostgres:
		return pgdialect.New(), nil
	case DriverSQLite, "sqlite":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// OpenDatabase opens the database behind the configured driver and returns
// it alongside the matching bun dialect.
func OpenDatabase(driver string, dsn string) (*sql.DB, schema.Dialect, error) {
	dialect, err := Dialect(driver)
	if err != nil {
		return nil, nil, err
	}

	name := strings.TrimSpace(strings.ToLower(driver))
	if name == "sqlite" {
		name = DriverSQLite
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: open %s database: %w", name, err)
	}
	return db, dialect, nil
}

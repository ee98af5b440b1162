package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// unicodeLower replaces the builtin LOWER, which only folds ASCII.
const unicodeLower = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(unicodeLower, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

var sqliteDialect = dialect{
	name: "sqlite",
	migrationTable: `CREATE TABLE IF NOT EXISTS migration
("id" INTEGER PRIMARY KEY AUTOINCREMENT, "query" TEXT)`,
	migrations: sqliteMigration,
	positional: true,
	lower:      unicodeLower,
	isDuplicate: func(err error) bool {
		var sqliteErr *sqlite.Error
		return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	},
}

// NewSQLite opens or creates the database file at path. SQLite allows a
// single writer, so the pool is limited to one connection.
func NewSQLite(path string) (*SQLVideoRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	repo, err := newSQLVideoRepository(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

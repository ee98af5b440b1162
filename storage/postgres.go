package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ewintr.nl/conceptube/config"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

var postgresDialect = dialect{
	name: "postgres",
	migrationTable: `CREATE TABLE IF NOT EXISTS migration
("id" SERIAL PRIMARY KEY, "query" TEXT)`,
	migrations: pgMigration,
	lower:      "LOWER",
	isDuplicate: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
	},
}

func NewPostgres(cfg config.PostgresConfig) (*SQLVideoRepository, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	repo, err := newSQLVideoRepository(db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

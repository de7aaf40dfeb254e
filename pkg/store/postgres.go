package store

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresStore connects to PostgreSQL through the pgx driver and initializes the schema.
func NewPostgresStore(databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	s, err := newSQLStore(db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Package postgres provides a PostgreSQL-backed storage driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	"github.com/papercomputeco/lamdag/pkg/storage/sqldriver"
)

// Driver implements storage.Driver using PostgreSQL.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver connects with connStr, either a keyword string such as
// "host=localhost port=5432 user=lamdag dbname=lamdag sslmode=disable" or a
// URI like "postgres://lamdag@localhost:5432/lamdag?sslmode=disable".
func NewDriver(ctx context.Context, connStr string) (*Driver, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	drv, err := sqldriver.New(ctx, entsql.OpenDB(dialect.Postgres, db))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Driver: drv}, nil
}

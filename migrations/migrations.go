// Package migrations embeds the goose SQL migrations for the Postgres schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

func setup() error {
	goose.SetBaseFS(Migrations)
	return goose.SetDialect("pgx")
}

// Up applies every pending migration
func Up(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Down rolls back the most recent migration
func Down(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, ".")
}

// Status logs the state of every migration
func Status(ctx context.Context, db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, ".")
}

// RunWithPool opens a database/sql handle over pool for the duration of fn
func RunWithPool(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, *sql.DB) error) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := fn(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

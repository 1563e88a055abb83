// Command migrate applies or rolls back the embedded schema migrations.
//
//	migrate [-database-url URL] up|down|status
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"corncare-backend/config"
	"corncare-backend/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Read()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	dsn := flag.String("database-url", cfg.DatabaseURL, "Postgres connection string")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] up|down|status\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	commands := map[string]func(context.Context, *sql.DB) error{
		"up":     migrations.Up,
		"down":   migrations.Down,
		"status": migrations.Status,
	}
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	fn, ok := commands[command]
	if !ok {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunWithPool(ctx, pool, fn); err != nil {
		logrus.Fatalf("migrate %s: %v", command, err)
	}
	logrus.Infof("migrate %s: done", command)
}

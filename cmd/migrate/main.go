package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver registration.
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"kpwatch/migrations"
)

func main() {
	backend := flag.String("backend", envOrDefault("STATE_BACKEND", "sqlite"), "state backend: sqlite or postgres")
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/kpwatch.db"), "path to sqlite database")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "postgres connection string")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-backend sqlite|postgres] [-db path] [-dsn url] <command>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  up          Migrate to the latest version")
		fmt.Fprintln(os.Stderr, "  up-one      Migrate one version up")
		fmt.Fprintln(os.Stderr, "  down        Roll back one version")
		fmt.Fprintln(os.Stderr, "  status      Show migration status")
		fmt.Fprintln(os.Stderr, "  version     Show current version")
		fmt.Fprintln(os.Stderr, "  reset       Roll back all migrations")
		os.Exit(1)
	}

	var driver, source, dialect string
	switch *backend {
	case "sqlite":
		driver, source, dialect = "sqlite", *dbPath, migrations.DialectSQLite
	case "postgres":
		if *dsn == "" {
			log.Fatal("postgres backend needs -dsn or DATABASE_URL")
		}
		driver, source, dialect = "pgx", *dsn, migrations.DialectPostgres
	default:
		log.Fatalf("unknown backend: %s", *backend)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	dir, err := migrations.Setup(dialect)
	if err != nil {
		log.Fatalf("setup migrations: %v", err)
	}

	cmd := args[0]
	switch cmd {
	case "up":
		err = goose.Up(db, dir)
	case "up-one":
		err = goose.UpByOne(db, dir)
	case "down":
		err = goose.Down(db, dir)
	case "status":
		err = goose.Status(db, dir)
	case "version":
		err = goose.Version(db, dir)
	case "reset":
		err = goose.Reset(db, dir)
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

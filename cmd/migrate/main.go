package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"plannersuite.org/internal/config"
	"plannersuite.org/internal/migrate"
	"plannersuite.org/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := obs.NewLogger(cfg.Env, cfg.LogLevel)

	var (
		dsn            = flag.String("dsn", cfg.DatabaseDSN, "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", cfg.MigrationsDir, "Path to SQL migrations")
		seedsPath      = flag.String("seeds", cfg.SeedsDir, "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or DATABASE_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.WithError(err).Fatal("open db")
	}
	defer db.Close()

	runner := migrate.NewRunner(db, *migrationsPath, *seedsPath, log)

	switch flag.Arg(0) {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "seed":
		err = runner.Seed(ctx)
	case "status":
		var applied, pending []string
		applied, pending, err = runner.Status(ctx)
		if err == nil {
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			for _, name := range pending {
				fmt.Println("pending", name)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.WithError(err).Fatalf("migrate %s", flag.Arg(0))
	}
}

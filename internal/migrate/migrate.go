// Package migrate applies plain-SQL migration and seed files from disk.
// Bookkeeping lives in the database itself so every replica sees the same
// history.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// advisoryLockKey serializes migrators across replicas starting at once.
const advisoryLockKey = 727150

// Runner executes migrations and seeds against one database.
type Runner struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
	log           *logrus.Logger
}

// NewRunner constructs a Runner reading SQL files from the given directories.
func NewRunner(db *sql.DB, migrationsDir, seedsDir string, log *logrus.Logger) *Runner {
	return &Runner{db: db, migrationsDir: migrationsDir, seedsDir: seedsDir, log: log}
}

// Up applies every pending migration in filename order.
func (r *Runner) Up(ctx context.Context) error {
	return r.withLock(ctx, func() error {
		applied, err := r.applied(ctx, "schema_migrations")
		if err != nil {
			return err
		}
		files, err := listSQL(r.migrationsDir, ".up.sql")
		if err != nil {
			return err
		}
		for _, name := range files {
			if applied[name] {
				continue
			}
			r.log.WithField("migration", name).Info("applying migration")
			if err := r.applyFile(ctx, filepath.Join(r.migrationsDir, name)); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			if _, err := r.db.ExecContext(ctx,
				`insert into schema_migrations (name) values ($1)`, name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Down rolls back the most recently applied migration.
func (r *Runner) Down(ctx context.Context) error {
	return r.withLock(ctx, func() error {
		history, err := r.history(ctx)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			return errors.New("no migrations applied")
		}
		last := history[len(history)-1]
		down := strings.TrimSuffix(last, ".up.sql") + ".down.sql"
		r.log.WithField("migration", down).Info("rolling back migration")
		if err := r.applyFile(ctx, filepath.Join(r.migrationsDir, down)); err != nil {
			return fmt.Errorf("rollback %s: %w", last, err)
		}
		_, err = r.db.ExecContext(ctx, `delete from schema_migrations where name = $1`, last)
		return err
	})
}

// Status returns applied migrations in order, plus the pending ones.
func (r *Runner) Status(ctx context.Context) (applied, pending []string, err error) {
	if err := r.ensureTables(ctx); err != nil {
		return nil, nil, err
	}
	applied, err = r.history(ctx)
	if err != nil {
		return nil, nil, err
	}
	files, err := listSQL(r.migrationsDir, ".up.sql")
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool, len(applied))
	for _, name := range applied {
		seen[name] = true
	}
	for _, name := range files {
		if !seen[name] {
			pending = append(pending, name)
		}
	}
	return applied, pending, nil
}

// Seed applies seed files once each. Seeds are ordinary SQL and should be
// written idempotently anyway.
func (r *Runner) Seed(ctx context.Context) error {
	return r.withLock(ctx, func() error {
		applied, err := r.applied(ctx, "schema_seeds")
		if err != nil {
			return err
		}
		files, err := listSQL(r.seedsDir, ".sql")
		if err != nil {
			return err
		}
		for _, name := range files {
			if applied[name] {
				continue
			}
			r.log.WithField("seed", name).Info("applying seed")
			if err := r.applyFile(ctx, filepath.Join(r.seedsDir, name)); err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
			if _, err := r.db.ExecContext(ctx,
				`insert into schema_seeds (name) values ($1)`, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Runner) withLock(ctx context.Context, fn func() error) error {
	if err := r.ensureTables(ctx); err != nil {
		return err
	}
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `select pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return err
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, `select pg_advisory_unlock($1)`, advisoryLockKey)
	}()
	return fn()
}

func (r *Runner) ensureTables(ctx context.Context) error {
	for _, table := range []string{"schema_migrations", "schema_seeds"} {
		if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`
			create table if not exists %s (
				name text primary key,
				applied_at timestamptz not null default now()
			)`, table)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) applyFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, string(raw)); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Runner) applied(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func (r *Runner) history(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `select name from schema_migrations order by applied_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func listSQL(dir, suffix string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

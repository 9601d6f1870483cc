// Package database provides helpers for opening Postgres and applying schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	// registers the "postgres" driver
	_ "github.com/lib/pq"

	"github.com/Proton-105/trx-referral-bot/pkg/config"
)

//go:embed migrations/*.up.sql
var embedded embed.FS

// Migrations returns the schema migrations shipped with the binary.
func Migrations() (fs.FS, string) {
	return embedded, "migrations"
}

// Open connects to Postgres using the configured pool limits.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

const (
	createVersionsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	selectVersions = `SELECT version FROM schema_migrations`
	insertVersion  = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// Migrator applies *.up.sql files in lexical order and records each one in
// schema_migrations so it runs once per database.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{db: db, log: log}
}

// ApplyFS applies the pending migrations found under root in fsys.
func (m *Migrator) ApplyFS(ctx context.Context, fsys fs.FS, root string) error {
	files, err := ListMigrations(fsys, root)
	if err != nil {
		return fmt.Errorf("read migrations dir %q: %w", root, err)
	}

	log := m.log.With(slog.String("dir", root))
	if len(files) == 0 {
		log.Info("no .up.sql migrations found")
		return nil
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	var count int
	for _, name := range files {
		version := migrationVersion(name)
		if applied[version] {
			continue
		}

		ran, err := m.apply(ctx, fsys, path.Join(root, name), version)
		if err != nil {
			return err
		}
		if ran {
			log.Info("migration applied", slog.String("version", version))
			count++
		}
	}

	log.Info("migrations up to date", slog.Int("applied", count), slog.Int("total", len(files)))
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	if _, err := m.db.ExecContext(ctx, createVersionsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, selectVersions)
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// apply runs one migration and its version insert in a single transaction.
// Empty files are skipped without being recorded.
func (m *Migrator) apply(ctx context.Context, fsys fs.FS, file, version string) (bool, error) {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return false, fmt.Errorf("read migration %q: %w", file, err)
	}

	statement := strings.TrimSpace(string(data))
	if statement == "" {
		m.log.Warn("migration is empty, skipping", slog.String("file", path.Base(file)))
		return false, nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin migration %q: %w", file, err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.log.Error("rollback migration", slog.String("file", file), slog.Any("error", rbErr))
		}
	}()

	if _, err := tx.ExecContext(ctx, statement); err != nil {
		return false, fmt.Errorf("execute migration %q: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx, insertVersion, version); err != nil {
		return false, fmt.Errorf("record migration %q: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %q: %w", file, err)
	}
	return true, nil
}

// migrationVersion strips the ".up.sql" suffix: "000001_users.up.sql" becomes "000001_users".
func migrationVersion(name string) string {
	return strings.TrimSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files in root in lexical order.
func ListMigrations(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens the database at path (":memory:" is accepted) and
// brings the schema up to date.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) RunMigrations() error {
	driver, err := sqlite.WithInstance(b.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (b *SQLiteBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM storage_slots
		WHERE namespace = ? AND slot_key = ?
	`

	var value []byte
	err := b.db.QueryRowContext(ctx, query, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query slot: %w", err)
	}
	return value, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, namespace, key string, value []byte) error {
	query := `
		INSERT INTO storage_slots (namespace, slot_key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, slot_key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := b.db.ExecContext(ctx, query, namespace, key, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to upsert slot: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, namespace, key string) error {
	query := `DELETE FROM storage_slots WHERE namespace = ? AND slot_key = ?`

	if _, err := b.db.ExecContext(ctx, query, namespace, key); err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	return nil
}

// PurgeOlderThan removes slots not written since cutoff and reports how many.
func (b *SQLiteBackend) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM storage_slots WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge slots: %w", err)
	}
	return res.RowsAffected()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresKV stores keys in a Postgres table, for deployments where the
// dashboard preferences should survive the host.
type PostgresKV struct {
	db *sql.DB
}

// NewPostgresKV connects to Postgres and ensures the preferences table
// exists.
func NewPostgresKV(connStr string) (*PostgresKV, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	query := `
        CREATE TABLE IF NOT EXISTS preferences (
            key VARCHAR(100) PRIMARY KEY,
            value JSONB NOT NULL,
            updated_at TIMESTAMP DEFAULT NOW()
        )
    `
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return &PostgresKV{db: db}, nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE key = $1", key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get preference: %w", err)
	}
	return value, true, nil
}

func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	query := `
        INSERT INTO preferences (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = EXCLUDED.updated_at
    `
	if _, err := p.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *PostgresKV) Close() error {
	return p.db.Close()
}

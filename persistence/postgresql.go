// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
)

// PostgreSQL is a plain database/sql implementation of Store, for
// deployments that want to avoid the GORM layer.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_records (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func (p *PostgreSQL) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var expiresAt sql.NullTime
	err := p.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_records WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		p.db.ExecContext(ctx, `DELETE FROM kv_records WHERE key = $1`, key)
		return nil, ErrNotFound
	}
	return value, nil
}

func (p *PostgreSQL) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_records (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		key, value, expiresAt)
	return err
}

func (p *PostgreSQL) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM kv_records WHERE key = $1`, key)
	return err
}

func (p *PostgreSQL) ListByPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT key, value FROM kv_records
		WHERE key LIKE $1 AND (expires_at IS NULL OR expires_at > now())`,
		prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"finance-client/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Well-known keys for the persisted token pair.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// DB wraps a sql.DB connection holding client-side persisted state.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// :memory: databases are per-connection
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cookies (
			scope TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			expires_at INTEGER,
			PRIMARY KEY (scope, name)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// SaveTokens stores the access and refresh tokens in one transaction.
func (db *DB) SaveTokens(ctx context.Context, tokens models.TokenPair) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, kv := range [][2]string{
			{AccessTokenKey, tokens.AccessToken},
			{RefreshTokenKey, tokens.RefreshToken},
		} {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
			`, kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadTokens returns the stored token pair. A half-present pair is reported
// as empty.
func (db *DB) LoadTokens(ctx context.Context) (models.TokenPair, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT key, value FROM kv WHERE key IN (?, ?)",
		AccessTokenKey, RefreshTokenKey,
	)
	if err != nil {
		return models.TokenPair{}, err
	}
	defer rows.Close()

	var tokens models.TokenPair
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.TokenPair{}, err
		}
		switch key {
		case AccessTokenKey:
			tokens.AccessToken = value
		case RefreshTokenKey:
			tokens.RefreshToken = value
		}
	}
	if err := rows.Err(); err != nil {
		return models.TokenPair{}, err
	}

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return models.TokenPair{}, nil
	}
	return tokens, nil
}

// ClearTokens removes both tokens in one statement.
func (db *DB) ClearTokens(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM kv WHERE key IN (?, ?)",
		AccessTokenKey, RefreshTokenKey,
	)
	return err
}

// SaveCookies replaces the stored cookies for scope. A zero Expires stores a
// session cookie, kept until cleared.
func (db *DB) SaveCookies(ctx context.Context, scope string, cookies []*http.Cookie) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cookies WHERE scope = ?", scope); err != nil {
			return err
		}
		for _, c := range cookies {
			var expires sql.NullInt64
			if !c.Expires.IsZero() {
				expires = sql.NullInt64{Int64: c.Expires.Unix(), Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO cookies (scope, name, value, expires_at) VALUES (?, ?, ?, ?)",
				scope, c.Name, c.Value, expires,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadCookies returns the unexpired cookies for scope, ordered by name.
// Expired rows are deleted.
func (db *DB) LoadCookies(ctx context.Context, scope string) ([]*http.Cookie, error) {
	now := time.Now().Unix()
	if _, err := db.conn.ExecContext(ctx,
		"DELETE FROM cookies WHERE scope = ? AND expires_at IS NOT NULL AND expires_at <= ?",
		scope, now,
	); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT name, value, expires_at FROM cookies WHERE scope = ? ORDER BY name",
		scope,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		var (
			c       http.Cookie
			expires sql.NullInt64
		)
		if err := rows.Scan(&c.Name, &c.Value, &expires); err != nil {
			return nil, err
		}
		if expires.Valid {
			c.Expires = time.Unix(expires.Int64, 0)
		}
		cookies = append(cookies, &c)
	}
	return cookies, rows.Err()
}

// ClearCookies removes every stored cookie for scope.
func (db *DB) ClearCookies(ctx context.Context, scope string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM cookies WHERE scope = ?", scope)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

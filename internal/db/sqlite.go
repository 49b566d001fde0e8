package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite stores users and refresh tokens in a SQLite file, the same engine
// Cloudflare D1 runs. Timestamps are kept as unix milliseconds.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(path string) (*SQLite, error) {
	const op = "db.NewSQLite"

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// SQLite serialises writers.
	d.SetMaxOpenConns(1)

	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SQLite{db: d, now: time.Now}, nil
}

func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error) {
	const op = "db.SQLite.CreateUser"

	now := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, now, now,
	)
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return nil, fmt.Errorf("%s: user %q: %w", op, username, ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.GetUserByID(ctx, id)
}

// CreateFirstUser inserts the user only while the users table is empty. The
// check and the insert are one statement, so SQLite's write lock makes it
// atomic.
func (s *SQLite) CreateFirstUser(ctx context.Context, username, passwordHash string) (*model.User, error) {
	const op = "db.SQLite.CreateFirstUser"

	now := s.now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, created_at, updated_at)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM users)`,
		username, passwordHash, now, now,
	)
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return nil, fmt.Errorf("%s: user %q: %w", op, username, ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrUsersExist)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE username = ?`, username)
	return scanSQLiteUser(row)
}

func (s *SQLite) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE id = ?`, userID)
	return scanSQLiteUser(row)
}

func (s *SQLite) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db.SQLite.CountUsers: %w", err)
	}
	return n, nil
}

func (s *SQLite) InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		userID, tokenHash, expiresAt.UnixMilli(), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("db.SQLite.InsertRefreshToken: %w", err)
	}
	return nil
}

func (s *SQLite) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var (
		token     model.RefreshToken
		expiresAt int64
		revokedAt sql.NullInt64
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = ?
	`, tokenHash).Scan(&token.ID, &token.UserID, &token.TokenHash, &expiresAt, &revokedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db.SQLite.GetRefreshTokenByHash: %w", err)
	}

	token.ExpiresAt = time.UnixMilli(expiresAt)
	token.CreatedAt = time.UnixMilli(createdAt)
	if revokedAt.Valid {
		t := time.UnixMilli(revokedAt.Int64)
		token.RevokedAt = &t
	}
	return &token, nil
}

func (s *SQLite) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
		s.now().UnixMilli(), tokenHash,
	)
	if err != nil {
		return fmt.Errorf("db.SQLite.RevokeRefreshTokenByHash: %w", err)
	}
	return nil
}

func (s *SQLite) RevokeAllUserRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		s.now().UnixMilli(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("db.SQLite.RevokeAllUserRefreshTokens: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) RotateRefreshToken(ctx context.Context, oldTokenID int64, userID int64, newTokenHash string, newExpiresAt time.Time) error {
	const op = "db.SQLite.RotateRefreshToken"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now().UnixMilli()
	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, now, oldTokenID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: refresh token id=%d: %w", op, oldTokenID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		userID, newTokenHash, newExpiresAt.UnixMilli(), now,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return tx.Commit()
}

func scanSQLiteUser(row *sql.Row) (*model.User, error) {
	var (
		user      model.User
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = time.UnixMilli(createdAt)
	user.UpdatedAt = time.UnixMilli(updatedAt)
	return &user, nil
}

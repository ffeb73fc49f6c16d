package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookshelf/pkg/database"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	TokenVersion int
	CreatedAt    time.Time
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// CreateUserWithProfile inserts the credential row and its profile row in
// one transaction, so a user never exists without a profile.
func (r *Repo) CreateUserWithProfile(ctx context.Context, u User) error {
	return database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash)
			VALUES (?, ?, ?)
		`, u.ID, u.Email, u.PasswordHash); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		var username any
		if u.Username != "" {
			username = u.Username
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (id, username)
			VALUES (?, ?)
		`, u.ID, username); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
}

const selectUser = `
	SELECT u.id, COALESCE(p.username, ''), u.email, u.password_hash, u.token_version, u.created_at
	FROM users u
	LEFT JOIN profiles p ON p.id = u.id
`

func scanUser(row *sql.Row, op string) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	row := r.DB.QueryRowContext(ctx, selectUser+` WHERE LOWER(u.email) = ?`, email)
	return scanUser(row, "get by email")
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	row := r.DB.QueryRowContext(ctx, selectUser+` WHERE p.username = ?`, username)
	return scanUser(row, "get by username")
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.DB.QueryRowContext(ctx, selectUser+` WHERE u.id = ?`, id)
	return scanUser(row, "get by id")
}

// GetTokenVersion returns -1 for an unknown user so no token can match it.
func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = ?`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return -1, nil
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

func (r *Repo) UpdatePasswordAndBumpTokenVersion(ctx context.Context, id string, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users
		SET password_hash = ?, token_version = token_version + 1
		WHERE id = ?
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireOneRow(res, "update password")
}

func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	return requireOneRow(res, "bump token version")
}

func requireOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: user not found", op)
	}
	return nil
}

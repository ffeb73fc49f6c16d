package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookshelf/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Get(ctx context.Context, id string) (*models.Profile, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, username, full_name, avatar_url, created_at, updated_at
		FROM profiles
		WHERE id = ?
	`, id)

	var (
		p        models.Profile
		username sql.NullString
		fullName sql.NullString
		avatar   sql.NullString
	)
	if err := row.Scan(&p.ID, &username, &fullName, &avatar, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if username.Valid {
		p.Username = &username.String
	}
	if fullName.Valid {
		p.FullName = &fullName.String
	}
	if avatar.Valid {
		p.AvatarURL = &avatar.String
	}
	return &p, nil
}

// Update writes only the supplied fields. It reports false when no profile
// row has that id.
func (r *Repo) Update(ctx context.Context, id string, u models.ProfileUpdate) (bool, error) {
	var (
		set  []string
		args []any
	)
	if u.Username != nil {
		set = append(set, "username = ?")
		args = append(args, *u.Username)
	}
	if u.FullName != nil {
		set = append(set, "full_name = ?")
		args = append(args, *u.FullName)
	}
	if u.AvatarURL != nil {
		set = append(set, "avatar_url = ?")
		args = append(args, *u.AvatarURL)
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := r.DB.ExecContext(ctx, `UPDATE profiles SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update profile rows: %w", err)
	}
	return n > 0, nil
}

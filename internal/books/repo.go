package books

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookshelf/pkg/database"
	"bookshelf/pkg/models"
)

type Repo struct {
	DB database.Querier
}

type ListQuery struct {
	Q      string // keyword search in title/author
	ISBN   string // exact match; ignored when empty
	Limit  int
	Offset int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// WithTx returns a Repo bound to tx.
func (r *Repo) WithTx(tx *sql.Tx) *Repo {
	return &Repo{DB: tx}
}

const bookColumns = `id, title, author, isbn, description, cover_url, page_count, published_date, genres, created_at, updated_at`

// Columns returns the projection ScanBook expects, qualified by alias.
func Columns(alias string) string {
	cols := strings.Split(bookColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

// ScanBook reads the Columns projection into a Book. Any extra destinations
// are scanned from the columns that follow it.
func ScanBook(s scanner, extra ...any) (models.Book, error) {
	var (
		b          models.Book
		isbn       sql.NullString
		desc       sql.NullString
		cover      sql.NullString
		pages      sql.NullInt64
		published  sql.NullTime
		genresJSON sql.NullString
	)
	dest := append([]any{
		&b.ID, &b.Title, &b.Author, &isbn, &desc, &cover, &pages, &published, &genresJSON, &b.CreatedAt, &b.UpdatedAt,
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return b, err
	}

	b.ISBN = nullString(isbn)
	b.Description = nullString(desc)
	b.CoverURL = nullString(cover)
	if pages.Valid {
		n := int(pages.Int64)
		b.PageCount = &n
	}
	if published.Valid {
		t := published.Time.UTC()
		b.PublishedDate = &t
	}
	if genresJSON.Valid && genresJSON.String != "" {
		_ = json.Unmarshal([]byte(genresJSON.String), &b.Genres)
	}
	return b, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := ScanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return &b, nil
}

// FindByISBN returns the oldest book with exactly this ISBN. Books stored
// without an ISBN never match, including for an empty isbn.
func (r *Repo) FindByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE isbn = ?
		ORDER BY created_at ASC
		LIMIT 1
	`, isbn)
	b, err := ScanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by isbn: %w", err)
	}
	return &b, nil
}

func (r *Repo) Insert(ctx context.Context, nb models.NewBook) (*models.Book, error) {
	now := time.Now().UTC()
	b := models.Book{
		ID:            uuid.NewString(),
		Title:         nb.Title,
		Author:        nb.Author,
		ISBN:          nb.ISBN,
		Description:   nb.Description,
		CoverURL:      nb.CoverURL,
		PageCount:     nb.PageCount,
		PublishedDate: nb.PublishedDate,
		Genres:        nb.Genres,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var genres any
	if len(b.Genres) > 0 {
		raw, err := json.Marshal(b.Genres)
		if err != nil {
			return nil, fmt.Errorf("marshal genres: %w", err)
		}
		genres = string(raw)
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Title, b.Author, b.ISBN, b.Description, b.CoverURL, b.PageCount, b.PublishedDate, genres, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return &b, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Book, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Book, 0)
	for rows.Next() {
		b, err := ScanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// buildListSQL builds either COUNT(*) or SELECT list.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	base := `SELECT ` + bookColumns + ` FROM books`
	if countOnly {
		base = `SELECT COUNT(*) FROM books`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)")
		like := "%" + strings.ToLower(kw) + "%"
		args = append(args, like, like)
	}
	if isbn := strings.TrimSpace(q.ISBN); isbn != "" {
		where = append(where, "isbn = ?")
		args = append(args, isbn)
	}

	sqlStr := base
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY created_at ASC, title ASC LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}
	return sqlStr, args
}

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookshelf/internal/books"
	"bookshelf/pkg/database"
	"bookshelf/pkg/models"
)

// ErrNotFound is returned by writes that target a row the caller does not own.
var ErrNotFound = errors.New("user book not found")

// ErrUnknownBook is returned when an insert references a missing book.
var ErrUnknownBook = errors.New("book not found")

type Repo struct {
	DB    *sql.DB
	Books *books.Repo
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, Books: books.NewRepo(db)}
}

const userBookColumns = `ub.id, ub.user_id, ub.book_id, ub.status, ub.rating, ub.review, ub.progress, ub.start_date, ub.finish_date, ub.created_at, ub.updated_at`

type userBookScan struct {
	rating, progress sql.NullInt64
	review           sql.NullString
	start, finish    sql.NullTime
}

func (s *userBookScan) dest(ub *models.UserBook) []any {
	return []any{&ub.ID, &ub.UserID, &ub.BookID, &ub.Status, &s.rating, &s.review, &s.progress, &s.start, &s.finish, &ub.CreatedAt, &ub.UpdatedAt}
}

func (s *userBookScan) fill(ub *models.UserBook) {
	if s.rating.Valid {
		n := int(s.rating.Int64)
		ub.Rating = &n
	}
	if s.review.Valid {
		v := s.review.String
		ub.Review = &v
	}
	ub.Progress = int(s.progress.Int64)
	if s.start.Valid {
		t := s.start.Time.UTC()
		ub.StartDate = &t
	}
	if s.finish.Valid {
		t := s.finish.Time.UTC()
		ub.FinishDate = &t
	}
}

// List returns the user's shelf joined with each book, newest first. An
// empty status or models.StatusAll lists every entry.
func (r *Repo) List(ctx context.Context, userID string, status models.Status) ([]models.ShelfEntry, error) {
	query := `
		SELECT ` + books.Columns("b") + `, ` + userBookColumns + `
		FROM user_books ub
		JOIN books b ON b.id = ub.book_id
		WHERE ub.user_id = ?`
	args := []any{userID}
	if status != "" && status != models.StatusAll {
		query += ` AND ub.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY ub.created_at DESC, ub.id DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shelf: %w", err)
	}
	defer rows.Close()

	out := make([]models.ShelfEntry, 0)
	for rows.Next() {
		var (
			e  models.ShelfEntry
			sc userBookScan
		)
		b, err := books.ScanBook(rows, sc.dest(&e.UserBook)...)
		if err != nil {
			return nil, fmt.Errorf("scan shelf row: %w", err)
		}
		sc.fill(&e.UserBook)
		e.Book = b
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*models.UserBook, error) {
	return getUserBook(ctx, r.DB, id)
}

func getUserBook(ctx context.Context, q database.Querier, id string) (*models.UserBook, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userBookColumns+` FROM user_books ub WHERE ub.id = ?`, id)
	var (
		ub models.UserBook
		sc userBookScan
	)
	if err := row.Scan(sc.dest(&ub)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user book: %w", err)
	}
	sc.fill(&ub)
	return &ub, nil
}

func (r *Repo) Insert(ctx context.Context, userID, bookID string, status models.Status) (*models.UserBook, error) {
	return insertUserBook(ctx, r.DB, userID, bookID, status)
}

func insertUserBook(ctx context.Context, q database.Querier, userID, bookID string, status models.Status) (*models.UserBook, error) {
	var exists int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, bookID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check book: %w", err)
	}
	if exists == 0 {
		return nil, ErrUnknownBook
	}

	if status == "" {
		status = models.StatusWantToRead
	}
	now := time.Now().UTC()
	ub := models.UserBook{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO user_books (id, user_id, book_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ub.ID, ub.UserID, ub.BookID, ub.Status, ub.CreatedAt, ub.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert user book: %w", err)
	}
	return &ub, nil
}

// Update writes the supplied fields to a row owned by userID and returns the
// stored result.
func (r *Repo) Update(ctx context.Context, userID, id string, u models.UserBookUpdate) (*models.UserBook, error) {
	var (
		set  []string
		args []any
	)
	if u.Status != nil {
		set = append(set, "status = ?")
		args = append(args, *u.Status)
	}
	if u.Rating != nil {
		set = append(set, "rating = ?")
		args = append(args, *u.Rating)
	}
	if u.Review != nil {
		set = append(set, "review = ?")
		args = append(args, *u.Review)
	}
	if u.Progress != nil {
		set = append(set, "progress = ?")
		args = append(args, *u.Progress)
	}
	if u.StartDate != nil {
		set = append(set, "start_date = ?")
		args = append(args, u.StartDate.UTC())
	}
	if u.FinishDate != nil {
		set = append(set, "finish_date = ?")
		args = append(args, u.FinishDate.UTC())
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), id, userID)

	var out *models.UserBook
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE user_books SET `+strings.Join(set, ", ")+` WHERE id = ? AND user_id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update user book: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		out, err = getUserBook(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ingest resolves the book by ISBN, creating it from nb when absent, and
// shelves it for userID as want_to_read. Both writes commit together.
func (r *Repo) Ingest(ctx context.Context, userID, isbn string, nb models.NewBook) (*models.UserBook, error) {
	var out *models.UserBook
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		br := r.Books.WithTx(tx)
		book, err := br.FindByISBN(ctx, isbn)
		if err != nil {
			return err
		}
		if book == nil {
			if book, err = br.Insert(ctx, nb); err != nil {
				return err
			}
		}
		out, err = insertUserBook(ctx, tx, userID, book.ID, models.StatusWantToRead)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

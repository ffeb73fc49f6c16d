package httpclient

import (
	"context"
	"net/http"
	"net/url"

	"bookshelf/internal/backend"
	"bookshelf/pkg/models"
)

func (c *Client) GetProfile(ctx context.Context, req backend.GetProfileRequest) (*models.Profile, error) {
	var p models.Profile
	err := c.doJSON(ctx, "get profile", http.MethodGet, "/rest/profiles/"+url.PathEscape(req.ID), nil, &p)
	if isStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req backend.UpdateProfileRequest) error {
	return c.doJSON(ctx, "update profile", http.MethodPatch, "/rest/profiles/"+url.PathEscape(req.ID), req.Fields, nil)
}

type bookList struct {
	Total int           `json:"total"`
	Items []models.Book `json:"items"`
}

func (c *Client) FindBookByISBN(ctx context.Context, req backend.FindBookByISBNRequest) (*models.Book, error) {
	q := url.Values{}
	q.Set("isbn", req.ISBN)
	q.Set("limit", "1")
	var resp bookList
	if err := c.doJSON(ctx, "find book", http.MethodGet, "/rest/books?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return &resp.Items[0], nil
}

func (c *Client) InsertBook(ctx context.Context, req backend.InsertBookRequest) (*models.Book, error) {
	var b models.Book
	if err := c.doJSON(ctx, "insert book", http.MethodPost, "/rest/books", req.Book, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

type shelfList struct {
	Items []models.ShelfEntry `json:"items"`
}

func (c *Client) ListShelf(ctx context.Context, req backend.ListShelfRequest) ([]models.ShelfEntry, error) {
	path := "/rest/user_books"
	if req.Status != "" && req.Status != models.StatusAll {
		path += "?status=" + url.QueryEscape(string(req.Status))
	}
	var resp shelfList
	if err := c.doJSON(ctx, "list shelf", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		resp.Items = []models.ShelfEntry{}
	}
	return resp.Items, nil
}

type insertUserBookBody struct {
	UserID string        `json:"user_id"`
	BookID string        `json:"book_id"`
	Status models.Status `json:"status"`
}

func (c *Client) InsertUserBook(ctx context.Context, req backend.InsertUserBookRequest) (*models.UserBook, error) {
	var ub models.UserBook
	body := insertUserBookBody{UserID: req.UserID, BookID: req.BookID, Status: req.Status}
	if err := c.doJSON(ctx, "insert user book", http.MethodPost, "/rest/user_books", body, &ub); err != nil {
		return nil, err
	}
	return &ub, nil
}

func (c *Client) UpdateUserBook(ctx context.Context, req backend.UpdateUserBookRequest) error {
	return c.doJSON(ctx, "update user book", http.MethodPatch, "/rest/user_books/"+url.PathEscape(req.ID), req.Fields, nil)
}

func (c *Client) IngestToShelf(ctx context.Context, req backend.IngestRequest) (*models.UserBook, error) {
	var ub models.UserBook
	if err := c.doJSON(ctx, "ingest", http.MethodPost, "/rest/user_books/ingest", req, &ub); err != nil {
		return nil, err
	}
	return &ub, nil
}

var (
	_ backend.Client        = (*Client)(nil)
	_ backend.ShelfIngester = (*Client)(nil)
)

package books

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bookshelf/pkg/models"
)

type Handler struct {
	Repo *Repo
	log  *zap.Logger
}

func NewHandler(repo *Repo, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Repo: repo, log: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)        // GET /rest/books
	rg.GET("/:id", h.getByID) // GET /rest/books/:id
	rg.POST("", h.create)     // POST /rest/books
}

func (h *Handler) list(c *gin.Context) {
	// ?isbn= is an exact lookup, even when empty
	if isbn, ok := c.GetQuery("isbn"); ok {
		h.findByISBN(c, strings.TrimSpace(isbn))
		return
	}

	q := ListQuery{
		Q:      c.Query("q"),
		ISBN:   c.Query("isbn"),
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		h.log.Error("count books failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		h.log.Error("list books failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) findByISBN(c *gin.Context, isbn string) {
	items := make([]models.Book, 0, 1)
	b, err := h.Repo.FindByISBN(c.Request.Context(), isbn)
	if err != nil {
		h.log.Error("find book by isbn failed", zap.String("isbn", isbn), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if b != nil {
		items = append(items, *b)
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  len(items),
		"limit":  1,
		"offset": 0,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	b, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if b == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) create(c *gin.Context) {
	var nb models.NewBook
	if err := c.ShouldBindJSON(&nb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if msg := Validate(&nb); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	b, err := h.Repo.Insert(c.Request.Context(), nb)
	if err != nil {
		h.log.Error("insert book failed", zap.String("title", nb.Title), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert failed"})
		return
	}
	c.JSON(http.StatusCreated, b)
}

// Validate trims a new book in place and returns a client-facing message for
// the first problem found, or "".
func Validate(nb *models.NewBook) string {
	nb.Title = strings.TrimSpace(nb.Title)
	nb.Author = strings.TrimSpace(nb.Author)
	if nb.Title == "" {
		return "title required"
	}
	if nb.Author == "" {
		nb.Author = "Unknown"
	}
	if nb.ISBN != nil && strings.TrimSpace(*nb.ISBN) == "" {
		nb.ISBN = nil
	}
	if nb.PageCount != nil && *nb.PageCount < 0 {
		return "page_count must be >= 0"
	}
	return ""
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

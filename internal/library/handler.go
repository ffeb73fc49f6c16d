package library

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bookshelf/internal/auth"
	"bookshelf/internal/books"
	"bookshelf/internal/sync"
	"bookshelf/pkg/models"
)

type Handler struct {
	Repo   *Repo
	Events sync.Publisher
	log    *zap.Logger
}

func NewHandler(repo *Repo, events sync.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Repo: repo, Events: events, log: logger}
}

// RegisterRoutes expects rg to sit behind auth.AuthMiddleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/user_books", h.list)
	rg.POST("/user_books", h.insert)
	rg.POST("/user_books/ingest", h.ingest)
	rg.PATCH("/user_books/:id", h.update)
}

func (h *Handler) publish(typ string, ub *models.UserBook) {
	if h.Events == nil || ub == nil {
		return
	}
	ev := sync.NewShelfEvent(typ, *ub)
	go func() {
		if err := h.Events.Publish(context.Background(), ev); err != nil {
			h.log.Warn("publish shelf event failed", zap.String("type", typ), zap.Error(err))
		}
	}()
}

func (h *Handler) list(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	status := models.StatusAll
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		status = models.ParseStatus(s)
		if status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
	}

	items, err := h.Repo.List(c.Request.Context(), claims.UserID, status)
	if err != nil {
		h.log.Error("list shelf failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total": len(items),
		"items": items,
	})
}

type insertReq struct {
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
	Status string `json:"status"`
}

func (h *Handler) insert(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	var req insertReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID != "" && req.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "user_id must match the caller"})
		return
	}
	bookID := strings.TrimSpace(req.BookID)
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book_id required"})
		return
	}
	status := models.StatusWantToRead
	if req.Status != "" {
		status = models.ParseStatus(req.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": statusMessage})
			return
		}
	}

	ub, err := h.Repo.Insert(c.Request.Context(), claims.UserID, bookID, status)
	if errors.Is(err, ErrUnknownBook) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "book_id does not exist"})
		return
	}
	if err != nil {
		h.log.Error("insert user book failed", zap.String("book_id", bookID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	h.publish(sync.EventShelfInsert, ub)
	c.JSON(http.StatusCreated, ub)
}

const statusMessage = "status must be one of: want_to_read, reading, read, dnf"

// ValidateUpdate returns a client-facing message for the first invalid field,
// or "".
func ValidateUpdate(u models.UserBookUpdate) string {
	if u.Empty() {
		return "no fields to update"
	}
	if u.Status != nil && !u.Status.Valid() {
		return statusMessage
	}
	if u.Progress != nil && (*u.Progress < 0 || *u.Progress > 100) {
		return "progress must be between 0 and 100"
	}
	if u.Rating != nil && (*u.Rating < 1 || *u.Rating > 5) {
		return "rating must be between 1 and 5"
	}
	return ""
}

func (h *Handler) update(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	var req models.UserBookUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if msg := ValidateUpdate(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	id := c.Param("id")
	ub, err := h.Repo.Update(c.Request.Context(), claims.UserID, id, req)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		h.log.Error("update user book failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	h.publish(sync.EventShelfUpdate, ub)
	c.JSON(http.StatusOK, ub)
}

type ingestReq struct {
	UserID string         `json:"user_id"`
	ISBN   string         `json:"isbn"`
	Book   models.NewBook `json:"book"`
}

func (h *Handler) ingest(c *gin.Context) {
	claims := auth.MustGetClaims(c)

	var req ingestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID != "" && req.UserID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "user_id must match the caller"})
		return
	}
	if msg := books.Validate(&req.Book); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ub, err := h.Repo.Ingest(c.Request.Context(), claims.UserID, strings.TrimSpace(req.ISBN), req.Book)
	if err != nil {
		h.log.Error("ingest failed", zap.String("isbn", req.ISBN), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}

	h.publish(sync.EventShelfInsert, ub)
	c.JSON(http.StatusCreated, ub)
}

package profiles

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"bookshelf/internal/auth"
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

// RegisterRoutes expects rg to sit behind auth.AuthMiddleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/profiles/:id", h.get)
	rg.PATCH("/profiles/:id", h.update)
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.Repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Error("get profile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) update(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	id := c.Param("id")
	if claims == nil || claims.UserID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "can only update own profile"})
		return
	}

	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if len(name) < 3 || len(name) > 30 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username must be 3-30 chars"})
			return
		}
		req.Username = &name
	}

	ok, err := h.Repo.Update(c.Request.Context(), id, req)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
			return
		}
		h.log.Error("update profile failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bookshelf/pkg/models"
)

// Handler serves catalog search in the upstream response shape, so a Client
// pointed at the api-server works the same as one pointed at Open Library.
type Handler struct {
	Search Searcher
	log    *zap.Logger
}

func NewHandler(s Searcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Search: s, log: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search.json", h.search) // GET /catalog/search.json
	rg.GET("/search", h.search)
}

func (h *Handler) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	limit := DefaultLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	docs, err := h.Search.Search(c.Request.Context(), q, limit)
	if err != nil {
		h.log.Warn("catalog search failed", zap.String("q", q), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to search books"})
		return
	}
	if docs == nil {
		docs = []models.SearchDoc{}
	}
	c.JSON(http.StatusOK, gin.H{
		"numFound": len(docs),
		"docs":     docs,
	})
}

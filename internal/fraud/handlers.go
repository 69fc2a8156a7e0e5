package fraud

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler exposes the fraud assessment audit trail to admins.
type Handler struct {
	store Store
}

// NewHandler creates a new fraud handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterAdminRoutes sets up admin-only fraud routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/fraud/assessments", h.ListRecent)
	r.GET("/fraud/referrers/:id/assessments", h.ListByReferrer)
}

// ListRecent handles GET /v1/admin/fraud/assessments
func (h *Handler) ListRecent(c *gin.Context) {
	list, err := h.store.ListRecent(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessments": list,
		"count":       len(list),
	})
}

// ListByReferrer handles GET /v1/admin/fraud/referrers/:id/assessments
func (h *Handler) ListByReferrer(c *gin.Context) {
	list, err := h.store.ListByReferrer(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assessments": list,
		"count":       len(list),
	})
}

func queryLimit(c *gin.Context) int {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	return limit
}

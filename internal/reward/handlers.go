package reward

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/perkloop/perkloop/internal/realtime"
)

// Handler provides HTTP endpoints for reward operations.
type Handler struct {
	service *Service
	hub     *realtime.Hub // nil disables event streaming
}

// NewHandler creates a new reward handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// WithHub enables event streaming of review outcomes.
func (h *Handler) WithHub(hub *realtime.Hub) *Handler {
	h.hub = hub
	return h
}

// RegisterRoutes sets up public (read-only) reward routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rewards/:id", h.GetReward)
	r.GET("/referrers/:id/rewards", h.ListByReferrer)
}

// RegisterAdminRoutes sets up admin-only reward routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/rewards/pending", h.ListPending)
	r.POST("/rewards/:id/approve", h.ApproveReward)
	r.POST("/rewards/:id/reject", h.RejectReward)
}

// GetReward handles GET /v1/rewards/:id
func (h *Handler) GetReward(c *gin.Context) {
	r, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reward": r})
}

// ListByReferrer handles GET /v1/referrers/:id/rewards
func (h *Handler) ListByReferrer(c *gin.Context) {
	list, err := h.service.ListByReferrer(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rewards": list,
		"count":   len(list),
	})
}

// ListPending handles GET /v1/admin/rewards/pending
func (h *Handler) ListPending(c *gin.Context) {
	list, err := h.service.Pending(c.Request.Context(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rewards": list,
		"count":   len(list),
	})
}

// ApproveReward handles POST /v1/admin/rewards/:id/approve
func (h *Handler) ApproveReward(c *gin.Context) {
	var body struct {
		ReviewedBy string `json:"reviewedBy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "ReviewedBy is required",
		})
		return
	}

	r, err := h.service.Approve(c.Request.Context(), c.Param("id"), body.ReviewedBy)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.broadcastReview(r)
	c.JSON(http.StatusOK, gin.H{"reward": r})
}

// RejectReward handles POST /v1/admin/rewards/:id/reject
func (h *Handler) RejectReward(c *gin.Context) {
	var body struct {
		ReviewedBy string `json:"reviewedBy" binding:"required"`
		Note       string `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "ReviewedBy is required",
		})
		return
	}

	r, err := h.service.Reject(c.Request.Context(), c.Param("id"), body.ReviewedBy, body.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.broadcastReview(r)
	c.JSON(http.StatusOK, gin.H{"reward": r})
}

func (h *Handler) broadcastReview(r *Reward) {
	if h.hub != nil {
		h.hub.Broadcast(realtime.EventRewardReviewed, r)
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrRewardNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No reward found with this ID",
		})
	case errors.Is(err, ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_reviewed",
			"message": "This reward has already been reviewed",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
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

package referral

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/perkloop/perkloop/internal/idgen"
)

// Handler provides HTTP endpoints for referrer management.
type Handler struct {
	store    Store
	resolver *Resolver
}

// NewHandler creates a new referral handler.
func NewHandler(store Store, resolver *Resolver) *Handler {
	return &Handler{store: store, resolver: resolver}
}

// RegisterRoutes sets up public referral routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/referrers", h.CreateReferrer)
	r.GET("/referrers/:id", h.GetReferrer)
	r.GET("/referral-codes/:code", h.ResolveCode)
}

// RegisterAdminRoutes sets up admin-only referral routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/referrers/:id/verify", h.SetVerified)
}

// CreateReferrerRequest is the body for POST /v1/referrers.
type CreateReferrerRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateReferrer handles POST /v1/referrers
func (h *Handler) CreateReferrer(c *gin.Context) {
	var req CreateReferrerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Name is required",
		})
		return
	}

	ctx := c.Request.Context()
	code, err := h.resolver.NewCode(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	ref := &Referrer{
		ID:        idgen.WithPrefix("ref_"),
		Code:      code,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: time.Now(),
	}
	if err := h.store.Create(ctx, ref); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"referrer":     ref,
		"display_code": ref.DisplayCode(),
	})
}

// GetReferrer handles GET /v1/referrers/:id
func (h *Handler) GetReferrer(c *gin.Context) {
	ref, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrReferrerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No referrer found with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"referrer": ref})
}

// ResolveCode handles GET /v1/referral-codes/:code
//
// Distinguishes malformed codes (400) from well-formed unknown codes (404);
// both are normal outcomes, not server failures.
func (h *Handler) ResolveCode(c *gin.Context) {
	ref, err := h.resolver.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeMalformed):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "malformed_code",
				"message": "Referral codes are 8 characters, optionally hyphenated as XXXX-XXXX",
			})
		case errors.Is(err, ErrCodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "code_not_found",
				"message": "No referrer is registered under this code",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referrer":     ref,
		"display_code": ref.DisplayCode(),
	})
}

// SetVerified handles POST /v1/admin/referrers/:id/verify
func (h *Handler) SetVerified(c *gin.Context) {
	var body struct {
		Verified *bool `json:"verified" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Verified is required",
		})
		return
	}

	id := c.Param("id")
	if err := h.store.SetVerified(c.Request.Context(), id, *body.Verified); err != nil {
		if errors.Is(err, ErrReferrerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No referrer found with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	ref, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"referrer": ref})
}

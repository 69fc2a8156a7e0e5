package purchase

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/perkloop/perkloop/internal/fraud"
	"github.com/perkloop/perkloop/internal/payments"
)

// Handler provides HTTP endpoints for purchase operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new purchase handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public purchase routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/purchases", h.SubmitPurchase)
	r.GET("/purchases/:id", h.GetPurchase)
	r.GET("/referrers/:id/purchases", h.ListByReferrer)
}

// SubmitPurchase handles POST /v1/purchases
func (h *Handler) SubmitPurchase(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Amount and referralCode are required",
		})
		return
	}

	// Fall back to the connection's address when the caller did not forward
	// an origin IP.
	if req.OriginIP == "" {
		req.OriginIP = c.ClientIP()
	}

	p, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"purchase": p})
}

// GetPurchase handles GET /v1/purchases/:id
func (h *Handler) GetPurchase(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No purchase found with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchase": p})
}

// ListByReferrer handles GET /v1/referrers/:id/purchases
func (h *Handler) ListByReferrer(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	list, err := h.service.ListByReferrer(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purchases": list,
		"count":     len(list),
	})
}

// writeSubmitError maps pipeline outcomes to HTTP responses. Rejections are
// business outcomes with structured bodies; everything else is 5xx.
func (h *Handler) writeSubmitError(c *gin.Context, err error) {
	var rej *fraud.RejectionError
	if errors.As(err, &rej) {
		switch rej.Reason {
		case fraud.ReasonInvalidReferralCode:
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "invalid_referral_code",
				"message": "The referral code is not valid",
			})
		case fraud.ReasonFraudSuspected:
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "fraud_suspected",
				"message": "The purchase was refused by fraud validation",
				"score":   rej.Score,
				"flags":   rej.Flags,
			})
		default: // ReasonCheckUnavailable
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "fraud_check_unavailable",
				"message": "Fraud validation is temporarily unavailable, try again later",
			})
		}
		return
	}

	if errors.Is(err, payments.ErrPaymentNotSettled) || errors.Is(err, payments.ErrAmountMismatch) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "payment_not_verified",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": err.Error(),
	})
}

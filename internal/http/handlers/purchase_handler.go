// Purchase HTTP handlers.
//
// This file exposes the entitlement purchase endpoints:
//   - POST /purchase/full          (unlock the full profile, one-time bonus)
//   - POST /purchase/compat_pack   (credit a pack of compatibility credits)
//
// Plus the pack-purchase alias that newer clients call with an explicit pack
// size and idempotency request id. Payment processing happens outside this
// service; these endpoints record the already-settled entitlement.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/http/middleware"
	"github.com/reino-app/bestias-backend/internal/services"
)

// PackPurchaseRequest is the pack purchase payload. PackSize must be one of
// the sold sizes; RequestID makes retries safe.
type PackPurchaseRequest struct {
	PackSize  int    `json:"packSize" binding:"required"`
	RequestID string `json:"requestId"`
}

// PurchaseFull marks the full profile as paid for the caller and awards the
// one-time credit bonus. Replaying the call changes nothing.
func (h *Handlers) PurchaseFull(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	u, err := h.userSvc.PurchaseFull(c.Request.Context(), user)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "purchase failed")
		return
	}
	ok(c, http.StatusOK, u)
}

// PurchaseCompatPack credits the default pack of three. Kept for clients
// that predate explicit pack sizes; no request id, so retries credit again.
func (h *Handlers) PurchaseCompatPack(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	u, err := h.userSvc.PurchaseCompatPack(c.Request.Context(), user, 3, "")
	if err != nil {
		failPurchase(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// PurchaseCompatPackSized credits a pack of the requested size, idempotent
// on the request id, and returns the refreshed balance.
func (h *Handlers) PurchaseCompatPackSized(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	var req PackPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "packSize is required")
		return
	}

	u, err := h.userSvc.PurchaseCompatPack(c.Request.Context(), user, req.PackSize, req.RequestID)
	if err != nil {
		failPurchase(c, err)
		return
	}
	ok(c, http.StatusOK, meResponse(u))
}

func failPurchase(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPackSize):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unsupported pack size")
	case errors.Is(err, services.ErrRequestIDUsed):
		fail(c, http.StatusConflict, ErrCodeConflict, "request id already used")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "purchase failed")
	}
}

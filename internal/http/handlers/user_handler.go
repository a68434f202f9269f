// User account HTTP handlers.
//
// This file exposes the authenticated account surface:
//   - GET  /users/me       (credit balance and entitlements)
//   - GET  /users/lookup   (find a user by email or telegram handle)
//
// Plus the body-based lookup alias kept for older mobile clients.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/domain"
	"github.com/reino-app/bestias-backend/internal/http/middleware"
	"github.com/reino-app/bestias-backend/internal/services"
)

//
// DTOs
//

// MeResponse reports the caller's balance and entitlements. The duplicated
// credit/full fields exist because two generations of clients read different
// names; both are kept in sync.
type MeResponse struct {
	Credits       int    `json:"credits"`
	CompatCredits int    `json:"compatCredits"`
	HasFull       bool   `json:"hasFull"`
	FullUnlocked  bool   `json:"fullUnlocked"`
	UserID        uint   `json:"userId"`
	Lang          string `json:"lang"`
}

// LookupResponse is the public projection of a found user.
type LookupResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// LookupRequest is the body-based lookup alias payload. Q wins; email and
// telegram are older client spellings.
type LookupRequest struct {
	Q        string `json:"q"`
	Email    string `json:"email"`
	Telegram string `json:"telegram"`
}

func meResponse(u *domain.User) MeResponse {
	return MeResponse{
		Credits:       u.CompatCredits,
		CompatCredits: u.CompatCredits,
		HasFull:       u.HasFull,
		FullUnlocked:  u.HasFull,
		UserID:        u.ID,
		Lang:          u.Lang,
	}
}

//
// Handlers
//

// Me returns the authenticated caller's balance and entitlements.
func (h *Handlers) Me(c *gin.Context) {
	user, _ := middleware.UserFrom(c)
	ok(c, http.StatusOK, meResponse(user))
}

// Lookup finds a user by the q query parameter (email or telegram handle).
func (h *Handlers) Lookup(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	h.lookup(c, q)
}

// LookupPost is the body-based alias of Lookup.
func (h *Handlers) LookupPost(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	q := strings.TrimSpace(req.Q)
	if q == "" {
		q = strings.TrimSpace(req.Email)
	}
	if q == "" {
		q = strings.TrimSpace(req.Telegram)
	}
	h.lookup(c, q)
}

func (h *Handlers) lookup(c *gin.Context, q string) {
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	u, err := h.userSvc.Lookup(c.Request.Context(), q)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "lookup failed")
		return
	}
	ok(c, http.StatusOK, LookupResponse{ID: u.ID, Name: u.Name, Lang: u.Lang})
}

// Compatibility HTTP handlers.
//
// This file exposes the paid compatibility surface:
//   - POST /compatibility/check          (report against a registered user)
//   - POST /compatibility/invite         (hold a credit for an absent contact)
//   - POST /compatibility/accept_invite  (complete an invite, yield the report)
//   - GET  /compatibility/list           (ready reports, newest first)
//
// Reports are cached per user pair; only a fresh generation costs a credit,
// and replays by request id are free.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/http/middleware"
	"github.com/reino-app/bestias-backend/internal/services"
)

//
// DTOs
//

// CompatCheckRequest asks for a report against a target. Target is resolved
// by id first, then by email/telegram contact.
type CompatCheckRequest struct {
	TargetUserID uint   `json:"target_user_id"`
	Email        string `json:"email"`
	Telegram     string `json:"telegram"`
	RequestID    string `json:"requestId"`
}

// CompatInviteRequest holds a credit against a contact with no account yet.
type CompatInviteRequest struct {
	Email     string `json:"email"`
	Telegram  string `json:"telegram"`
	RequestID string `json:"requestId"`
}

// CompatAcceptInviteRequest completes an invite by its share token.
type CompatAcceptInviteRequest struct {
	Token string `json:"token" binding:"required"`
}

// CounterpartPayload is the public projection of the other report party.
type CounterpartPayload struct {
	ID       uint    `json:"id"`
	Name     string  `json:"name"`
	Email    *string `json:"email"`
	Telegram *string `json:"telegram"`
	Lang     string  `json:"lang"`
}

// CompatReportResponse is one report as seen by the requesting party.
type CompatReportResponse struct {
	ID            uint                `json:"id"`
	OtherUserID   uint                `json:"other_user_id"`
	PromptVersion string              `json:"prompt_version"`
	Status        string              `json:"status"`
	Text          string              `json:"text"`
	CreatedAt     time.Time           `json:"created_at"`
	Counterpart   *CounterpartPayload `json:"counterpart,omitempty"`
}

// CompatInviteResponse is a created or replayed invite with its share link.
type CompatInviteResponse struct {
	Token         string    `json:"token"`
	Status        string    `json:"status"`
	PromptVersion string    `json:"prompt_version"`
	CreatedAt     time.Time `json:"created_at"`
	Link          string    `json:"link"`
}

// CompatListResponse is the caller's report history. Items and History carry
// the same slice; older clients read the latter.
type CompatListResponse struct {
	Items      []CompatReportResponse `json:"items"`
	History    []CompatReportResponse `json:"history"`
	Pagination Pagination             `json:"pagination"`
}

func reportResponse(v *services.ReportView) CompatReportResponse {
	r := v.Report
	out := CompatReportResponse{
		ID:            r.ID,
		OtherUserID:   r.OtherUserID(v.ViewerID),
		PromptVersion: r.PromptVersion,
		Status:        r.Status,
		Text:          r.Text,
		CreatedAt:     r.CreatedAt,
	}
	if v.Counterpart != nil {
		out.Counterpart = &CounterpartPayload{
			ID:       v.Counterpart.ID,
			Name:     v.Counterpart.Name,
			Email:    v.Counterpart.Email,
			Telegram: v.Counterpart.Telegram,
			Lang:     v.Counterpart.Lang,
		}
	}
	return out
}

// failCompat maps compatibility service sentinels onto HTTP responses.
func failCompat(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTargetNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "target user not found")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, services.ErrSelfCompare):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot compare same user")
	case errors.Is(err, services.ErrQuizNotCompleted):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "complete test first")
	case errors.Is(err, services.ErrInviterQuizNotCompleted):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "inviter must complete test first")
	case errors.Is(err, services.ErrInsufficientCredits):
		fail(c, http.StatusPaymentRequired, ErrCodePaymentRequired, "not enough credits")
	case errors.Is(err, services.ErrTargetExists):
		fail(c, http.StatusConflict, ErrCodeConflict, "target user already exists")
	case errors.Is(err, services.ErrInviteNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "invite not found")
	case errors.Is(err, services.ErrOwnInvite):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot accept own invite")
	case errors.Is(err, services.ErrInviteUsed):
		fail(c, http.StatusConflict, ErrCodeConflict, "invite already used")
	case errors.Is(err, services.ErrReportConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, "compatibility already exists")
	case errors.Is(err, services.ErrReportMissing):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "report missing")
	case errors.Is(err, services.ErrRequestIDUsed):
		fail(c, http.StatusConflict, ErrCodeConflict, "request id already used")
	case errors.Is(err, services.ErrGenerationFailed):
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "report generation failed")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "compatibility failed")
	}
}

//
// Handlers
//

// CompatCheck returns the report between the caller and a target, generating
// and charging for it only when no cached row exists.
func (h *Handlers) CompatCheck(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	var req CompatCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target_user_id required")
		return
	}
	if req.TargetUserID == 0 && req.Email == "" && req.Telegram == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target_user_id required")
		return
	}

	contact := req.Email
	if contact == "" {
		contact = req.Telegram
	}
	v, err := h.compatSvc.Check(c.Request.Context(), user, services.CheckInput{
		TargetID:      req.TargetUserID,
		TargetContact: contact,
		RequestID:     req.RequestID,
	})
	if err != nil {
		failCompat(c, err)
		return
	}
	if v.Charged() {
		middleware.ObserveCreditSpent("check")
		middleware.ObserveReportOutcome(v.Report.Status)
	}
	ok(c, http.StatusOK, reportResponse(v))
}

// CompatInvite holds one credit against a contact that has no account yet
// and returns the shareable invite token.
func (h *Handlers) CompatInvite(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	var req CompatInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email or telegram required")
		return
	}
	contact := req.Email
	if contact == "" {
		contact = req.Telegram
	}
	if contact == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email or telegram required")
		return
	}

	res, err := h.compatSvc.Invite(c.Request.Context(), user, contact, req.RequestID)
	if err != nil {
		failCompat(c, err)
		return
	}
	if res.Created {
		middleware.ObserveCreditSpent("invite")
	}
	ok(c, http.StatusOK, CompatInviteResponse{
		Token:         res.Invite.Token,
		Status:        res.Invite.Status,
		PromptVersion: res.Invite.PromptVersion,
		CreatedAt:     res.Invite.CreatedAt,
		Link:          res.Link,
	})
}

// CompatAcceptInvite completes an invite for the caller and returns the pair
// report, generating it when the pair has none yet.
func (h *Handlers) CompatAcceptInvite(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	var req CompatAcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token required")
		return
	}

	v, err := h.compatSvc.AcceptInvite(c.Request.Context(), user, req.Token)
	if err != nil {
		failCompat(c, err)
		return
	}
	if v.Charged() {
		middleware.ObserveReportOutcome(v.Report.Status)
	}
	ok(c, http.StatusOK, reportResponse(v))
}

// CompatList returns the caller's ready reports, newest first.
func (h *Handlers) CompatList(c *gin.Context) {
	user, _ := middleware.UserFrom(c)
	page, pageSize := clampPagination(c)

	res, err := h.compatSvc.List(c.Request.Context(), user, page, pageSize)
	if err != nil {
		failCompat(c, err)
		return
	}
	items := make([]CompatReportResponse, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, reportResponse(&res.Items[i]))
	}
	ok(c, http.StatusOK, CompatListResponse{
		Items:   items,
		History: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      res.Total,
			TotalPages: totalPages(res.Total, pageSize),
		},
	})
}

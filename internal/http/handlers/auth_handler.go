// Account HTTP handlers.
//
// This file exposes registration and sign-in endpoints:
//   - POST /auth/register          (email/telegram identity)
//   - POST /auth/google            (Google ID token)
//   - POST /auth/telegram          (Telegram login widget payload)
//   - GET  /auth/telegram/start    (widget configuration)
//   - POST /auth/telegram/callback (widget callback, returns app deep link)
//   - POST /dev/seed_user          (flag-gated test accounts)
//
// Register responses carry the account plus its bearer token; the token is
// the only secret a client ever holds and is never logged.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/auth"
	"github.com/reino-app/bestias-backend/internal/domain"
	"github.com/reino-app/bestias-backend/internal/services"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for identity registration. At least one
// of email/telegram must be present; shortResult carries over an anonymous
// quiz snapshot.
type RegisterRequest struct {
	Email       string              `json:"email" example:"maria@example.com"`
	Telegram    string              `json:"telegram" example:"@maria"`
	Name        string              `json:"name" binding:"required"`
	Lang        string              `json:"lang" binding:"required,oneof=ru en es pt"`
	ShortResult *ShortResultPayload `json:"shortResult"`
}

// ShortResultPayload is an archetype snapshot attached to a registration.
type ShortResultPayload struct {
	Animal     string `json:"animal"`
	Element    string `json:"element"`
	GenderForm string `json:"genderForm"`
	Text       string `json:"text"`
}

// GoogleAuthRequest carries a Google ID token obtained by the client.
type GoogleAuthRequest struct {
	IDToken string `json:"idToken" binding:"required"`
	Name    string `json:"name"`
	Lang    string `json:"lang" binding:"omitempty,oneof=ru en es pt"`
}

// TelegramAuthRequest mirrors the Telegram login widget payload. Lang is an
// extension accepted on top of the widget fields.
type TelegramAuthRequest struct {
	auth.TelegramLogin
	Lang string `json:"lang" binding:"omitempty,oneof=ru en es pt"`
}

// RegisterResponse is the account envelope returned by all sign-in flows.
// The embedded user serializes its public fields; the token rides alongside.
type RegisterResponse struct {
	domain.User
	AuthToken string `json:"auth_token"`
}

// TelegramStartResponse points the client at the Telegram OAuth widget.
type TelegramStartResponse struct {
	AuthURL     string `json:"authUrl"`
	CallbackURL string `json:"callbackUrl"`
}

// TelegramCallbackResponse tells the web callback page where to send the user.
type TelegramCallbackResponse struct {
	RedirectTo string `json:"redirectTo"`
}

// SeedUserRequest creates a disposable account, optionally with a resolved
// archetype snapshot so compatibility flows can be exercised immediately.
type SeedUserRequest struct {
	Email      string `json:"email"`
	Telegram   string `json:"telegram"`
	Name       string `json:"name"`
	Lang       string `json:"lang" binding:"omitempty,oneof=ru en es pt"`
	HasFull    bool   `json:"hasFull"`
	Credits    int    `json:"credits"`
	Animal     string `json:"animal"`
	Element    string `json:"element"`
	GenderForm string `json:"genderForm"`
	ShortText  string `json:"short_text"`
}

// SeedUserResponse returns the created account id and its bearer token.
type SeedUserResponse struct {
	UserID uint   `json:"userId"`
	Token  string `json:"token"`
}

func registerResponse(u *domain.User) RegisterResponse {
	return RegisterResponse{User: *u, AuthToken: u.AuthToken}
}

//
// Handlers
//

// Register finds or creates the account for an email/telegram identity and
// returns it with its bearer token.
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and lang are required")
		return
	}

	in := services.RegisterInput{
		Email:    req.Email,
		Telegram: req.Telegram,
		Name:     req.Name,
		Lang:     req.Lang,
	}
	if req.ShortResult != nil {
		in.ShortResult = &services.ShortResultInput{
			Animal:     req.ShortResult.Animal,
			Element:    req.ShortResult.Element,
			GenderForm: req.ShortResult.GenderForm,
			Text:       req.ShortResult.Text,
		}
	}
	u, err := h.userSvc.Register(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIdentityRequired), errors.Is(err, services.ErrProfileRequired):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email or telegram required")
		case errors.Is(err, services.ErrInvalidLockedTriple):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid short result")
		case errors.Is(err, services.ErrAmbiguousIdentity):
			fail(c, http.StatusConflict, ErrCodeConflict, "email and telegram belong to different users")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "registration failed")
		}
		return
	}
	ok(c, http.StatusOK, registerResponse(u))
}

// LoginGoogle verifies a Google ID token and signs the account in.
func (h *Handlers) LoginGoogle(c *gin.Context) {
	var req GoogleAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "idToken is required")
		return
	}

	u, err := h.userSvc.LoginGoogle(c.Request.Context(), req.IDToken, req.Name, req.Lang)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidGoogleToken) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid google token")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "google auth failed")
		return
	}
	ok(c, http.StatusOK, registerResponse(u))
}

// LoginTelegram verifies a Telegram widget payload and signs the account in.
func (h *Handlers) LoginTelegram(c *gin.Context) {
	var req TelegramAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id, auth_date and hash are required")
		return
	}

	u, err := h.userSvc.LoginTelegram(c.Request.Context(), req.TelegramLogin, req.Lang)
	if err != nil {
		failTelegram(c, err)
		return
	}
	ok(c, http.StatusOK, registerResponse(u))
}

// TelegramStart returns the OAuth widget URL for the configured bot.
func (h *Handlers) TelegramStart(c *gin.Context) {
	w, err := h.userSvc.TelegramStart()
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "telegram auth not configured")
		return
	}
	callback := w.RedirectURI
	if callback == "" {
		callback = "/auth/telegram/callback"
	}
	ok(c, http.StatusOK, TelegramStartResponse{
		AuthURL: fmt.Sprintf("https://oauth.telegram.org/auth?bot_id=@%s&origin=%s",
			w.BotUsername, url.QueryEscape(callback)),
		CallbackURL: callback,
	})
}

// TelegramCallback completes widget sign-in and hands the browser an app
// deep link carrying the fresh token.
func (h *Handlers) TelegramCallback(c *gin.Context) {
	var req TelegramAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id, auth_date and hash are required")
		return
	}

	u, err := h.userSvc.LoginTelegram(c.Request.Context(), req.TelegramLogin, req.Lang)
	if err != nil {
		failTelegram(c, err)
		return
	}
	ok(c, http.StatusOK, TelegramCallbackResponse{RedirectTo: telegramDeepLink(u)})
}

// SeedUser creates a throwaway account. Refused unless dev seeding is on;
// the refusal reads as 404 so the endpoint stays invisible in production.
func (h *Handlers) SeedUser(c *gin.Context) {
	var req SeedUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload")
		return
	}
	if req.Email == "" && req.Telegram == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email or telegram required")
		return
	}

	u, err := h.userSvc.SeedUser(c.Request.Context(), services.SeedInput{
		Email:      req.Email,
		Telegram:   req.Telegram,
		Name:       req.Name,
		Lang:       req.Lang,
		HasFull:    req.HasFull,
		Credits:    req.Credits,
		Animal:     req.Animal,
		Element:    req.Element,
		GenderForm: req.GenderForm,
		ShortText:  req.ShortText,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSeedDisabled):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "not found")
		case errors.Is(err, services.ErrAmbiguousIdentity):
			fail(c, http.StatusConflict, ErrCodeConflict, "email and telegram belong to different users")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "seed failed")
		}
		return
	}
	ok(c, http.StatusOK, SeedUserResponse{UserID: u.ID, Token: u.AuthToken})
}

func failTelegram(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrTelegramNotConfigured):
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "telegram auth not configured")
	case errors.Is(err, auth.ErrTelegramAuthExpired):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "telegram auth expired")
	case errors.Is(err, auth.ErrTelegramBadHash):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid telegram hash")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "telegram auth failed")
	}
}

func telegramDeepLink(u *domain.User) string {
	return fmt.Sprintf("bestias://auth/telegram?token=%s&userId=%d", url.QueryEscape(u.AuthToken), u.ID)
}

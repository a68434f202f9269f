package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/auth"
	"github.com/reino-app/bestias-backend/internal/domain"
	"github.com/reino-app/bestias-backend/internal/http/middleware"
	"github.com/reino-app/bestias-backend/internal/services"
)

// Function-field fakes for the three service contracts. Unset fields return
// zero values so each test only wires the call it exercises.

type fakeAnalysis struct {
	analyzeShortFn func(ctx context.Context, in services.AnalyzeInput) (*services.Profile, error)
	shortResultFn  func(ctx context.Context, runID string) (*services.Profile, error)
	analyzeFullFn  func(ctx context.Context, runID string, user *domain.User) (*services.Profile, error)
	fullResultFn   func(ctx context.Context, runID string, user *domain.User) (*services.Profile, error)
}

func (f *fakeAnalysis) AnalyzeShort(ctx context.Context, in services.AnalyzeInput) (*services.Profile, error) {
	return f.analyzeShortFn(ctx, in)
}
func (f *fakeAnalysis) ShortResult(ctx context.Context, runID string) (*services.Profile, error) {
	return f.shortResultFn(ctx, runID)
}
func (f *fakeAnalysis) AnalyzeFull(ctx context.Context, runID string, user *domain.User) (*services.Profile, error) {
	return f.analyzeFullFn(ctx, runID, user)
}
func (f *fakeAnalysis) FullResult(ctx context.Context, runID string, user *domain.User) (*services.Profile, error) {
	return f.fullResultFn(ctx, runID, user)
}

type fakeUsers struct {
	registerFn      func(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	loginGoogleFn   func(ctx context.Context, idToken, name, lang string) (*domain.User, error)
	loginTelegramFn func(ctx context.Context, p auth.TelegramLogin, lang string) (*domain.User, error)
	telegramStartFn func() (services.TelegramWidget, error)
	lookupFn        func(ctx context.Context, q string) (*domain.User, error)
	purchaseFullFn  func(ctx context.Context, user *domain.User) (*domain.User, error)
	purchasePackFn  func(ctx context.Context, user *domain.User, size int, requestID string) (*domain.User, error)
	seedUserFn      func(ctx context.Context, in services.SeedInput) (*domain.User, error)
}

func (f *fakeUsers) Register(ctx context.Context, in services.RegisterInput) (*domain.User, error) {
	return f.registerFn(ctx, in)
}
func (f *fakeUsers) LoginGoogle(ctx context.Context, idToken, name, lang string) (*domain.User, error) {
	return f.loginGoogleFn(ctx, idToken, name, lang)
}
func (f *fakeUsers) LoginTelegram(ctx context.Context, p auth.TelegramLogin, lang string) (*domain.User, error) {
	return f.loginTelegramFn(ctx, p, lang)
}
func (f *fakeUsers) TelegramStart() (services.TelegramWidget, error) {
	return f.telegramStartFn()
}
func (f *fakeUsers) Lookup(ctx context.Context, q string) (*domain.User, error) {
	return f.lookupFn(ctx, q)
}
func (f *fakeUsers) PurchaseFull(ctx context.Context, user *domain.User) (*domain.User, error) {
	return f.purchaseFullFn(ctx, user)
}
func (f *fakeUsers) PurchaseCompatPack(ctx context.Context, user *domain.User, size int, requestID string) (*domain.User, error) {
	return f.purchasePackFn(ctx, user, size, requestID)
}
func (f *fakeUsers) SeedUser(ctx context.Context, in services.SeedInput) (*domain.User, error) {
	return f.seedUserFn(ctx, in)
}

type fakeCompat struct {
	checkFn        func(ctx context.Context, user *domain.User, in services.CheckInput) (*services.ReportView, error)
	inviteFn       func(ctx context.Context, user *domain.User, contact, requestID string) (*services.InviteResult, error)
	acceptInviteFn func(ctx context.Context, user *domain.User, token string) (*services.ReportView, error)
	listFn         func(ctx context.Context, user *domain.User, page, pageSize int) (*services.ReportPage, error)
}

func (f *fakeCompat) Check(ctx context.Context, user *domain.User, in services.CheckInput) (*services.ReportView, error) {
	return f.checkFn(ctx, user, in)
}
func (f *fakeCompat) Invite(ctx context.Context, user *domain.User, contact, requestID string) (*services.InviteResult, error) {
	return f.inviteFn(ctx, user, contact, requestID)
}
func (f *fakeCompat) AcceptInvite(ctx context.Context, user *domain.User, token string) (*services.ReportView, error) {
	return f.acceptInviteFn(ctx, user, token)
}
func (f *fakeCompat) List(ctx context.Context, user *domain.User, page, pageSize int) (*services.ReportPage, error) {
	return f.listFn(ctx, user, page, pageSize)
}

// staticResolver authenticates exactly one token, mirroring the user service
// contract without a database.
type staticResolver struct {
	token string
	user  *domain.User
}

func (r staticResolver) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if token == r.token {
		return r.user, nil
	}
	return nil, services.ErrInvalidToken
}

const testToken = "tok-test"

func testUser() *domain.User {
	email := "caller@example.com"
	return &domain.User{ID: 7, Email: &email, Name: "Caller", Lang: "en", AuthToken: testToken, CompatCredits: 2}
}

// newTestRig wires a Handlers instance into a bare engine. Routes registered
// through the returned authed group resolve testUser from the bearer token.
func newTestRig(h *Handlers, user *domain.User) (*gin.Engine, gin.IRoutes) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("", middleware.RequireAuth(staticResolver{token: testToken, user: user}))
	return r, authed
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewBuffer(b)
	} else {
		rd = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

func wantErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	wantStatus(t, w, status)
	var resp ErrorResponse
	decodeJSON(t, w, &resp)
	if resp.Code != code {
		t.Fatalf("error code = %q, want %q", resp.Code, code)
	}
}

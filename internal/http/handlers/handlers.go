// Handler wiring for the public API.
//
// Handlers are transport-thin: they validate and normalize inputs, resolve
// the authenticated user from context, delegate to application services, and
// translate service results (including sentinel errors) into HTTP responses.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/auth"
	"github.com/reino-app/bestias-backend/internal/domain"
	"github.com/reino-app/bestias-backend/internal/services"
	"github.com/reino-app/bestias-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AnalysisService defines quiz-analysis operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AnalysisService interface {
	// AnalyzeShort resolves an archetype and generates the short profile.
	AnalyzeShort(ctx context.Context, in services.AnalyzeInput) (*services.Profile, error)
	// ShortResult returns the stored short profile for a run.
	ShortResult(ctx context.Context, runID string) (*services.Profile, error)
	// AnalyzeFull generates or returns the cached full profile for a run.
	AnalyzeFull(ctx context.Context, runID string, user *domain.User) (*services.Profile, error)
	// FullResult returns the stored full profile for a run.
	FullResult(ctx context.Context, runID string, user *domain.User) (*services.Profile, error)
}

// UserService defines account lifecycle and entitlement operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type UserService interface {
	// Register creates or updates an account keyed by email/telegram.
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	// LoginGoogle verifies a Google ID token and links or creates the account.
	LoginGoogle(ctx context.Context, idToken, name, lang string) (*domain.User, error)
	// LoginTelegram verifies a Telegram login widget payload.
	LoginTelegram(ctx context.Context, p auth.TelegramLogin, lang string) (*domain.User, error)
	// TelegramStart returns the login widget configuration.
	TelegramStart() (services.TelegramWidget, error)
	// Lookup finds a user by email or telegram handle.
	Lookup(ctx context.Context, q string) (*domain.User, error)
	// PurchaseFull unlocks the full profile and awards the one-time bonus.
	PurchaseFull(ctx context.Context, user *domain.User) (*domain.User, error)
	// PurchaseCompatPack credits a pack of the given size, idempotent on requestID.
	PurchaseCompatPack(ctx context.Context, user *domain.User, size int, requestID string) (*domain.User, error)
	// SeedUser creates a throwaway account for manual testing (flag-gated).
	SeedUser(ctx context.Context, in services.SeedInput) (*domain.User, error)
}

// CompatService defines compatibility report operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CompatService interface {
	// Check returns (generating if needed) the report against a target user.
	Check(ctx context.Context, user *domain.User, in services.CheckInput) (*services.ReportView, error)
	// Invite holds a credit against a future report with an unregistered contact.
	Invite(ctx context.Context, user *domain.User, contact, requestID string) (*services.InviteResult, error)
	// AcceptInvite completes an invite for the caller and yields the pair report.
	AcceptInvite(ctx context.Context, user *domain.User, token string) (*services.ReportView, error)
	// List returns the caller's ready reports, newest first.
	List(ctx context.Context, user *domain.User, page, pageSize int) (*services.ReportPage, error)
}

// Handlers groups HTTP endpoints for analysis, accounts, purchases, and
// compatibility. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	analysisSvc AnalysisService
	userSvc     UserService
	compatSvc   CompatService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(analysisSvc AnalysisService, userSvc UserService, compatSvc CompatService) *Handlers {
	return &Handlers{analysisSvc: analysisSvc, userSvc: userSvc, compatSvc: compatSvc}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// clampPagination parses page/page_size from query parameters, applies sane
// defaults and caps, and returns the validated (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	n := int(total) / pageSize
	if int(total)%pageSize != 0 {
		n++
	}
	return n
}

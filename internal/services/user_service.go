// Package services – UserService
//
// This file implements the UserService, which owns accounts and the credit
// ledger. It registers users by contact identity (email or telegram handle),
// signs in Google and Telegram identities, resolves bearer tokens, and
// applies the two purchase operations: the one-time full unlock with its
// one-time credit bonus, and idempotent credit-pack purchases keyed by a
// client request id.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/reino-app/bestias-backend/internal/archetype"
	"github.com/reino-app/bestias-backend/internal/auth"
	"github.com/reino-app/bestias-backend/internal/domain"
	"github.com/reino-app/bestias-backend/internal/repo"
)

// Credit ledger constants: every new account starts with one compatibility
// credit, and the full unlock grants three more exactly once.
const (
	InitialCredits  = 1
	FullBonusCredit = 3
)

// PackSizes enumerates the credit packs on sale.
var PackSizes = map[int]bool{3: true, 10: true}

// UserService manages accounts, identities, and the credit ledger.
type UserService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Google verifies Google ID tokens; nil disables Google sign-in.
	Google auth.GoogleVerifier
	// Telegram verifies login-widget payloads; nil disables Telegram sign-in.
	Telegram *auth.TelegramVerifier

	// BotUsername and RedirectURI parameterize the Telegram login widget.
	BotUsername string
	RedirectURI string

	// DevSeedEnabled gates the test-data seeding endpoint.
	DevSeedEnabled bool
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// Authenticate resolves a bearer token to its user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	u, err := repo.GetUserByToken(ctx, s.DB, token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return u, nil
}

// RegisterInput carries a contact-identity registration. ShortResult, when
// present, is stored as the account's result snapshot.
type RegisterInput struct {
	Email    string
	Telegram string
	Name     string
	Lang     string

	ShortResult *ShortResultInput
}

// ShortResultInput is a client-supplied archetype snapshot accompanying a
// registration, typically carried over from an anonymous quiz run.
type ShortResultInput struct {
	Animal     string
	Element    string
	GenderForm string
	Text       string
}

// Register finds or creates the account for the supplied identity keys. When
// both keys are given and resolve to different existing accounts the call is
// rejected; a single match returns the existing account with any missing key
// attached and the supplied profile fields applied.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := NormalizeEmail(in.Email)
	telegram := NormalizeTelegram(in.Telegram)
	if email == "" && telegram == "" {
		return nil, ErrIdentityRequired
	}

	matches, err := repo.FindUsersByIdentity(ctx, s.DB, email, telegram)
	if err != nil {
		return nil, err
	}
	if len(matches) > 1 {
		return nil, ErrAmbiguousIdentity
	}
	if len(matches) == 1 {
		u := matches[0]
		changed := false
		if email != "" && u.Email == nil {
			u.Email = &email
			changed = true
		}
		if telegram != "" && u.Telegram == nil {
			u.Telegram = &telegram
			changed = true
		}
		if name := strings.TrimSpace(in.Name); name != "" && name != u.Name {
			u.Name = name
			changed = true
		}
		if lang := strings.TrimSpace(in.Lang); lang != "" {
			if norm := archetype.NormalizeLang(lang); norm != u.Lang {
				u.Lang = norm
				changed = true
			}
		}
		if changed {
			if err := repo.SaveUser(ctx, s.DB, &u); err != nil {
				return nil, err
			}
		}
		if err := upsertShortResult(ctx, s.DB, &u, in.ShortResult); err != nil {
			return nil, err
		}
		return &u, nil
	}

	name := strings.TrimSpace(in.Name)
	lang := strings.TrimSpace(in.Lang)
	if name == "" || lang == "" {
		return nil, ErrProfileRequired
	}
	u := &domain.User{
		Name:          name,
		Lang:          archetype.NormalizeLang(lang),
		AuthToken:     NewToken(),
		CompatCredits: InitialCredits,
	}
	if email != "" {
		u.Email = &email
	}
	if telegram != "" {
		u.Telegram = &telegram
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	if err := upsertShortResult(ctx, s.DB, u, in.ShortResult); err != nil {
		return nil, err
	}
	return u, nil
}

// upsertShortResult validates a client-supplied snapshot against the closed
// enumerations and stores it. A nil input is a no-op.
func upsertShortResult(ctx context.Context, db *gorm.DB, u *domain.User, in *ShortResultInput) error {
	if in == nil {
		return nil
	}
	triple, err := archetype.DefaultPolicy.Validate(archetype.Triple{
		Animal:     in.Animal,
		Element:    in.Element,
		GenderForm: in.GenderForm,
	}, u.Lang)
	if err != nil {
		return ErrInvalidLockedTriple
	}
	short := strings.TrimSpace(in.Text)
	if short == "" {
		short = archetype.AnimalDisplayName(triple.Animal, u.Lang, triple.GenderForm)
	}
	return repo.UpsertUserResult(ctx, db, &domain.UserResult{
		UserID:     u.ID,
		AnimalCode: triple.Animal,
		Element:    triple.Element,
		GenderForm: triple.GenderForm,
		ShortText:  short,
	})
}

// LoginGoogle verifies a Google ID token and finds or creates the linked
// account. A verified email matching an existing account links the Google
// subject to it instead of creating a duplicate.
func (s *UserService) LoginGoogle(ctx context.Context, idToken, name, lang string) (*domain.User, error) {
	if s.Google == nil {
		return nil, auth.ErrInvalidGoogleToken
	}
	id, err := s.Google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	if u, err := repo.FindUserByGoogleSub(ctx, s.DB, id.Sub); err == nil {
		return u, nil
	}

	email := NormalizeEmail(id.Email)
	if email != "" {
		if u, err := repo.FindUserByContact(ctx, s.DB, email); err == nil {
			u.GoogleSub = &id.Sub
			if err := repo.SaveUser(ctx, s.DB, u); err != nil {
				return nil, err
			}
			return u, nil
		}
	}

	if name = strings.TrimSpace(name); name == "" {
		name = id.Name
	}
	if name == "" {
		name = email
	}
	u := &domain.User{
		GoogleSub:     &id.Sub,
		Name:          name,
		Lang:          archetype.NormalizeLang(lang),
		AuthToken:     NewToken(),
		CompatCredits: InitialCredits,
	}
	if email != "" {
		u.Email = &email
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return u, nil
}

// LoginTelegram verifies a login-widget payload and finds or creates the
// linked account. Accounts registered by username and accounts created from
// the widget (numeric id) both resolve to the same user.
func (s *UserService) LoginTelegram(ctx context.Context, p auth.TelegramLogin, lang string) (*domain.User, error) {
	if s.Telegram == nil || s.Telegram.BotToken == "" {
		return nil, auth.ErrTelegramNotConfigured
	}
	if err := s.Telegram.Verify(p); err != nil {
		return nil, err
	}

	handles := []string{strconv.FormatInt(p.ID, 10)}
	if h := NormalizeTelegram(p.Username); h != "" {
		handles = append(handles, h)
	}
	if u, err := repo.FindUserByTelegramHandles(ctx, s.DB, handles); err == nil {
		return u, nil
	}

	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		name = p.Username
	}
	handle := NormalizeTelegram(p.Username)
	if handle == "" {
		handle = strconv.FormatInt(p.ID, 10)
	}
	u := &domain.User{
		Telegram:      &handle,
		Name:          name,
		Lang:          archetype.NormalizeLang(lang),
		AuthToken:     NewToken(),
		CompatCredits: InitialCredits,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return u, nil
}

// TelegramWidget describes the login-widget parameters for clients.
type TelegramWidget struct {
	BotUsername string `json:"bot_username"`
	RedirectURI string `json:"redirect_uri"`
}

// TelegramStart returns the widget configuration, or an error when the bot
// is not configured.
func (s *UserService) TelegramStart() (TelegramWidget, error) {
	if s.Telegram == nil || s.Telegram.BotToken == "" || s.BotUsername == "" {
		return TelegramWidget{}, auth.ErrTelegramNotConfigured
	}
	return TelegramWidget{BotUsername: s.BotUsername, RedirectURI: s.RedirectURI}, nil
}

// Lookup finds a user by email or telegram handle.
func (s *UserService) Lookup(ctx context.Context, q string) (*domain.User, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrUserNotFound
	}
	if u, err := repo.FindUserByContact(ctx, s.DB, NormalizeEmail(q)); err == nil {
		return u, nil
	}
	if h := NormalizeTelegram(q); h != "" {
		if u, err := repo.FindUserByContact(ctx, s.DB, h); err == nil {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

// Snapshot returns the latest result snapshot for a user, or nil when the
// user has not completed the quiz.
func (s *UserService) Snapshot(ctx context.Context, userID uint) (*domain.UserResult, error) {
	r, err := repo.GetUserResult(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// PurchaseFull unlocks the full profile. The +3 credit bonus is granted the
// first time only, so replaying the call is harmless.
func (s *UserService) PurchaseFull(ctx context.Context, user *domain.User) (*domain.User, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.GetUser(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		u.HasFull = true
		if !u.FullBonusAwarded {
			u.CompatCredits += FullBonusCredit
			u.FullBonusAwarded = true
		}
		if err := repo.SaveUser(ctx, tx, u); err != nil {
			return err
		}
		*user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// PurchaseCompatPack credits a pack of compatibility credits. The purchase is
// idempotent on requestID: a replay returns the balance without crediting
// again, and a request id already consumed by another user is rejected.
func (s *UserService) PurchaseCompatPack(ctx context.Context, user *domain.User, size int, requestID string) (*domain.User, error) {
	if !PackSizes[size] {
		return nil, ErrInvalidPackSize
	}
	requestID = strings.TrimSpace(requestID)

	if requestID != "" {
		if prior, err := repo.GetPackPurchase(ctx, s.DB, requestID); err == nil {
			if prior.UserID != user.ID {
				return nil, ErrRequestIDUsed
			}
			return repo.GetUser(ctx, s.DB, user.ID)
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if requestID != "" {
			err := repo.CreatePackPurchase(ctx, tx, &domain.PackPurchase{
				UserID:    user.ID,
				PackSize:  size,
				RequestID: requestID,
			})
			if err != nil {
				return err
			}
		}
		u, err := repo.GetUser(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		u.CompatCredits += size
		u.PacksBought++
		if err := repo.SaveUser(ctx, tx, u); err != nil {
			return err
		}
		*user = *u
		return nil
	})
	if err != nil {
		// A concurrent replay may have inserted the purchase row first;
		// resolve it the same way as the fast path above.
		if requestID != "" && repo.IsUniqueViolation(err) {
			if prior, perr := repo.GetPackPurchase(ctx, s.DB, requestID); perr == nil {
				if prior.UserID != user.ID {
					return nil, ErrRequestIDUsed
				}
				return repo.GetUser(ctx, s.DB, user.ID)
			}
		}
		return nil, err
	}
	return user, nil
}

// SeedInput describes a dev-seeded account with an optional result snapshot.
type SeedInput struct {
	Email      string
	Telegram   string
	Name       string
	Lang       string
	HasFull    bool
	Credits    int
	Animal     string
	Element    string
	GenderForm string
	ShortText  string
}

// SeedUser creates a throwaway account for manual testing. It is refused
// unless the deployment enables dev seeding.
func (s *UserService) SeedUser(ctx context.Context, in SeedInput) (*domain.User, error) {
	if !s.DevSeedEnabled {
		return nil, ErrSeedDisabled
	}
	matches, err := repo.FindUsersByIdentity(ctx, s.DB, NormalizeEmail(in.Email), NormalizeTelegram(in.Telegram))
	if err != nil {
		return nil, err
	}
	if len(matches) > 1 {
		return nil, ErrAmbiguousIdentity
	}
	if len(matches) == 1 {
		return &matches[0], nil
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Seed"
	}
	credits := in.Credits
	if credits < 0 {
		credits = 0
	}
	u := &domain.User{
		Name:          name,
		Lang:          archetype.NormalizeLang(in.Lang),
		AuthToken:     NewToken(),
		HasFull:       in.HasFull,
		CompatCredits: credits,
	}
	if e := NormalizeEmail(in.Email); e != "" {
		u.Email = &e
	}
	if t := NormalizeTelegram(in.Telegram); t != "" {
		u.Telegram = &t
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateUser(ctx, tx, u); err != nil {
			return err
		}
		if in.Animal == "" {
			return nil
		}
		return upsertShortResult(ctx, tx, u, &ShortResultInput{
			Animal:     in.Animal,
			Element:    in.Element,
			GenderForm: in.GenderForm,
			Text:       in.ShortText,
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// NewToken mints an opaque identifier for auth tokens, invite tokens, and
// generated run ids: a UUIDv4 without dashes.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTelegram lowercases a handle and strips the leading @.
func NormalizeTelegram(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "@")
}

// Package services – CompatService
//
// This file implements the CompatService, the credit-consuming engine behind
// pairwise compatibility reports. A report is identified by the canonically
// ordered user pair plus prompt version and language; the unique index on
// that tuple is the real serialization point for concurrent attempts, and
// the pair lookup before generation is only an optimization. Whoever loses
// the insert race rolls back (credit included) and serves the winner's row.
//
// Credits are debited with a conditional update so the balance can never go
// below zero, and only inside the same transaction that persists the ready
// report row. A failed generation charges nothing and persists nothing from
// a check; only a ready row satisfies the pair cache, so a later call for
// the same pair retries generation.
//
// Invites cover contacts without an account: the inviter's credit is held by
// the invite row and refunded on completion when the inviter has paid for
// the product (full unlock or at least one pack).
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/reino-app/bestias-backend/internal/archetype"
	"github.com/reino-app/bestias-backend/internal/domain"
	"github.com/reino-app/bestias-backend/internal/genai"
	"github.com/reino-app/bestias-backend/internal/repo"
)

// Placeholder payload values for a party that exists but has no stored
// result yet.
const (
	unknownAnimal  = "НЕИЗВЕСТНО"
	unknownElement = "неизвестно"
	unknownProfile = "(нет данных)"
	unknownEmoji   = "🦊"
)

// CompatService generates and serves compatibility reports and invites.
type CompatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// AI is the injected generation backend.
	AI genai.Analyzer

	// PromptVersion tags new reports and participates in the cache key.
	PromptVersion string
	// DeepLinkBase is the URL prefix invite links are built from.
	DeepLinkBase string
}

// NewCompatService constructs a CompatService pinned to the current prompt
// version.
func NewCompatService(db *gorm.DB, ai genai.Analyzer) *CompatService {
	return &CompatService{DB: db, AI: ai, PromptVersion: genai.CompatPromptVersion}
}

// CheckInput identifies the counterpart of a report request. Exactly one of
// TargetID and TargetContact should be set; RequestID is the optional client
// retry key.
type CheckInput struct {
	TargetID      uint
	TargetContact string
	RequestID     string
}

// ReportView is a report together with the viewer's counterpart, resolved
// for rendering.
type ReportView struct {
	Report      domain.CompatReport
	ViewerID    uint
	Counterpart *domain.User

	charged bool
}

// Charged reports whether this view was produced by a fresh, credit-costing
// generation rather than a cache hit.
func (v ReportView) Charged() bool { return v.charged }

// Check returns the report between the caller and a target user, generating
// it when no cached row exists. Exactly one credit is consumed per generated
// report; replays by request id and cache hits by pair are free.
func (s *CompatService) Check(ctx context.Context, user *domain.User, in CheckInput) (*ReportView, error) {
	tr := otel.Tracer("services/CompatService")
	ctx, span := tr.Start(ctx, "Check",
		trace.WithAttributes(attribute.Int("user.id", int(user.ID))),
	)
	defer span.End()

	requestID := strings.TrimSpace(in.RequestID)
	if requestID != "" {
		if r, err := repo.GetReportByRequestID(ctx, s.DB, requestID, user.ID); err == nil {
			return s.view(ctx, *r, user.ID, false)
		}
	}

	target, err := s.resolveTarget(ctx, in)
	if err != nil {
		return nil, err
	}
	if target.ID == user.ID {
		return nil, ErrSelfCompare
	}

	mine, err := repo.GetUserResult(ctx, s.DB, user.ID)
	if err != nil {
		return nil, ErrQuizNotCompleted
	}

	lang := archetype.NormalizeLang(user.Lang)
	key := repo.NewPairKey(user.ID, target.ID, s.PromptVersion, lang)
	cached, cacheErr := repo.GetReportByPair(ctx, s.DB, key)
	if cacheErr == nil && cached.Status == domain.ReportStatusReady {
		return s.view(ctx, *cached, user.ID, false)
	}

	if user.CompatCredits < 1 {
		return nil, ErrInsufficientCredits
	}

	payload, lineA := s.buildPayload(ctx, lang, user, mine, target)
	text, err := s.AI.CompatibilityText(ctx, genai.CompatibilitySystemPromptV3, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	text = genai.StripPromptEcho(text, lineA)

	// A non-ready row left behind by an earlier failed attempt is written
	// into; otherwise a fresh row is inserted.
	report := cached
	if report == nil {
		report = &domain.CompatReport{
			UserLowID:     key.LowID,
			UserHighID:    key.HighID,
			PromptVersion: key.PromptVersion,
			Language:      key.Language,
		}
	}
	report.Status = domain.ReportStatusReady
	report.Text = text
	if requestID != "" && report.RequestID == nil {
		report.RequestID = &requestID
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := debitCredit(ctx, tx, user.ID); err != nil {
			return err
		}
		if report.ID != 0 {
			return repo.SaveReport(ctx, tx, report)
		}
		return repo.CreateReport(ctx, tx, report)
	})
	if txErr != nil {
		if repo.IsUniqueViolation(txErr) {
			return s.recoverLostRace(ctx, user.ID, key, requestID)
		}
		return nil, txErr
	}
	user.CompatCredits--

	return s.view(ctx, *report, user.ID, true)
}

// recoverLostRace serves the row that won the unique-index race: same pair
// and language first, then any language of the pair, then the request id.
func (s *CompatService) recoverLostRace(ctx context.Context, userID uint, key repo.PairKey, requestID string) (*ReportView, error) {
	if r, err := repo.GetReportByPair(ctx, s.DB, key); err == nil {
		return s.view(ctx, *r, userID, false)
	}
	key.Language = ""
	if r, err := repo.GetReportByPair(ctx, s.DB, key); err == nil {
		return s.view(ctx, *r, userID, false)
	}
	if requestID != "" {
		if r, err := repo.GetReportByRequestID(ctx, s.DB, requestID, userID); err == nil {
			return s.view(ctx, *r, userID, false)
		}
	}
	return nil, ErrReportConflict
}

// InviteResult is a created or replayed invite plus its shareable link.
type InviteResult struct {
	Invite domain.Invite
	Link   string
	// Created is false when the invite was replayed rather than freshly held.
	Created bool
}

// Invite holds a credit against a future report with a contact that has no
// account yet. The call is idempotent on the request id; both parties' quiz
// completion is checked at accept time, not here.
func (s *CompatService) Invite(ctx context.Context, user *domain.User, contact, requestID string) (*InviteResult, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID != "" {
		if inv, err := repo.GetInviteByRequestID(ctx, s.DB, requestID, user.ID); err == nil {
			return &InviteResult{Invite: *inv, Link: s.deepLink(inv.Token)}, nil
		}
	}

	if contact = strings.TrimSpace(contact); contact != "" {
		if _, err := repo.FindUserByContact(ctx, s.DB, NormalizeEmail(contact)); err == nil {
			return nil, ErrTargetExists
		}
		if h := NormalizeTelegram(contact); h != "" {
			if _, err := repo.FindUserByContact(ctx, s.DB, h); err == nil {
				return nil, ErrTargetExists
			}
		}
	}

	if user.CompatCredits < 1 {
		return nil, ErrInsufficientCredits
	}

	inv := domain.Invite{
		Token:         NewToken(),
		InviterID:     user.ID,
		PromptVersion: s.PromptVersion,
		CreditSpent:   true,
		Status:        domain.InviteStatusSent,
	}
	if requestID != "" {
		inv.RequestID = &requestID
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := debitCredit(ctx, tx, user.ID); err != nil {
			return err
		}
		return repo.CreateInvite(ctx, tx, &inv)
	})
	if txErr != nil {
		if requestID != "" && repo.IsUniqueViolation(txErr) {
			if prior, err := repo.GetInviteByRequestID(ctx, s.DB, requestID, user.ID); err == nil {
				return &InviteResult{Invite: *prior, Link: s.deepLink(prior.Token)}, nil
			}
			return nil, ErrRequestIDUsed
		}
		return nil, txErr
	}
	user.CompatCredits--

	return &InviteResult{Invite: inv, Link: s.deepLink(inv.Token), Created: true}, nil
}

// AcceptInvite completes an invite: the invitee gets the pairwise report
// with the inviter, and the inviter's held credit is refunded when they have
// paid for the product. Re-accepting by the same invitee replays the report.
func (s *CompatService) AcceptInvite(ctx context.Context, user *domain.User, token string) (*ReportView, error) {
	tr := otel.Tracer("services/CompatService")
	ctx, span := tr.Start(ctx, "AcceptInvite",
		trace.WithAttributes(attribute.Int("user.id", int(user.ID))),
	)
	defer span.End()

	inv, err := repo.GetInviteByToken(ctx, s.DB, strings.TrimSpace(token))
	if err != nil {
		return nil, ErrInviteNotFound
	}
	if inv.InviterID == user.ID {
		return nil, ErrOwnInvite
	}
	if inv.Status == domain.InviteStatusCompleted {
		if inv.InviteeID == nil || *inv.InviteeID != user.ID {
			return nil, ErrInviteUsed
		}
		key := repo.NewPairKey(inv.InviterID, user.ID, inv.PromptVersion, "")
		r, err := repo.GetReportByPair(ctx, s.DB, key)
		if err != nil {
			return nil, ErrReportMissing
		}
		return s.view(ctx, *r, user.ID, false)
	}

	mine, err := repo.GetUserResult(ctx, s.DB, user.ID)
	if err != nil {
		return nil, ErrQuizNotCompleted
	}
	inviter, err := repo.GetUser(ctx, s.DB, inv.InviterID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	inviterRes, err := repo.GetUserResult(ctx, s.DB, inviter.ID)
	if err != nil {
		return nil, ErrInviterQuizNotCompleted
	}

	lang := archetype.NormalizeLang(inviter.Lang)
	key := repo.NewPairKey(inviter.ID, user.ID, inv.PromptVersion, lang)

	report, err := repo.GetReportByPair(ctx, s.DB, key)
	if err != nil {
		anyLang := key
		anyLang.Language = ""
		report, err = repo.GetReportByPair(ctx, s.DB, anyLang)
	}
	// Only a ready row short-circuits generation. A pending or failed row is
	// a placeholder from an earlier attempt and is written into instead.
	if err != nil || report.Status != domain.ReportStatusReady {
		payload, lineA := s.buildInvitePayload(lang, inviter, inviterRes, user, mine)
		text, gerr := s.AI.CompatibilityText(ctx, genai.CompatibilitySystemPromptV3, payload)
		if gerr != nil {
			if report != nil {
				report.Status = domain.ReportStatusFailed
				report.Text = ""
				_ = repo.SaveReport(ctx, s.DB, report)
			}
			// The invite stays open so a later accept retries generation.
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, gerr)
		}
		text = genai.StripPromptEcho(text, lineA)
		if report != nil {
			report.Status = domain.ReportStatusReady
			report.Text = text
			if serr := repo.SaveReport(ctx, s.DB, report); serr != nil {
				return nil, serr
			}
		} else {
			fresh := domain.CompatReport{
				UserLowID:     key.LowID,
				UserHighID:    key.HighID,
				PromptVersion: key.PromptVersion,
				Language:      key.Language,
				Status:        domain.ReportStatusReady,
				Text:          text,
			}
			if cerr := repo.CreateReport(ctx, s.DB, &fresh); cerr != nil {
				if !repo.IsUniqueViolation(cerr) {
					return nil, cerr
				}
				report, err = repo.GetReportByPair(ctx, s.DB, key)
				if err != nil {
					anyLang := key
					anyLang.Language = ""
					if report, err = repo.GetReportByPair(ctx, s.DB, anyLang); err != nil {
						return nil, ErrReportConflict
					}
				}
			} else {
				report = &fresh
			}
		}
	}

	// Completion and refund commit together so a crash cannot refund twice
	// or strand a completed invite with a held credit.
	inviteeID := user.ID
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv.Status = domain.InviteStatusCompleted
		inv.InviteeID = &inviteeID
		if inv.CreditSpent && !inv.CreditRefunded && (inviter.HasFull || inviter.PacksBought > 0) {
			if err := tx.Model(&domain.User{}).Where("id = ?", inviter.ID).
				UpdateColumn("compat_credits", gorm.Expr("compat_credits + 1")).Error; err != nil {
				return err
			}
			inv.CreditRefunded = true
		}
		return repo.SaveInvite(ctx, tx, inv)
	})
	if err != nil {
		return nil, err
	}

	return s.view(ctx, *report, user.ID, false)
}

// ReportPage is one page of a user's ready reports.
type ReportPage struct {
	Items []ReportView
	Total int64
}

// List returns the caller's ready reports, newest first, with counterparts
// resolved.
func (s *CompatService) List(ctx context.Context, user *domain.User, page, pageSize int) (*ReportPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountReadyReports(ctx, s.DB, user.ID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &ReportPage{Items: []ReportView{}}, nil
	}

	reports, err := repo.ListReadyReports(ctx, s.DB, user.ID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(reports))
	for i := range reports {
		ids = append(ids, reports[i].OtherUserID(user.ID))
	}
	others, err := repo.ListUsersByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	items := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		v := ReportView{Report: r, ViewerID: user.ID}
		if u, ok := others[r.OtherUserID(user.ID)]; ok {
			other := u
			v.Counterpart = &other
		}
		items = append(items, v)
	}
	return &ReportPage{Items: items, Total: total}, nil
}

// ByRequestID replays a previously created report by its request id.
func (s *CompatService) ByRequestID(ctx context.Context, user *domain.User, requestID string) (*ReportView, error) {
	r, err := repo.GetReportByRequestID(ctx, s.DB, strings.TrimSpace(requestID), user.ID)
	if err != nil {
		return nil, ErrReportMissing
	}
	return s.view(ctx, *r, user.ID, false)
}

func (s *CompatService) resolveTarget(ctx context.Context, in CheckInput) (*domain.User, error) {
	if in.TargetID != 0 {
		u, err := repo.GetUser(ctx, s.DB, in.TargetID)
		if err != nil {
			return nil, ErrTargetNotFound
		}
		return u, nil
	}
	q := strings.TrimSpace(in.TargetContact)
	if q == "" {
		return nil, ErrTargetNotFound
	}
	if u, err := repo.FindUserByContact(ctx, s.DB, NormalizeEmail(q)); err == nil {
		return u, nil
	}
	if h := NormalizeTelegram(q); h != "" {
		if u, err := repo.FindUserByContact(ctx, s.DB, h); err == nil {
			return u, nil
		}
	}
	return nil, ErrTargetNotFound
}

// buildPayload assembles both parties for the generation call. A target with
// no stored result is represented by placeholder values so the model still
// receives a well-formed payload.
func (s *CompatService) buildPayload(ctx context.Context, lang string, user *domain.User, mine *domain.UserResult, target *domain.User) (payload, lineA string) {
	a := partyFromResult(user.Name, lang, mine)
	var b genai.Party
	if theirs, err := repo.GetUserResult(ctx, s.DB, target.ID); err == nil {
		b = partyFromResult(target.Name, lang, theirs)
	} else {
		b = genai.Party{
			Name:           target.Name,
			AnimalDisplay:  unknownAnimal,
			ElementDisplay: unknownElement,
			Emoji:          unknownEmoji,
			ProfileText:    unknownProfile,
		}
	}
	return genai.BuildCompatibilityPayload(lang, a, b)
}

func (s *CompatService) buildInvitePayload(lang string, inviter *domain.User, inviterRes *domain.UserResult, invitee *domain.User, inviteeRes *domain.UserResult) (payload, lineA string) {
	a := partyFromResult(inviter.Name, lang, inviterRes)
	b := partyFromResult(invitee.Name, lang, inviteeRes)
	return genai.BuildCompatibilityPayload(lang, a, b)
}

// partyFromResult prefers the full profile text over the short one; a party
// with neither still gets an explicit placeholder.
func partyFromResult(name, lang string, r *domain.UserResult) genai.Party {
	profile := r.ShortText
	if r.FullText != nil && strings.TrimSpace(*r.FullText) != "" {
		profile = *r.FullText
	}
	if strings.TrimSpace(profile) == "" {
		profile = "NOT_PROVIDED"
	}
	return genai.Party{
		Name:           name,
		AnimalDisplay:  archetype.AnimalDisplayName(r.AnimalCode, lang, r.GenderForm),
		ElementDisplay: archetype.ElementDisplayName(r.Element, lang, true),
		Emoji:          archetype.Emoji(r.AnimalCode),
		ProfileText:    profile,
	}
}

func (s *CompatService) deepLink(token string) string {
	base := strings.TrimRight(s.DeepLinkBase, "/")
	if base == "" {
		return token
	}
	return base + "/" + token
}

func (s *CompatService) view(ctx context.Context, r domain.CompatReport, viewerID uint, charged bool) (*ReportView, error) {
	v := &ReportView{Report: r, ViewerID: viewerID}
	v.charged = charged
	otherID := r.OtherUserID(viewerID)
	if other, err := repo.GetUser(ctx, s.DB, otherID); err == nil {
		v.Counterpart = other
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return v, nil
}

// debitCredit decrements one credit with a conditional update; the WHERE
// clause is the floor guard, so a raced-out balance surfaces as
// ErrInsufficientCredits rather than a negative value.
func debitCredit(ctx context.Context, tx *gorm.DB, userID uint) error {
	res := tx.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND compat_credits > 0", userID).
		UpdateColumn("compat_credits", gorm.Expr("compat_credits - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

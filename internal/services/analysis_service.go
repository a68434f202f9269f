// Package services – AnalysisService
//
// This file implements the AnalysisService, which turns submitted quiz
// answers into archetype results. It resolves the animal/element/genderForm
// triple (either honoring a client-locked triple or asking the generation
// backend), produces the short and full profile texts, and persists run,
// answers, and result rows atomically. When the caller is authenticated the
// per-user result snapshot is refreshed in the same transaction.
//
// Generation calls run outside the database transaction: they are slow and
// retry-safe, while the transaction only records their already-known output.
package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/reino-app/bestias-backend/internal/archetype"
	"github.com/reino-app/bestias-backend/internal/domain"
	"github.com/reino-app/bestias-backend/internal/genai"
	"github.com/reino-app/bestias-backend/internal/repo"
)

// AnalysisService resolves archetypes and generates profile texts for quiz
// runs.
type AnalysisService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// AI is the injected generation backend.
	AI genai.Analyzer
}

// NewAnalysisService constructs an AnalysisService.
func NewAnalysisService(db *gorm.DB, ai genai.Analyzer) *AnalysisService {
	return &AnalysisService{DB: db, AI: ai}
}

// AnalyzeInput carries one short-analysis request. User is nil for anonymous
// runs; Locked, when set, pins the triple instead of calling the resolver.
type AnalyzeInput struct {
	RunID   string
	Name    string
	Lang    string
	Gender  string
	Answers []genai.Answer
	Locked  *archetype.Triple
	User    *domain.User
}

// Profile is a resolved archetype plus its generated text and the display
// strings handlers render from.
type Profile struct {
	RunID          string
	Triple         archetype.Triple
	Text           string
	AnimalDisplay  string
	ElementDisplay string
	Emoji          string
	ImageKey       string
}

// AnalyzeShort resolves the triple for a run, generates the short profile
// text, and stores run, answers, and result. Resubmitting a run id replaces
// its answers and result wholesale.
func (s *AnalysisService) AnalyzeShort(ctx context.Context, in AnalyzeInput) (*Profile, error) {
	tr := otel.Tracer("services/AnalysisService")
	ctx, span := tr.Start(ctx, "AnalyzeShort",
		trace.WithAttributes(attribute.String("run.id", in.RunID)),
	)
	defer span.End()

	runID := strings.TrimSpace(in.RunID)
	if runID == "" {
		runID = uuid.NewString()
	} else if _, err := uuid.Parse(runID); err != nil {
		return nil, ErrInvalidRunID
	}

	lang := archetype.NormalizeLang(in.Lang)
	gender := in.Gender
	if !archetype.IsGenderForm(gender) {
		gender = archetype.GenderUnspecified
	}
	name := strings.TrimSpace(in.Name)
	answersText := genai.BuildAnswersText(in.Answers)

	var triple archetype.Triple
	if in.Locked != nil {
		t, err := archetype.DefaultPolicy.Validate(*in.Locked, lang)
		if err != nil {
			return nil, ErrInvalidLockedTriple
		}
		triple = t
	} else {
		t, err := s.AI.ResolveArchetype(ctx, genai.BuildResolverPrompt(name, lang, gender, answersText), lang)
		if err != nil {
			return nil, err
		}
		triple = t
	}

	animalDisplay := archetype.AnimalDisplayName(triple.Animal, lang, triple.GenderForm)
	elementDisplay := archetype.ElementDisplayName(triple.Element, lang, true)

	text, err := s.AI.ShortProfile(ctx,
		genai.BuildShortPrompt(name, lang, gender, animalDisplay, elementDisplay, answersText), lang)
	if err != nil {
		return nil, err
	}

	run := &domain.Run{ID: runID, Name: name, Lang: lang, Gender: gender}
	answers := make([]domain.RunAnswer, 0, len(in.Answers))
	for _, a := range in.Answers {
		answers = append(answers, domain.RunAnswer{RunID: runID, QuestionID: a.QuestionID, Answer: a.Text})
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.EnsureRunAndAnswers(ctx, tx, run, answers); err != nil {
			return err
		}
		if err := repo.UpsertShortResult(ctx, tx, &domain.ShortResult{
			RunID:      runID,
			Animal:     triple.Animal,
			Element:    triple.Element,
			GenderForm: triple.GenderForm,
			Text:       text,
		}); err != nil {
			return err
		}
		if in.User != nil {
			return repo.UpsertUserResult(ctx, tx, &domain.UserResult{
				UserID:     in.User.ID,
				AnimalCode: triple.Animal,
				Element:    triple.Element,
				GenderForm: triple.GenderForm,
				ShortText:  text,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.profile(runID, triple, text, lang), nil
}

// ShortResult returns the stored short profile for a run.
func (s *AnalysisService) ShortResult(ctx context.Context, runID string) (*Profile, error) {
	if _, err := uuid.Parse(strings.TrimSpace(runID)); err != nil {
		return nil, ErrInvalidRunID
	}
	run, err := repo.GetRun(ctx, s.DB, runID)
	if err != nil {
		return nil, ErrRunNotFound
	}
	res, err := repo.GetShortResult(ctx, s.DB, runID)
	if err != nil {
		return nil, ErrResultNotFound
	}
	triple := archetype.Triple{Animal: res.Animal, Element: res.Element, GenderForm: res.GenderForm}
	return s.profile(runID, triple, res.Text, run.Lang), nil
}

// AnalyzeFull generates (or returns the cached) full profile for a run. The
// caller must hold the full entitlement; the per-user snapshot gets the full
// text attached when the run's triple is already recorded there.
func (s *AnalysisService) AnalyzeFull(ctx context.Context, runID string, user *domain.User) (*Profile, error) {
	tr := otel.Tracer("services/AnalysisService")
	ctx, span := tr.Start(ctx, "AnalyzeFull",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("user.id", int(user.ID)),
		),
	)
	defer span.End()

	if _, err := uuid.Parse(strings.TrimSpace(runID)); err != nil {
		return nil, ErrInvalidRunID
	}
	if !user.HasFull {
		return nil, ErrFullLocked
	}

	run, err := repo.GetRun(ctx, s.DB, runID)
	if err != nil {
		return nil, ErrRunNotFound
	}
	short, err := repo.GetShortResult(ctx, s.DB, runID)
	if err != nil {
		return nil, ErrResultNotFound
	}
	triple := archetype.Triple{Animal: short.Animal, Element: short.Element, GenderForm: short.GenderForm}

	// Full text is generated at most once per run.
	if existing, err := repo.GetFullResult(ctx, s.DB, runID); err == nil {
		return s.profile(runID, triple, existing.Text, run.Lang), nil
	}

	rows, err := repo.ListRunAnswers(ctx, s.DB, runID)
	if err != nil {
		return nil, err
	}
	answers := make([]genai.Answer, 0, len(rows))
	for _, r := range rows {
		answers = append(answers, genai.Answer{QuestionID: r.QuestionID, Text: r.Answer})
	}

	animalDisplay := archetype.AnimalDisplayName(triple.Animal, run.Lang, triple.GenderForm)
	elementLabel := archetype.ElementDisplayName(triple.Element, run.Lang, false)
	elementDisplay := archetype.ElementDisplayName(triple.Element, run.Lang, true)

	text, err := s.AI.FullProfile(ctx,
		genai.BuildFullPrompt(run.Name, run.Lang, run.Gender, animalDisplay, elementLabel, elementDisplay,
			genai.BuildAnswersText(answers)), run.Lang)
	if err != nil {
		return nil, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpsertFullResult(ctx, tx, &domain.FullResult{RunID: runID, Text: text}); err != nil {
			return err
		}
		return repo.UpsertUserResult(ctx, tx, &domain.UserResult{
			UserID:     user.ID,
			AnimalCode: triple.Animal,
			Element:    triple.Element,
			GenderForm: triple.GenderForm,
			ShortText:  short.Text,
			FullText:   &text,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.profile(runID, triple, text, run.Lang), nil
}

// FullResult returns the stored full profile for a run. The entitlement gate
// applies on reads too, so sharing a run id does not leak paid content.
func (s *AnalysisService) FullResult(ctx context.Context, runID string, user *domain.User) (*Profile, error) {
	if !user.HasFull {
		return nil, ErrFullLocked
	}
	if _, err := uuid.Parse(strings.TrimSpace(runID)); err != nil {
		return nil, ErrInvalidRunID
	}
	run, err := repo.GetRun(ctx, s.DB, runID)
	if err != nil {
		return nil, ErrRunNotFound
	}
	short, err := repo.GetShortResult(ctx, s.DB, runID)
	if err != nil {
		return nil, ErrResultNotFound
	}
	full, err := repo.GetFullResult(ctx, s.DB, runID)
	if err != nil {
		return nil, ErrResultNotFound
	}
	triple := archetype.Triple{Animal: short.Animal, Element: short.Element, GenderForm: short.GenderForm}
	return s.profile(runID, triple, full.Text, run.Lang), nil
}

func (s *AnalysisService) profile(runID string, t archetype.Triple, text, lang string) *Profile {
	return &Profile{
		RunID:          runID,
		Triple:         t,
		Text:           text,
		AnimalDisplay:  archetype.AnimalDisplayName(t.Animal, lang, t.GenderForm),
		ElementDisplay: archetype.ElementDisplayName(t.Element, lang, true),
		Emoji:          archetype.Emoji(t.Animal),
		ImageKey:       archetype.ImageKey(t.Animal, t.Element, t.GenderForm),
	}
}

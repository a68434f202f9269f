package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reino-app/bestias-backend/internal/archetype"
	"github.com/reino-app/bestias-backend/internal/domain"
	"github.com/reino-app/bestias-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", "#", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// stubAI is a programmable Analyzer. Counters record how often each kind of
// generation call actually went out.
type stubAI struct {
	triple     archetype.Triple
	resolveErr error

	shortText string
	shortErr  error

	fullText string
	fullErr  error

	compatText string
	compatErr  error

	resolveCalls int
	shortCalls   int
	fullCalls    int
	compatCalls  int
}

func (s *stubAI) ResolveArchetype(context.Context, string, string) (archetype.Triple, error) {
	s.resolveCalls++
	if s.resolveErr != nil {
		return archetype.Triple{}, s.resolveErr
	}
	return s.triple, nil
}

func (s *stubAI) ShortProfile(context.Context, string, string) (string, error) {
	s.shortCalls++
	return s.shortText, s.shortErr
}

func (s *stubAI) FullProfile(context.Context, string, string) (string, error) {
	s.fullCalls++
	return s.fullText, s.fullErr
}

func (s *stubAI) CompatibilityText(context.Context, string, string) (string, error) {
	s.compatCalls++
	if s.compatErr != nil {
		return "", s.compatErr
	}
	return s.compatText, nil
}

func defaultStubAI() *stubAI {
	return &stubAI{
		triple:     archetype.Triple{Animal: "Fox", Element: archetype.ElementFire, GenderForm: archetype.GenderFemale},
		shortText:  "short profile",
		fullText:   "full profile",
		compatText: "pair report",
	}
}

func mustCreateUser(t *testing.T, db *gorm.DB, email string, credits int) *domain.User {
	t.Helper()
	e := NormalizeEmail(email)
	u := &domain.User{
		Email:         &e,
		Name:          strings.Split(e, "@")[0],
		Lang:          "ru",
		AuthToken:     NewToken(),
		CompatCredits: credits,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mustCreateResult(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	err := db.Create(&domain.UserResult{
		UserID:     userID,
		AnimalCode: "Wolf",
		Element:    archetype.ElementWater,
		GenderForm: archetype.GenderUnspecified,
		ShortText:  "wolf profile",
	}).Error
	if err != nil {
		t.Fatalf("create result for %d: %v", userID, err)
	}
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) *domain.User {
	t.Helper()
	var u domain.User
	if err := db.First(&u, id).Error; err != nil {
		t.Fatalf("reload user %d: %v", id, err)
	}
	return &u
}

var errBackendDown = errors.New("backend down")

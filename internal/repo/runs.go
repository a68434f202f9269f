// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for quiz runs and
// their generated results.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reino-app/bestias-backend/internal/domain"
)

// EnsureRunAndAnswers creates the run if it does not exist and
// unconditionally replaces its answer set with the supplied list
// (delete-then-insert, not merge), so repeated submissions under the same
// run id always reflect the latest answers.
func EnsureRunAndAnswers(ctx context.Context, db *gorm.DB, run *domain.Run, answers []domain.RunAnswer) error {
	var existing domain.Run
	err := db.WithContext(ctx).Where("id = ?", run.ID).First(&existing).Error
	switch {
	case errors.Is(err, ErrNotFound):
		run.CreatedAt = time.Now().UTC()
		if err := db.WithContext(ctx).Create(run).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if err := db.WithContext(ctx).Where("run_id = ?", run.ID).Delete(&domain.RunAnswer{}).Error; err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	for i := range answers {
		answers[i].RunID = run.ID
	}
	return db.WithContext(ctx).Create(&answers).Error
}

// GetRun fetches a run by id, or ErrNotFound.
func GetRun(ctx context.Context, db *gorm.DB, id string) (*domain.Run, error) {
	var r domain.Run
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRunAnswers returns a run's answers ordered by question id.
func ListRunAnswers(ctx context.Context, db *gorm.DB, runID string) ([]domain.RunAnswer, error) {
	var out []domain.RunAnswer
	err := db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("question_id asc").
		Find(&out).Error
	return out, err
}

// UpsertShortResult inserts or updates the short result keyed by run id.
func UpsertShortResult(ctx context.Context, db *gorm.DB, r *domain.ShortResult) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"animal", "element", "gender_form", "text"},
		),
	}).Create(r).Error
}

// GetShortResult fetches the short result for a run, or ErrNotFound.
func GetShortResult(ctx context.Context, db *gorm.DB, runID string) (*domain.ShortResult, error) {
	var r domain.ShortResult
	if err := db.WithContext(ctx).Where("run_id = ?", runID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertFullResult inserts or updates the full result keyed by run id.
func UpsertFullResult(ctx context.Context, db *gorm.DB, r *domain.FullResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text"}),
	}).Create(r).Error
}

// GetFullResult fetches the full result for a run, or ErrNotFound.
func GetFullResult(ctx context.Context, db *gorm.DB, runID string) (*domain.FullResult, error) {
	var r domain.FullResult
	if err := db.WithContext(ctx).Where("run_id = ?", runID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

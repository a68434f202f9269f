// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for compatibility
// reports.
//
// The pair-key lookup here is an optimization only: the unique index on
// (user_low_id, user_high_id, prompt_version, language) is what actually
// serializes concurrent writers. Callers inserting a report must treat a
// unique violation (IsUniqueViolation) as "somebody else won" and re-read.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/reino-app/bestias-backend/internal/domain"
)

// PairKey identifies a report row: canonically ordered user ids plus prompt
// version and language.
type PairKey struct {
	LowID         uint
	HighID        uint
	PromptVersion string
	Language      string
}

// NewPairKey sorts the two user ids into canonical order.
func NewPairKey(a, b uint, promptVersion, language string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{LowID: a, HighID: b, PromptVersion: promptVersion, Language: language}
}

// GetReportByPair fetches the report for a pair key, or ErrNotFound. An
// empty Language matches any language (used by the invite flow, which keys
// reports by pair and version only).
func GetReportByPair(ctx context.Context, db *gorm.DB, key PairKey) (*domain.CompatReport, error) {
	q := db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ? AND prompt_version = ?",
			key.LowID, key.HighID, key.PromptVersion)
	if key.Language != "" {
		q = q.Where("language = ?", key.Language)
	}
	var r domain.CompatReport
	if err := q.First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReportByRequestID fetches the report previously created under a request
// id for a user on either side of the pair, or ErrNotFound.
func GetReportByRequestID(ctx context.Context, db *gorm.DB, requestID string, userID uint) (*domain.CompatReport, error) {
	var r domain.CompatReport
	err := db.WithContext(ctx).
		Where("request_id = ? AND (user_low_id = ? OR user_high_id = ?)",
			requestID, userID, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReport inserts a report row. Unique violations propagate so callers
// can run the loser-recovery path.
func CreateReport(ctx context.Context, db *gorm.DB, r *domain.CompatReport) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(r).Error
}

// SaveReport persists all fields of an already-loaded report row.
func SaveReport(ctx context.Context, db *gorm.DB, r *domain.CompatReport) error {
	return db.WithContext(ctx).Save(r).Error
}

// GetReport fetches a report by primary key, or ErrNotFound.
func GetReport(ctx context.Context, db *gorm.DB, id uint) (*domain.CompatReport, error) {
	var r domain.CompatReport
	if err := db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CountReadyReports returns the total number of ready, non-empty reports a
// user appears in, for pagination.
func CountReadyReports(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.CompatReport{}).
		Where("(user_low_id = ? OR user_high_id = ?) AND status = ? AND trim(text) <> ''",
			userID, userID, domain.ReportStatusReady).
		Count(&n).Error
	return n, err
}

// ListReadyReports returns the user's ready, non-empty reports, newest
// first.
func ListReadyReports(ctx context.Context, db *gorm.DB, userID uint, offset, limit int) ([]domain.CompatReport, error) {
	var out []domain.CompatReport
	q := db.WithContext(ctx).
		Where("(user_low_id = ? OR user_high_id = ?) AND status = ? AND trim(text) <> ''",
			userID, userID, domain.ReportStatusReady).
		Order("created_at desc")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for invites and
// pack-purchase idempotency records.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/reino-app/bestias-backend/internal/domain"
)

// GetInviteByToken fetches an invite by its token, or ErrNotFound.
func GetInviteByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Invite, error) {
	var inv domain.Invite
	if err := db.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInviteByRequestID fetches the invite previously created by inviterID
// under a request id, or ErrNotFound.
func GetInviteByRequestID(ctx context.Context, db *gorm.DB, requestID string, inviterID uint) (*domain.Invite, error) {
	var inv domain.Invite
	err := db.WithContext(ctx).
		Where("request_id = ? AND inviter_id = ?", requestID, inviterID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInvite inserts an invite row. Unique violations (token or request
// id) propagate for the caller's replay recovery.
func CreateInvite(ctx context.Context, db *gorm.DB, inv *domain.Invite) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(inv).Error
}

// SaveInvite persists all fields of an already-loaded invite row.
func SaveInvite(ctx context.Context, db *gorm.DB, inv *domain.Invite) error {
	return db.WithContext(ctx).Save(inv).Error
}

// GetPackPurchase fetches a purchase idempotency record by request id, or
// ErrNotFound.
func GetPackPurchase(ctx context.Context, db *gorm.DB, requestID string) (*domain.PackPurchase, error) {
	var p domain.PackPurchase
	err := db.WithContext(ctx).Where("request_id = ?", requestID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePackPurchase inserts a purchase idempotency record.
func CreatePackPurchase(ctx context.Context, db *gorm.DB, p *domain.PackPurchase) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}

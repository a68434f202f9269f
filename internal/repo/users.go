// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for users and
// their result snapshots.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/reino-app/bestias-backend/internal/domain"
)

// GetUser fetches a user by primary key, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByToken fetches a user by its opaque bearer token, or ErrNotFound.
func GetUserByToken(ctx context.Context, db *gorm.DB, token string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("auth_token = ?", token).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUsersByIdentity returns every user matching the supplied email or
// telegram handle. Keys that are empty are skipped. More than one row means
// the identity keys belong to different accounts; the caller decides how to
// treat that.
func FindUsersByIdentity(ctx context.Context, db *gorm.DB, email, telegram string) ([]domain.User, error) {
	q := db.WithContext(ctx)
	switch {
	case email != "" && telegram != "":
		q = q.Where("email = ? OR telegram = ?", email, telegram)
	case email != "":
		q = q.Where("email = ?", email)
	case telegram != "":
		q = q.Where("telegram = ?", telegram)
	default:
		return nil, nil
	}
	var out []domain.User
	err := q.Find(&out).Error
	return out, err
}

// FindUserByContact returns the user whose email or telegram equals q, or
// ErrNotFound.
func FindUserByContact(ctx context.Context, db *gorm.DB, q string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("email = ? OR telegram = ?", q, q).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByGoogleSub returns the user linked to a Google subject, or
// ErrNotFound.
func FindUserByGoogleSub(ctx context.Context, db *gorm.DB, sub string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("google_sub = ?", sub).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByTelegramHandles returns the first user whose telegram column is
// any of the supplied handles (username or numeric id), or ErrNotFound.
func FindUserByTelegramHandles(ctx context.Context, db *gorm.DB, handles []string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("telegram IN ?", handles).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts the given user row.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Create(u).Error
}

// SaveUser persists all fields of an already-loaded user row.
func SaveUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Save(u).Error
}

// GetUserResult fetches the result snapshot for a user, or ErrNotFound.
func GetUserResult(ctx context.Context, db *gorm.DB, userID uint) (*domain.UserResult, error) {
	var r domain.UserResult
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertUserResult inserts or overwrites the one-per-user snapshot of the
// latest resolved archetype. FullText is only replaced when non-nil.
func UpsertUserResult(ctx context.Context, db *gorm.DB, r *domain.UserResult) error {
	var existing domain.UserResult
	err := db.WithContext(ctx).Where("user_id = ?", r.UserID).First(&existing).Error
	switch {
	case err == nil:
		existing.AnimalCode = r.AnimalCode
		existing.Element = r.Element
		existing.GenderForm = r.GenderForm
		existing.ShortText = r.ShortText
		if r.FullText != nil {
			existing.FullText = r.FullText
		}
		return db.WithContext(ctx).Save(&existing).Error
	case errors.Is(err, ErrNotFound):
		return db.WithContext(ctx).Create(r).Error
	default:
		return err
	}
}

// ListUsersByIDs returns the users with the given ids, keyed by id.
func ListUsersByIDs(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]domain.User, error) {
	out := make(map[uint]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []domain.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

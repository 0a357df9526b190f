// Package repo implements the data persistence layer for domain entities.
// This file holds the Parent (account) queries.
//
// Functions are thin: no business rules, only persistence. Missing rows
// surface as ErrNotFound; other driver errors are returned unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

// CreateParent inserts a new active account with token_version 1.
// A taken email yields ErrDuplicate.
func CreateParent(ctx context.Context, db *gorm.DB, name, email, passwordHash string, phone *string, now time.Time) (*domain.Parent, error) {
	p := &domain.Parent{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Phone:        phone,
		Role:         domain.RoleParent,
		TokenVersion: 1,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// GetParent loads an account by id.
func GetParent(ctx context.Context, db *gorm.DB, id string) (*domain.Parent, error) {
	var p domain.Parent
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParentByEmail loads an account by its normalized email.
func GetParentByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Parent, error) {
	var p domain.Parent
	if err := db.WithContext(ctx).Where("email = ?", email).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// BumpTokenVersion increments token_version, invalidating every access token
// issued before the call.
func BumpTokenVersion(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Parent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"token_version": gorm.Expr("token_version + 1"),
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetParentActive enables or disables an account.
func SetParentActive(ctx context.Context, db *gorm.DB, id string, active bool, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Parent{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetParentRole changes the role of the account owning email.
func SetParentRole(ctx context.Context, db *gorm.DB, email, role string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Parent{}).
		Where("email = ?", email).
		Updates(map[string]any{"role": role, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchParent writes updated_at on the parent row. Inside a transaction this
// takes the row's write lock, serializing concurrent per-parent mutations.
func TouchParent(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Parent{}).
		Where("id = ?", id).
		Update("updated_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Package repo implements the data persistence layer for domain entities.
// This file stores hashed credentials: refresh tokens and API keys. Raw
// secrets never reach this layer.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

// CreateRefreshToken persists the hash of a newly issued refresh token.
func CreateRefreshToken(ctx context.Context, db *gorm.DB, parentID, tokenHash string, userAgent *string, expiresAt, now time.Time) (*domain.RefreshToken, error) {
	rt := &domain.RefreshToken{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		TokenHash: tokenHash,
		UserAgent: userAgent,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	return rt, db.WithContext(ctx).Create(rt).Error
}

// FindRefreshToken looks a refresh token up by hash.
func FindRefreshToken(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.RefreshToken, error) {
	var rt domain.RefreshToken
	if err := db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// ConsumeRefreshToken deletes the row with tokenHash. It returns ErrNotFound
// when nothing was deleted, which is how a concurrent second consumer of the
// same token loses the race.
func ConsumeRefreshToken(ctx context.Context, db *gorm.DB, tokenHash string) error {
	res := db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrNotFound
	}
	return nil
}

// DeleteRefreshTokens removes every refresh token of a parent and returns
// how many were removed.
func DeleteRefreshTokens(ctx context.Context, db *gorm.DB, parentID string) (int64, error) {
	res := db.WithContext(ctx).Where("parent_id = ?", parentID).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}

// CreateAPIKey persists the hash of a new API key.
func CreateAPIKey(ctx context.Context, db *gorm.DB, keyHash, owner string, now time.Time) (*domain.APIKey, error) {
	k := &domain.APIKey{
		ID:        uuid.NewString(),
		KeyHash:   keyHash,
		Owner:     owner,
		CreatedAt: now,
	}
	if err := db.WithContext(ctx).Create(k).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return k, nil
}

// FindAPIKey looks an API key up by hash, revoked or not.
func FindAPIKey(ctx context.Context, db *gorm.DB, keyHash string) (*domain.APIKey, error) {
	var k domain.APIKey
	if err := db.WithContext(ctx).Where("key_hash = ?", keyHash).First(&k).Error; err != nil {
		return nil, err
	}
	return &k, nil
}

// RevokeAPIKey marks a key revoked. Revoking twice is not an error.
func RevokeAPIKey(ctx context.Context, db *gorm.DB, id string) (*domain.APIKey, error) {
	var k domain.APIKey
	if err := db.WithContext(ctx).Where("id = ?", id).First(&k).Error; err != nil {
		return nil, err
	}
	if !k.Revoked {
		if err := db.WithContext(ctx).Model(&k).Update("revoked", true).Error; err != nil {
			return nil, err
		}
	}
	k.Revoked = true
	return &k, nil
}

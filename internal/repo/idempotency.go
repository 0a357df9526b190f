// Package repo implements the data persistence layer for domain entities.
// This file stores idempotency records for toy questions.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

// GetIdempotency returns a non-expired record for (toyUUID, key) or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, toyUUID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(toyUUID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("toy_uuid = ? AND key = ? AND expires_at > ?", toyUUID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency records an answered question. An expired record with the
// same key is replaced; a live one yields ErrDuplicate.
func SaveIdempotency(ctx context.Context, db *gorm.DB, toyUUID, key, conversationID, answer string, status int, ttl time.Duration, now time.Time) (*domain.Idempotency, error) {
	tx := db.WithContext(ctx)
	if err := tx.Where("toy_uuid = ? AND key = ? AND expires_at <= ?", toyUUID, key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.Idempotency{
		ID:             uuid.NewString(),
		ToyUUID:        toyUUID,
		Key:            key,
		ConversationID: conversationID,
		Answer:         answer,
		Status:         status,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	if err := tx.Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

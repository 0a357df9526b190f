// Package repo implements the data persistence layer for domain entities.
// This file provides Conversation and Message queries.
package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

// CurrentConversation returns the child's conversation with the latest
// last_activity, or ErrNotFound when the child has none.
func CurrentConversation(ctx context.Context, db *gorm.DB, childID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("child_id = ?", childID).
		Order("last_activity DESC, id DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation opens a new conversation for childID.
func CreateConversation(ctx context.Context, db *gorm.DB, childID string, now time.Time) (*domain.Conversation, error) {
	c := &domain.Conversation{
		ID:           uuid.NewString(),
		ChildID:      childID,
		StartedAt:    now,
		LastActivity: now,
	}
	return c, db.WithContext(ctx).Create(c).Error
}

// TouchConversation moves last_activity forward.
func TouchConversation(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("last_activity", now).Error
}

// NextSeq returns the sequence number the next message in the conversation
// should carry (1 for an empty conversation).
func NextSeq(ctx context.Context, db *gorm.DB, conversationID string) (int, error) {
	var maxSeq sql.NullInt64
	row := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Select("MAX(seq)").
		Row()
	if err := row.Scan(&maxSeq); err != nil {
		return 0, err
	}
	if !maxSeq.Valid {
		return 1, nil
	}
	return int(maxSeq.Int64) + 1, nil
}

// CreateMessage inserts one message.
func CreateMessage(ctx context.Context, db *gorm.DB, conversationID, role, content string, seq int, now time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Seq:            seq,
		CreatedAt:      now,
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// CountMessages returns the number of messages in a conversation.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error
	return total, err
}

// ListMessages returns messages in seq order.
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string) ([]domain.Message, error) {
	out := []domain.Message{}
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

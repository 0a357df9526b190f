// Package repo implements the data persistence layer for domain entities.
// This file provides the admin audit log (messages_master).
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

// AuditFilter narrows ListMessageLogs. Empty fields match everything.
type AuditFilter struct {
	ChildID string
	ToyID   string
}

// CreateMessageLog appends one audit row.
func CreateMessageLog(ctx context.Context, db *gorm.DB, m *domain.MessageLog) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(m).Error
}

// ListMessageLogs returns a page of audit rows, newest first, plus the total
// number of rows matching the filter.
func ListMessageLogs(ctx context.Context, db *gorm.DB, f AuditFilter, offset, limit int) ([]domain.MessageLog, int64, error) {
	q := db.WithContext(ctx).Model(&domain.MessageLog{})
	if f.ChildID != "" {
		q = q.Where("child_id = ?", f.ChildID)
	}
	if f.ToyID != "" {
		q = q.Where("toy_id = ?", f.ToyID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []domain.MessageLog{}
	if total == 0 {
		return out, 0, nil
	}
	err := q.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, total, err
}

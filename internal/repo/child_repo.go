// Package repo implements the data persistence layer for domain entities.
// This file holds Child, ChildAnalytics and WeeklySummary queries.
//
// Every lookup that takes a parentID filters by children.parent_id, so a
// child owned by someone else is reported as ErrNotFound.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

// CreateChild inserts a child and its zeroed analytics row. Callers run it
// inside a transaction so both rows commit together.
func CreateChild(ctx context.Context, db *gorm.DB, parentID, name string, age int, now time.Time) (*domain.Child, error) {
	c := &domain.Child{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		ChildName: name,
		Age:       age,
		CreatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	a := &domain.ChildAnalytics{
		ID:        uuid.NewString(),
		ChildID:   c.ID,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// CountChildren returns how many children parentID owns.
func CountChildren(ctx context.Context, db *gorm.DB, parentID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Child{}).
		Where("parent_id = ?", parentID).
		Count(&n).Error
	return n, err
}

// ListChildren returns the parent's children, oldest first.
func ListChildren(ctx context.Context, db *gorm.DB, parentID string) ([]domain.Child, error) {
	out := []domain.Child{}
	err := db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// GetOwnedChild loads a child only if parentID owns it.
func GetOwnedChild(ctx context.Context, db *gorm.DB, id, parentID string) (*domain.Child, error) {
	var c domain.Child
	err := db.WithContext(ctx).
		Where("id = ? AND parent_id = ?", id, parentID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChild loads a child without an ownership filter.
func GetChild(ctx context.Context, db *gorm.DB, id string) (*domain.Child, error) {
	var c domain.Child
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChildAnalytics returns the analytics of a child owned by parentID.
func GetChildAnalytics(ctx context.Context, db *gorm.DB, childID, parentID string) (*domain.ChildAnalytics, error) {
	var a domain.ChildAnalytics
	err := db.WithContext(ctx).
		Joins("JOIN children ON children.id = child_analytics.child_id").
		Where("child_analytics.child_id = ? AND children.parent_id = ?", childID, parentID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LatestWeeklySummary returns the most recent summary of a child owned by
// parentID, ordered by week_start.
func LatestWeeklySummary(ctx context.Context, db *gorm.DB, childID, parentID string) (*domain.WeeklySummary, error) {
	var s domain.WeeklySummary
	err := db.WithContext(ctx).
		Joins("JOIN children ON children.id = weekly_summaries.child_id").
		Where("weekly_summaries.child_id = ? AND children.parent_id = ?", childID, parentID).
		Order("weekly_summaries.week_start DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RecordQuestion bumps the child's counters by exactly one and stamps
// last_active_date. Counters are never reset here.
func RecordQuestion(ctx context.Context, db *gorm.DB, childID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ChildAnalytics{}).
		Where("child_id = ?", childID).
		Updates(map[string]any{
			"total_questions":  gorm.Expr("total_questions + 1"),
			"weekly_questions": gorm.Expr("weekly_questions + 1"),
			"last_active_date": domain.DateOf(now),
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpWeeklySummary adds one question to the summary of the week containing
// now, creating the row on the first question of the week.
func BumpWeeklySummary(ctx context.Context, db *gorm.DB, childID string, now time.Time) error {
	start, end := domain.WeekBounds(now)
	row := &domain.WeeklySummary{
		ID:             uuid.NewString(),
		ChildID:        childID,
		WeekStart:      start,
		WeekEnd:        end,
		Topics:         []string{},
		QuestionsCount: 1,
		CreatedAt:      now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "child_id"}, {Name: "week_start"}},
		DoUpdates: clause.Assignments(map[string]any{
			"questions_count": gorm.Expr("weekly_summaries.questions_count + 1"),
		}),
	}).Create(row).Error
}

// DeleteChild removes a child and everything hanging off it, step by step:
// toy pointers, audit rows, messages, conversations, summaries, analytics and
// finally the child. Run it inside a transaction.
func DeleteChild(ctx context.Context, db *gorm.DB, childID string) error {
	tx := db.WithContext(ctx)

	if err := tx.Model(&domain.Toy{}).
		Where("active_child_id = ?", childID).
		Update("active_child_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Where("child_id = ?", childID).Delete(&domain.MessageLog{}).Error; err != nil {
		return err
	}
	convIDs := tx.Model(&domain.Conversation{}).Select("id").Where("child_id = ?", childID)
	if err := tx.Where("conversation_id IN (?)", convIDs).Delete(&domain.Message{}).Error; err != nil {
		return err
	}
	if err := tx.Where("child_id = ?", childID).Delete(&domain.Conversation{}).Error; err != nil {
		return err
	}
	if err := tx.Where("child_id = ?", childID).Delete(&domain.WeeklySummary{}).Error; err != nil {
		return err
	}
	if err := tx.Where("child_id = ?", childID).Delete(&domain.ChildAnalytics{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", childID).Delete(&domain.Child{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

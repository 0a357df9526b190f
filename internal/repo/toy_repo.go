// Package repo implements the data persistence layer for domain entities.
// This file holds Toy queries: registration, pairing, the active-child
// pointer and heartbeats.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

// CreateToy registers a device. A taken toy_uuid yields ErrDuplicate.
func CreateToy(ctx context.Context, db *gorm.DB, t *domain.Toy) error {
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetToyByUUID loads a toy by its public uuid.
func GetToyByUUID(ctx context.Context, db *gorm.DB, toyUUID string) (*domain.Toy, error) {
	var t domain.Toy
	if err := db.WithContext(ctx).Where("toy_uuid = ?", toyUUID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetToyForParent loads a toy only if at least one of parentID's children is
// paired with it.
func GetToyForParent(ctx context.Context, db *gorm.DB, toyUUID, parentID string) (*domain.Toy, error) {
	var t domain.Toy
	err := db.WithContext(ctx).
		Where("toys.toy_uuid = ?", toyUUID).
		Where("EXISTS (SELECT 1 FROM children WHERE children.toy_id = toys.id AND children.parent_id = ?)", parentID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetActiveChildForParent resolves the active child of a toy, restricted to
// a child of parentID that is still paired with the toy.
func GetActiveChildForParent(ctx context.Context, db *gorm.DB, toyUUID, parentID string) (*domain.Toy, *domain.Child, error) {
	t, err := GetToyByUUID(ctx, db, toyUUID)
	if err != nil {
		return nil, nil, err
	}
	if t.ActiveChildID == nil {
		return nil, nil, ErrNotFound
	}
	var c domain.Child
	err = db.WithContext(ctx).
		Where("id = ? AND parent_id = ? AND toy_id = ?", *t.ActiveChildID, parentID, t.ID).
		First(&c).Error
	if err != nil {
		return nil, nil, err
	}
	return t, &c, nil
}

// PairChild links a child to a toy. When the child moves away from another
// toy, that toy's active pointer is cleared if it referenced the child.
func PairChild(ctx context.Context, db *gorm.DB, childID, toyID string) error {
	tx := db.WithContext(ctx)
	if err := tx.Model(&domain.Toy{}).
		Where("active_child_id = ? AND id <> ?", childID, toyID).
		Update("active_child_id", nil).Error; err != nil {
		return err
	}
	res := tx.Model(&domain.Child{}).Where("id = ?", childID).Update("toy_id", toyID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkToySeen sets is_active and last_seen.
func MarkToySeen(ctx context.Context, db *gorm.DB, toyID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Toy{}).
		Where("id = ?", toyID).
		Updates(map[string]any{"is_active": true, "last_seen": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActiveChild points the toy at childID. The write only happens when the
// child is paired with this toy at the time of the statement, so a
// concurrent re-pair cannot leave the toy pointing at another toy's child.
// Returns ErrNotFound for an unknown toy and ErrNotPaired otherwise.
func SetActiveChild(ctx context.Context, db *gorm.DB, toyID, childID string) error {
	tx := db.WithContext(ctx)
	paired := tx.Model(&domain.Child{}).Select("1").
		Where("children.id = ? AND children.toy_id = toys.id", childID)
	res := tx.Model(&domain.Toy{}).
		Where("id = ? AND EXISTS (?)", toyID, paired).
		Update("active_child_id", childID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&domain.Toy{}).Where("id = ?", toyID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrNotPaired
}

// IsActivePairing reports whether childID is both the toy's active child and
// paired with it. Run it inside the transaction that relies on the answer.
func IsActivePairing(ctx context.Context, db *gorm.DB, toyID, childID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Toy{}).
		Joins("JOIN children ON children.id = toys.active_child_id AND children.toy_id = toys.id").
		Where("toys.id = ? AND children.id = ?", toyID, childID).
		Count(&n).Error
	return n > 0, err
}

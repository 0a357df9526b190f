package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist. It aliases
// gorm.ErrRecordNotFound so callers can test either.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate signals a unique-constraint violation.
var ErrDuplicate = errors.New("duplicate")

// ErrNotPaired is returned when a toy would point at a child that is not
// paired with it.
var ErrNotPaired = errors.New("child not paired with toy")

// IsDuplicate detects unique-constraint violations across drivers, including
// those that surface as plain-text errors instead of gorm.ErrDuplicatedKey.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

// IsIntegrity reports any constraint violation (unique, foreign key, check).
func IsIntegrity(err error) bool {
	if err == nil {
		return false
	}
	if IsDuplicate(err) || errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "constraint failed") ||
		strings.Contains(low, "violates foreign key") ||
		strings.Contains(low, "violates check constraint")
}

package domain

import "time"

// Idempotency records the outcome of a toy question submitted with an
// Idempotency-Key, keyed by (toy_uuid, key). A retry inside the TTL replays
// the stored answer instead of logging the question twice.
type Idempotency struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	ToyUUID        string    `gorm:"type:char(36);not null;uniqueIndex:ux_toy_key,priority:1"`
	Key            string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_toy_key,priority:2"`
	ConversationID string    `gorm:"type:char(36);not null"`
	Answer         string    `gorm:"type:text;not null"`
	Status         int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

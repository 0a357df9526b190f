package domain

import "time"

// RefreshToken is a single-use credential exchanged for a new token pair.
// Only the keyed hash of the raw token is stored.
type RefreshToken struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ParentID  string    `json:"parent_id"  gorm:"type:char(36);not null;index"`
	TokenHash string    `json:"-"          gorm:"type:varchar(128);not null;uniqueIndex:ux_refresh_token_hash"`
	UserAgent *string   `json:"user_agent" gorm:"type:varchar(255)"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`

	Parent Parent `json:"-" gorm:"foreignKey:ParentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for RefreshToken.
func (RefreshToken) TableName() string { return "refresh_tokens" }

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// APIKey authenticates machine clients (toys). Only the keyed hash is stored;
// keys never expire but can be revoked.
type APIKey struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	KeyHash   string    `json:"-"          gorm:"type:varchar(128);not null;uniqueIndex:ux_api_key_hash"`
	Owner     string    `json:"owner"      gorm:"type:varchar(100)"`
	Revoked   bool      `json:"revoked"    gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for APIKey.
func (APIKey) TableName() string { return "api_keys" }

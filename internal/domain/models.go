// Package domain defines the persistence models for parents, children, toys
// and their usage analytics. The types are mapped with GORM and shared by the
// repository and service layers.
package domain

import (
	"time"
)

// Parent roles.
const (
	RoleParent = "parent"
	RoleAdmin  = "admin"
)

// MaxChildrenPerParent caps how many child profiles one account may own.
const MaxChildrenPerParent = 3

// Parent is an account holder. Admins are parents with RoleAdmin.
//
// TokenVersion is embedded in every access token; bumping it revokes all
// outstanding access tokens for the account.
type Parent struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(100);not null"`
	Email        string    `json:"email"         gorm:"type:varchar(150);not null;uniqueIndex:ux_parents_email"`
	PasswordHash string    `json:"-"             gorm:"type:text;not null"`
	Phone        *string   `json:"phone,omitempty" gorm:"type:varchar(20)"`
	Role         string    `json:"role"          gorm:"type:varchar(20);not null;default:'parent';check:role IN ('parent','admin')"`
	TokenVersion int       `json:"-"             gorm:"not null;default:1"`
	IsActive     bool      `json:"is_active"     gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// TableName returns the database table name for Parent.
func (Parent) TableName() string { return "parents" }

// IsAdmin reports whether the parent carries the admin role.
func (p *Parent) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// Toy is a physical device. ActiveChildID names the child currently speaking
// through it and must reference a child paired with this toy.
type Toy struct {
	ID              string     `json:"id"               gorm:"type:char(36);primaryKey"`
	ToyUUID         string     `json:"toy_uuid"         gorm:"type:char(36);not null;uniqueIndex:ux_toys_uuid"`
	ModelNo         string     `json:"model_no"         gorm:"type:varchar(50)"`
	FirmwareVersion string     `json:"firmware_version" gorm:"type:varchar(50)"`
	IsActive        bool       `json:"is_active"        gorm:"not null;default:false"`
	LastSeen        *time.Time `json:"last_seen"`
	ActiveChildID   *string    `json:"active_child_id"  gorm:"type:char(36);index"`
	RegisteredAt    time.Time  `json:"registered_at"`
}

// TableName returns the database table name for Toy.
func (Toy) TableName() string { return "toys" }

// Child is a child profile owned by a parent, optionally paired with a toy.
type Child struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ParentID  string    `json:"parent_id"  gorm:"type:char(36);not null;index:idx_parent_children,priority:1"`
	ToyID     *string   `json:"toy_id"     gorm:"type:char(36);index"`
	ChildName string    `json:"child_name" gorm:"type:varchar(100);not null"`
	Age       int       `json:"age"        gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_parent_children,priority:2"`

	Parent Parent `json:"-" gorm:"foreignKey:ParentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Toy    *Toy   `json:"-" gorm:"foreignKey:ToyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Child.
func (Child) TableName() string { return "children" }

// ChildAnalytics holds the usage counters of one child. Exactly one row exists
// per child and counters only ever grow.
type ChildAnalytics struct {
	ID              string     `json:"id"               gorm:"type:char(36);primaryKey"`
	ChildID         string     `json:"child_id"         gorm:"type:char(36);not null;uniqueIndex:ux_analytics_child"`
	TotalQuestions  int        `json:"total_questions"  gorm:"not null;default:0"`
	WeeklyQuestions int        `json:"weekly_questions" gorm:"not null;default:0"`
	VocabGrowth     int        `json:"vocab_growth"     gorm:"not null;default:0"`
	AvgComplexity   float64    `json:"avg_complexity"   gorm:"not null;default:0"`
	StreakDays      int        `json:"streak_days"      gorm:"not null;default:0"`
	ProgressScore   float64    `json:"progress_score"   gorm:"not null;default:0"`
	LastActiveDate  *time.Time `json:"last_active_date"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Child Child `json:"-" gorm:"foreignKey:ChildID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChildAnalytics.
func (ChildAnalytics) TableName() string { return "child_analytics" }

// WeeklySummary aggregates one child's activity over a Monday-based UTC week.
type WeeklySummary struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ChildID        string    `json:"child_id"        gorm:"type:char(36);not null;uniqueIndex:ux_summary_child_week,priority:1"`
	WeekStart      time.Time `json:"week_start"      gorm:"not null;uniqueIndex:ux_summary_child_week,priority:2"`
	WeekEnd        time.Time `json:"week_end"        gorm:"not null"`
	Topics         []string  `json:"topics"          gorm:"type:text;serializer:json"`
	SummaryText    string    `json:"summary_text"    gorm:"type:text"`
	QuestionsCount int       `json:"questions_count" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`

	Child Child `json:"-" gorm:"foreignKey:ChildID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for WeeklySummary.
func (WeeklySummary) TableName() string { return "weekly_summaries" }

// WeekBounds returns the Monday 00:00 UTC that starts the week containing t,
// and the instant one week later.
func WeekBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	start = day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

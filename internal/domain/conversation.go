package domain

import "time"

// Message roles.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// Conversation groups the messages one child exchanged with its toy. The
// current conversation of a child is the one with the latest LastActivity.
type Conversation struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	ChildID      string    `json:"child_id"      gorm:"type:char(36);not null;index:idx_child_conversations,priority:1"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity" gorm:"index:idx_child_conversations,priority:2"`

	Child Child `json:"-" gorm:"foreignKey:ChildID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single utterance within a conversation. Seq orders messages
// inside their conversation starting at 1.
type Message struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1"`
	Role           string    `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	Seq            int       `json:"seq"             gorm:"not null;default:0;index:idx_conversation_msgs,priority:2"`
	CreatedAt      time.Time `json:"created_at"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// MessageLog is the admin audit copy of every stored message. It keeps the
// child and toy that produced it so admins can browse by either.
type MessageLog struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ChildID        *string   `json:"child_id"        gorm:"type:char(36);index"`
	ToyID          *string   `json:"toy_id"          gorm:"type:char(36);index"`
	ConversationID *string   `json:"conversation_id" gorm:"type:char(36);index"`
	Role           string    `json:"role"            gorm:"type:varchar(20);not null"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	ModelUsed      string    `json:"model_used"      gorm:"type:varchar(50)"`
	Complexity     *float64  `json:"complexity"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index"`
}

// TableName returns the database table name for MessageLog.
func (MessageLog) TableName() string { return "messages_master" }

package models

import (
	"time"

	"gorm.io/datatypes"
)

// ContextType selects the assistant persona and the data it may see.
type ContextType string

const (
	ContextGeneral      ContextType = "general"
	ContextLearning     ContextType = "learning"
	ContextPersonalized ContextType = "personalized"
)

func (c ContextType) Valid() bool {
	switch c {
	case ContextGeneral, ContextLearning, ContextPersonalized:
		return true
	}
	return false
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// SessionIdleTTL is how long a session may sit unused before a new one is minted.
const SessionIdleTTL = 24 * time.Hour

type ChatSession struct {
	ID          uint        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID      uint        `gorm:"column:user_id;not null;index:idx_chat_sessions_user_ctx" json:"user_id"`
	SessionID   string      `gorm:"column:session_id;type:varchar(100);uniqueIndex;not null" json:"session_id"`
	ContextType ContextType `gorm:"column:context_type;type:varchar(20);not null;default:general;index:idx_chat_sessions_user_ctx" json:"context_type"`
	Summary     string      `gorm:"column:summary;type:text" json:"summary"`
	CreatedAt   time.Time   `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

// Fresh reports whether the session was touched within SessionIdleTTL of now.
func (s *ChatSession) Fresh(now time.Time) bool {
	return s != nil && now.Sub(s.UpdatedAt) < SessionIdleTTL
}

type ChatMessage struct {
	ID        uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    uint              `gorm:"column:user_id;not null;index" json:"user_id"`
	SessionID string            `gorm:"column:session_id;type:varchar(100);not null;index" json:"session_id"`
	Role      MessageRole       `gorm:"column:role;type:varchar(20);not null" json:"role"`
	Content   string            `gorm:"column:content;type:text;not null" json:"content"`
	Metadata  datatypes.JSONMap `gorm:"column:meta_data;type:jsonb" json:"metadata"`
	CreatedAt time.Time         `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// Stage 会话所处的流程阶段
type Stage string

const (
	// StageSelecting 选型阶段：与用户澄清需求并确定内容类型
	StageSelecting Stage = "selecting"
	// StageGenerating 生成阶段：正在产出并校验内容文档
	StageGenerating Stage = "generating"
	// StageRefining 修订阶段：已有有效文档，后续消息视为修改指令
	StageRefining Stage = "refining"
)

// ConversationSession 一次内容创建会话
// 每个会话严格串行处理，SelectedLibrary 在进入生成阶段后不再变更。
type ConversationSession struct {
	ID              string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Stage           Stage           `json:"stage" gorm:"type:varchar(16);not null;default:'selecting'"`
	SelectedLibrary string          `json:"selected_library" gorm:"type:varchar(64)"`
	Provider        string          `json:"provider" gorm:"type:varchar(32)"`
	LastDocument    json.RawMessage `json:"last_document,omitempty" gorm:"type:jsonb"`
	LastContentID   *string         `json:"last_content_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ConversationSession) TableName() string {
	return "conversation_sessions"
}

// NewConversationSession 创建新会话
func NewConversationSession(provider string) *ConversationSession {
	now := time.Now()
	return &ConversationSession{
		Stage:     StageSelecting,
		Provider:  provider,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ReadyToGenerate 会话是否已确定内容类型、可以触发生成
func (s *ConversationSession) ReadyToGenerate() bool {
	return s.SelectedLibrary != ""
}

// ConversationTurn 会话中的一条消息
type ConversationTurn struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID string          `json:"session_id" gorm:"type:uuid;index;not null"`
	Role      Role            `json:"role" gorm:"type:varchar(16);not null"`
	Content   string          `json:"content" gorm:"type:text;not null"`
	Metadata  json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}

// NewConversationTurn 创建一条会话消息
func NewConversationTurn(sessionID string, role Role, content string, metadata json.RawMessage) *ConversationTurn {
	return &ConversationTurn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}

// Message 发送给模型网关的消息（全量重放，不依赖服务端记忆）
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// MessagesFromTurns 将历史消息转换为模型网关消息序列
func MessagesFromTurns(turns []*ConversationTurn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			continue
		}
		out = append(out, Message{Role: t.Role, Text: t.Content})
	}
	return out
}

package dto

import (
	"encoding/json"
	"time"

	"github.com/pascalkienast/H5P-AI-Generator/internal/application/generation"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
)

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	// Provider 模型提供商名称，空值使用默认提供商
	Provider string `json:"provider"`
}

// SessionResponse 会话视图
type SessionResponse struct {
	ID              string    `json:"id"`
	Stage           string    `json:"stage"`
	SelectedLibrary string    `json:"selected_library,omitempty"`
	Provider        string    `json:"provider,omitempty"`
	LastContentID   string    `json:"last_content_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewSessionResponse 由领域实体构建会话视图
func NewSessionResponse(s *entity.ConversationSession) SessionResponse {
	resp := SessionResponse{
		ID:              s.ID,
		Stage:           string(s.Stage),
		SelectedLibrary: s.SelectedLibrary,
		Provider:        s.Provider,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.LastContentID != nil {
		resp.LastContentID = *s.LastContentID
	}
	return resp
}

// MessageRequest 用户消息请求
type MessageRequest struct {
	Text string `json:"text" binding:"required"`
	// Provider 仅对本次消息覆盖会话的提供商
	Provider string `json:"provider"`
}

// GenerateRequest 触发生成请求
type GenerateRequest struct {
	// Provider 仅对本次生成覆盖会话的提供商
	Provider string `json:"provider"`
}

// ContentRef 已提交内容的访问地址
type ContentRef struct {
	ContentID   string `json:"content_id"`
	PreviewURL  string `json:"preview_url"`
	DownloadURL string `json:"download_url"`
}

// MessageResponse 一次消息处理的结果
type MessageResponse struct {
	Session SessionResponse `json:"session"`
	Reply   string          `json:"reply"`
	Notices []string        `json:"notices,omitempty"`
	// Document 本回合产出的内容文档
	Document json.RawMessage `json:"document,omitempty"`
	Content  *ContentRef     `json:"content,omitempty"`
}

// NewMessageResponse 由编排结果构建响应
func NewMessageResponse(result *generation.TurnResult) (*MessageResponse, error) {
	resp := &MessageResponse{
		Session: NewSessionResponse(result.Session),
		Reply:   result.Reply,
		Notices: result.Notices,
	}
	if result.Document != nil {
		raw, err := json.Marshal(result.Document)
		if err != nil {
			return nil, err
		}
		resp.Document = raw
	}
	if result.Submission != nil {
		resp.Content = &ContentRef{
			ContentID:   result.Submission.ContentID,
			PreviewURL:  result.Submission.PreviewURL,
			DownloadURL: result.Submission.DownloadURL,
		}
	}
	return resp, nil
}

// TurnResponse 会话历史中的一条消息
type TurnResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurnResponses 由领域实体批量构建消息视图
func NewTurnResponses(turns []*entity.ConversationTurn) []TurnResponse {
	out := make([]TurnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, TurnResponse{
			ID:        t.ID,
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		})
	}
	return out
}

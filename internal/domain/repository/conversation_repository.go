// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
)

type ConversationSessionRepository interface {
	Create(ctx context.Context, session *entity.ConversationSession) error
	GetByID(ctx context.Context, id string) (*entity.ConversationSession, error)
	GetByIDForUpdate(ctx context.Context, id string) (*entity.ConversationSession, error)
	Update(ctx context.Context, session *entity.ConversationSession) error
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.ConversationSession], error)
}

type ConversationTurnRepository interface {
	Create(ctx context.Context, turn *entity.ConversationTurn) error
	ListBySession(ctx context.Context, sessionID string, pagination Pagination) (*PagedResult[*entity.ConversationTurn], error)
	// ListAllBySession 按时间顺序取全部消息，用于向模型重放完整历史
	ListAllBySession(ctx context.Context, sessionID string) ([]*entity.ConversationTurn, error)
}

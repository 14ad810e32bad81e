// Package port 定义工作流层对外部能力的最小依赖
package port

import (
	"context"

	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
)

// ChatModel 模型补全能力：系统提示 + 全量历史 -> 助手回复文本
type ChatModel interface {
	Complete(ctx context.Context, systemPrompt string, messages []entity.Message) (string, error)
}

// ChatModelFactory 按提供商名称获取 ChatModel，空名称返回默认提供商
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (ChatModel, error)
}

// ContentSubmitter 将归一化后的文档提交到托管服务
type ContentSubmitter interface {
	Submit(ctx context.Context, doc *entity.ContentDocument) (*SubmissionResult, error)
}

// SubmissionResult 提交成功后的结果
type SubmissionResult struct {
	ContentID   string `json:"content_id"`
	PreviewURL  string `json:"preview_url"`
	DownloadURL string `json:"download_url"`
}

// LibraryCatalog 内容库版本目录
type LibraryCatalog interface {
	// Versions 返回当前可用内容库版本表；查询失败时实现方负责回退到默认表
	Versions(ctx context.Context) (entity.VersionMap, error)
}

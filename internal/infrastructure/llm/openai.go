package llm

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/pascalkienast/H5P-AI-Generator/internal/config"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	apperrors "github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/logger"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/metrics"
)

// OpenAIModel 基于 Chat Completions API 的聊天模型
// 也覆盖各类 OpenAI 兼容端点，通过 base_url 切换
type OpenAIModel struct {
	client      *openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewOpenAIModel 创建 OpenAI 适配器
func NewOpenAIModel(name string, cfg config.ProviderConfig) *OpenAIModel {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIModel{
		client:      openai.NewClientWithConfig(clientConfig),
		name:        name,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
	}
}

// Complete 发送全量对话历史并返回助手回复文本
func (m *OpenAIModel) Complete(ctx context.Context, systemPrompt string, messages []entity.Message) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
		Messages: append(make([]openai.ChatCompletionMessage, 0, len(messages)+1),
			openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			}),
	}
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == entity.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Text,
		})
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, req)
	metrics.LLMRequestDuration.WithLabelValues(m.name, m.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.name, m.model, "error").Inc()
		logger.Error(ctx, "OpenAI 调用失败", err, "model", m.model)
		return "", classifyProviderError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(m.name, m.model, "error").Inc()
		return "", apperrors.New(apperrors.CodeProviderError, "模型返回空结果")
	}

	metrics.LLMRequestsTotal.WithLabelValues(m.name, m.model, "ok").Inc()
	return resp.Choices[0].Message.Content, nil
}

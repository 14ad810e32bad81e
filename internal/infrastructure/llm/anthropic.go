package llm

import (
	"context"
	"errors"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/pascalkienast/H5P-AI-Generator/internal/config"
	"github.com/pascalkienast/H5P-AI-Generator/internal/domain/entity"
	apperrors "github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/logger"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/metrics"
)

// AnthropicModel 基于 Anthropic Messages API 的聊天模型
type AnthropicModel struct {
	client      *anthropic.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewAnthropicModel 创建 Anthropic 适配器
func NewAnthropicModel(name string, cfg config.ProviderConfig) *AnthropicModel {
	opts := []anthropic.ClientOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicModel{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		name:        name,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
	}
}

// Complete 发送全量对话历史并返回助手回复文本
func (m *AnthropicModel) Complete(ctx context.Context, systemPrompt string, messages []entity.Message) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(m.model),
		System:    systemPrompt,
		MaxTokens: m.maxTokens,
		Messages:  make([]anthropic.Message, 0, len(messages)),
	}
	if m.temperature > 0 {
		req.Temperature = &m.temperature
	}
	for _, msg := range messages {
		switch msg.Role {
		case entity.RoleAssistant:
			req.Messages = append(req.Messages, anthropic.NewAssistantTextMessage(msg.Text))
		default:
			req.Messages = append(req.Messages, anthropic.NewUserTextMessage(msg.Text))
		}
	}

	start := time.Now()
	resp, err := m.client.CreateMessages(ctx, req)
	metrics.LLMRequestDuration.WithLabelValues(m.name, m.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.name, m.model, "error").Inc()
		logger.Error(ctx, "Anthropic 调用失败", err, "model", m.model)
		return "", classifyProviderError(err)
	}

	metrics.LLMRequestsTotal.WithLabelValues(m.name, m.model, "ok").Inc()
	return resp.GetFirstContentText(), nil
}

// classifyProviderError 将 SDK 错误归类为提供商错误码
func classifyProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.CodeProviderTimeout, "模型调用超时")
	}
	return apperrors.Wrap(err, apperrors.CodeProviderError, "模型调用失败")
}

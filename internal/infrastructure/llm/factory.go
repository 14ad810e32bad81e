// Package llm 封装对各模型提供商的访问
package llm

import (
	"context"
	"sync"

	"github.com/pascalkienast/H5P-AI-Generator/internal/config"
	"github.com/pascalkienast/H5P-AI-Generator/internal/workflow/port"
	"github.com/pascalkienast/H5P-AI-Generator/pkg/errors"
)

// Factory 管理多个 ChatModel 客户端实例
type Factory struct {
	config *config.LLMConfig
	models map[string]port.ChatModel
	mu     sync.RWMutex
}

// NewFactory 创建模型工厂
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		config: &cfg.LLM,
		models: make(map[string]port.ChatModel),
	}
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认客户端
func (f *Factory) Get(ctx context.Context, name string) (port.ChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, errors.New(errors.CodeConfigurationError, "未配置的模型提供商").WithDetail(name)
	}

	var chatModel port.ChatModel
	switch providerCfg.Kind {
	case "openai":
		chatModel = NewOpenAIModel(name, providerCfg)
	case "anthropic", "":
		chatModel = NewAnthropicModel(name, providerCfg)
	default:
		return nil, errors.New(errors.CodeConfigurationError, "不支持的提供商类型").WithDetail(providerCfg.Kind)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *Factory) Default(ctx context.Context) (port.ChatModel, error) {
	return f.Get(ctx, "")
}

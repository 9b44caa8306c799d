// Package inference 封装对 AI 供应商的推理调用
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/marville001/eduaiapp/internal/config"
)

// Result 一次推理调用的结果
type Result struct {
	Text       string
	TokenUsage int
	Duration   time.Duration
}

// Provider 推理供应商接口
// 实现方被视为不可靠的远端依赖，调用方负责超时与重试
type Provider interface {
	Generate(ctx context.Context, messages []*schema.Message) (*Result, error)
	ModelID() string
}

// chatModelProvider 基于 eino ChatModel 的实现
type chatModelProvider struct {
	chatModel model.BaseChatModel
	modelID   string
}

// NewProvider 根据配置创建推理供应商
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	aiCfg := cfg.AI

	var apiKey, baseURL, modelName string

	switch aiCfg.Provider {
	case "openai":
		apiKey = aiCfg.OpenAI.APIKey
		baseURL = aiCfg.OpenAI.BaseURL
		modelName = aiCfg.OpenAI.Model
	case "alibaba", "qwen", "dashscope":
		apiKey = aiCfg.Alibaba.AccessKeySecret
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		modelName = aiCfg.Alibaba.Model
	case "deepseek":
		apiKey = aiCfg.DeepSeek.APIKey
		baseURL = aiCfg.DeepSeek.BaseURL
		modelName = aiCfg.DeepSeek.Model
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", aiCfg.Provider)
	}

	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &chatModelProvider{
		chatModel: chatModel,
		modelID:   fmt.Sprintf("%s/%s", aiCfg.Provider, modelName),
	}, nil
}

// Generate 调用模型生成回答
func (p *chatModelProvider) Generate(ctx context.Context, messages []*schema.Message) (*Result, error) {
	start := time.Now()
	resp, err := p.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Text:     strings.TrimSpace(resp.Content),
		Duration: time.Since(start),
	}
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		result.TokenUsage = resp.ResponseMeta.Usage.TotalTokens
	}
	if result.Text == "" {
		return nil, errors.New("empty completion from provider")
	}
	return result, nil
}

// ModelID 返回供应商/模型标识
func (p *chatModelProvider) ModelID() string {
	return p.modelID
}

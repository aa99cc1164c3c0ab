// Package llm 基于 Eino 构建各阶段使用的 ChatModel
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"golang.org/x/sync/singleflight"

	"splat-anim-ai/internal/config"
)

// EinoFactory 按 provider 懒创建 ChatModel，并发首次请求只建一次
type EinoFactory struct {
	config *config.LLMConfig
	models sync.Map // name -> model.BaseChatModel
	group  singleflight.Group
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{config: &cfg.LLM}
}

// Get 获取 provider 对应的 ChatModel，空名回退到默认 provider
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	name = f.config.ResolveProvider(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("no llm provider requested and no default configured")
	}
	if m, ok := f.models.Load(name); ok {
		return m.(model.BaseChatModel), nil
	}

	v, err, _ := f.group.Do(name, func() (any, error) {
		if m, ok := f.models.Load(name); ok {
			return m, nil
		}
		m, err := f.build(ctx, name)
		if err != nil {
			return nil, err
		}
		f.models.Store(name, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(model.BaseChatModel), nil
}

func (f *EinoFactory) build(ctx context.Context, name string) (model.BaseChatModel, error) {
	p, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	if p.Model == "" {
		return nil, fmt.Errorf("provider %s has no model configured", name)
	}

	// 视觉模型同样走 OpenAI 兼容协议
	mc := &openai.ChatModelConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		Timeout: p.Timeout,
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		mc.MaxTokens = &maxTokens
	}
	// 请求级温度会覆盖这里
	if p.Temperature > 0 {
		temperature := float32(p.Temperature)
		mc.Temperature = &temperature
	}
	m, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}
	return m, nil
}

// Providers 已配置的 provider 名称
func (f *EinoFactory) Providers() []string {
	out := make([]string, 0, len(f.config.Providers))
	for name := range f.config.Providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Package port 定义工作流层对外部模型的依赖
package port

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按 provider 名取 ChatModel；空名表示默认 provider
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// StaticFactory 固定的 provider 表，空名取 DefaultName
type StaticFactory struct {
	DefaultName string
	Models      map[string]model.BaseChatModel
}

func (f StaticFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.DefaultName
	}
	m, ok := f.Models[name]
	if !ok || m == nil {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return m, nil
}

// Package prompt 管理嵌入的提示词模板
package prompt

import (
	"embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 提示词模板标识，对应 templates/{id}.system.txt 与 templates/{id}.user.txt
type PromptID string

const (
	PromptDesignV1       PromptID = "design_v1"
	PromptCodeV1         PromptID = "code_v1"
	PromptCodeFallbackV1 PromptID = "code_fallback_v1"
	PromptCritiqueV1     PromptID = "critique_v1"
)

var knownPrompts = []PromptID{PromptDesignV1, PromptCodeV1, PromptCodeFallbackV1, PromptCritiqueV1}

// Registry 创建时一次性解析全部模板，之后只读
type Registry struct {
	templates map[PromptID]einoprompt.ChatTemplate
	errs      map[PromptID]error
}

// NewRegistry 加载全部已知模板；单个模板缺失只影响该模板的取用
func NewRegistry() *Registry {
	r := &Registry{
		templates: make(map[PromptID]einoprompt.ChatTemplate, len(knownPrompts)),
		errs:      make(map[PromptID]error),
	}
	for _, id := range knownPrompts {
		tpl, err := load(id)
		if err != nil {
			r.errs[id] = err
			continue
		}
		r.templates[id] = tpl
	}
	return r
}

// ChatTemplate 返回 FString 格式的 system + user 模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}
	if err, ok := r.errs[id]; ok {
		return nil, err
	}
	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}
	return tpl, nil
}

func load(id PromptID) (einoprompt.ChatTemplate, error) {
	system, err := readTemplate(id, "system")
	if err != nil {
		return nil, err
	}
	user, err := readTemplate(id, "user")
	if err != nil {
		return nil, err
	}
	return einoprompt.FromMessages(schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	), nil
}

func readTemplate(id PromptID, role string) (string, error) {
	path := fmt.Sprintf("templates/%s.%s.txt", id, role)
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

package animation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"splat-anim-ai/internal/domain/entity"
	llmctx "splat-anim-ai/internal/domain/service"
	"splat-anim-ai/internal/sandbox"
)

// replyFunc 按工作流名与该工作流的调用序号返回模型输出
type replyFunc func(workflow string, call int, prompt string) (string, error)

type fakeChatModel struct {
	reply replyFunc

	mu    sync.Mutex
	calls map[string]int
}

func newFakeChatModel(reply replyFunc) *fakeChatModel {
	return &fakeChatModel{reply: reply, calls: make(map[string]int)}
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	wf := llmctx.WorkflowFromContext(ctx)
	m.mu.Lock()
	n := m.calls[wf]
	m.calls[wf] = n + 1
	m.mu.Unlock()

	out, err := m.reply(wf, n, promptText(input))
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(out, nil), nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (m *fakeChatModel) Calls(workflow string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[workflow]
}

type fakeFactory struct {
	model *fakeChatModel
}

func (f *fakeFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.model, nil
}

func promptText(msgs []*schema.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.Content)
		for _, p := range m.MultiContent {
			sb.WriteString(p.Text)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

type fakeRenderer struct {
	mu    sync.Mutex
	count int
	err   error
}

func (r *fakeRenderer) Render(context.Context, *entity.Scene, *sandbox.Frame, entity.VisionAngle) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	if r.err != nil {
		return nil, r.err
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

// codeWithQuality 生成一段合法代码，quality 标记供假评审读取
func codeWithQuality(q int) string {
	return fmt.Sprintf(`{"title": "wave %d", "centers": "# quality:%d\ny = y + 0.1 * sin(tau * p + x)", "rgbs": "r = mix(r, 1, p)", "opacities": "a = a"}`, q, q)
}

var qualityMarker = regexp.MustCompile(`quality:(\d+)`)

func critiqueFromPrompt(prompt string) (string, error) {
	m := qualityMarker.FindStringSubmatch(prompt)
	if m == nil {
		return "", errors.New("no quality marker")
	}
	return fmt.Sprintf(`{"summary": "ok", "centers": "moves", "rgbs": "fades", "opacities": "static", "score": %s}`, m[1]), nil
}

// scriptedReply 代码阶段依次返回 qualities 对应的代码，评审读取代码中的标记打分
func scriptedReply(qualities ...int) replyFunc {
	return func(workflow string, call int, prompt string) (string, error) {
		switch workflow {
		case "animation_design":
			return "Move the points in a gentle wave.", nil
		case "animation_code":
			if call >= len(qualities) {
				return "", fmt.Errorf("unexpected code call %d", call)
			}
			return codeWithQuality(qualities[call]), nil
		case "animation_critique":
			return critiqueFromPrompt(prompt)
		default:
			return "", fmt.Errorf("unexpected workflow %q", workflow)
		}
	}
}

func newTestEngine(reply replyFunc, renderer Renderer) (*Engine, *fakeChatModel) {
	fm := newFakeChatModel(reply)
	factory := &fakeFactory{model: fm}
	if renderer == nil {
		renderer = &fakeRenderer{}
	}
	synth := NewSynthesizer(factory, SynthesizerConfig{})
	critic := NewCritic(factory, renderer, nil, CriticConfig{})
	return NewEngine(synth, critic, EngineConfig{Workers: 1, ProbeFrame: -1}), fm
}

func testConfig() entity.GeneratorConfig {
	return entity.GeneratorConfig{
		Title:             "wave",
		Description:       "a gentle wave across the sphere",
		Duration:          2,
		FPS:               8,
		DesignTemperature: 0.7,
		CodeTemperature:   0.2,
		VisionAngles:      []entity.VisionAngle{},
		NSamples:          3,
		NImproves:         1,
	}
}

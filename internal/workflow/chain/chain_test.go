package chain

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wfmodel "splat-anim-ai/internal/workflow/model"
	workflowport "splat-anim-ai/internal/workflow/port"
	"splat-anim-ai/pkg/logger"
)

func init() {
	logger.InitDiscard()
}

type scriptedReply struct {
	content string
	err     error
}

// scriptedModel 按顺序返回预设回复，记录每次收到的消息
type scriptedModel struct {
	mu      sync.Mutex
	replies []scriptedReply
	inputs  [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if len(m.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return schema.AssistantMessage(r.content, nil), nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

func factoryFor(m model.BaseChatModel) workflowport.ChatModelFactory {
	return workflowport.StaticFactory{
		DefaultName: "default",
		Models:      map[string]model.BaseChatModel{"default": m},
	}
}

func TestDesignChain(t *testing.T) {
	tests := []struct {
		name    string
		in      *wfmodel.DesignInput
		replies []scriptedReply
		wantErr bool
		want    string
	}{
		{
			name:    "plan returned",
			in:      &wfmodel.DesignInput{Title: "wave", Description: "points ripple outward", Duration: 2, FPS: 24},
			replies: []scriptedReply{{content: "ripple along x with a sine"}},
			want:    "ripple along x with a sine",
		},
		{
			name:    "blank description",
			in:      &wfmodel.DesignInput{Description: "   "},
			wantErr: true,
		},
		{
			name:    "empty reply",
			in:      &wfmodel.DesignInput{Description: "spin"},
			replies: []scriptedReply{{content: "  "}},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			in:      &wfmodel.DesignInput{Description: "spin", Provider: "missing"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &scriptedModel{replies: tt.replies}
			out, err := NewDesignChain(factoryFor(m)).Invoke(context.Background(), tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Content)
			require.Len(t, m.inputs, 1)
			assert.Contains(t, m.inputs[0][len(m.inputs[0])-1].Content, tt.in.Description)
		})
	}
}

func TestCodeChain(t *testing.T) {
	const fnJSON = `{"centers": "z = z + 0.1", "rgbs": "r = 1.0", "opacities": "o = o"}`

	tests := []struct {
		name      string
		in        *wfmodel.CodeInput
		replies   []scriptedReply
		wantErr   bool
		wantCalls int
		wantTitle string
	}{
		{
			name:      "json output keeps request title",
			in:        &wfmodel.CodeInput{Title: "lift", Description: "rise", Plan: "move up"},
			replies:   []scriptedReply{{content: fnJSON}},
			wantCalls: 1,
			wantTitle: "lift",
		},
		{
			name: "retries without response format",
			in:   &wfmodel.CodeInput{Title: "lift", Description: "rise"},
			replies: []scriptedReply{
				{err: errors.New("400: response_format is not supported by this model")},
				{content: "here you go\n" + fnJSON},
			},
			wantCalls: 2,
			wantTitle: "lift",
		},
		{
			name: "strict mode reads fenced blocks",
			in:   &wfmodel.CodeInput{Title: "lift", Description: "rise", Strict: true},
			replies: []scriptedReply{{content: "```centers\nz = z + 0.1\n```\n```rgbs\nr = 1.0\n```\n```opacities\no = o\n```"}},
			wantCalls: 1,
			wantTitle: "lift",
		},
		{
			name:      "other model errors are returned",
			in:        &wfmodel.CodeInput{Description: "rise"},
			replies:   []scriptedReply{{err: errors.New("rate limited")}},
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:      "unparseable output",
			in:        &wfmodel.CodeInput{Description: "rise"},
			replies:   []scriptedReply{{content: "I cannot do that"}},
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:    "blank description",
			in:      &wfmodel.CodeInput{Description: ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &scriptedModel{replies: tt.replies}
			out, err := NewCodeChain(factoryFor(m)).Invoke(context.Background(), tt.in)
			assert.Equal(t, tt.wantCalls, m.calls())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, out.Title)
			assert.Equal(t, "z = z + 0.1", out.Centers)
			assert.Equal(t, "r = 1.0", out.RGBs)
			assert.Equal(t, "o = o", out.Opacities)
		})
	}
}

func TestCritiqueChainAttachesImages(t *testing.T) {
	m := &scriptedModel{replies: []scriptedReply{{content: `{"summary": "too fast", "centers": "slow it", "rgbs": "ok", "opacities": "ok", "score": 4}`}}}
	in := &wfmodel.CritiqueInput{
		Title:       "wave",
		Description: "ripple",
		Centers:     "z = z",
		Views: []wfmodel.RenderedView{
			{Angle: "front", Frame: 0, PNG: []byte{0x89, 'P', 'N', 'G'}},
			{Angle: "back", Frame: 12, PNG: []byte{0x89, 'P', 'N', 'G'}},
		},
	}

	out, err := NewCritiqueChain(factoryFor(m)).Invoke(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 4.0, out.Score)
	assert.Equal(t, "too fast", out.Summary)

	require.Len(t, m.inputs, 1)
	user := m.inputs[0][len(m.inputs[0])-1]
	assert.Empty(t, user.Content)
	require.Len(t, user.MultiContent, 3)
	assert.Contains(t, user.MultiContent[0].Text, "image 2: angle=back frame=12")
	assert.Contains(t, user.MultiContent[1].ImageURL.URL, "data:image/png;base64,")
}

func TestCritiqueChainRequiresViews(t *testing.T) {
	m := &scriptedModel{}
	_, err := NewCritiqueChain(factoryFor(m)).Invoke(context.Background(), &wfmodel.CritiqueInput{Description: "x"})
	assert.Error(t, err)
	assert.Zero(t, m.calls())
}

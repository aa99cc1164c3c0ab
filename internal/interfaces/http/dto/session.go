package dto

import (
	"fmt"
	"strings"
	"time"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/domain/repository"
	"splat-anim-ai/internal/sandbox"
)

// SessionResponse 会话响应
type SessionResponse struct {
	ID                string                `json:"id"`
	Points            int                   `json:"points"`
	FPS               int                   `json:"fps"`
	RunID             string                `json:"run_id,omitempty"`
	ActiveAnimationID string                `json:"active_animation_id,omitempty"`
	ActiveAnimation   *entity.AnimationView `json:"active_animation,omitempty"`
	CreatedAt         string                `json:"created_at"`
}

// ToSessionResponse 构造会话响应
func ToSessionResponse(id string, points, fps int, evo *entity.AnimationEvolution, active *entity.Animation, createdAt time.Time) *SessionResponse {
	resp := &SessionResponse{
		ID:        id,
		Points:    points,
		FPS:       fps,
		CreatedAt: createdAt.Format(time.RFC3339),
	}
	if evo != nil {
		resp.RunID = evo.ID()
	}
	if active != nil {
		view := active.View()
		resp.ActiveAnimationID = active.ID()
		resp.ActiveAnimation = &view
	}
	return resp
}

// EvolutionResponse 谱系详情
type EvolutionResponse struct {
	Source    string                   `json:"source"`
	Evolution *entity.EvolutionSnapshot `json:"evolution,omitempty"`
	// Runs 仅在 source=snapshot 时返回
	Runs []SnapshotSummaryResponse `json:"runs,omitempty"`
}

// SnapshotSummaryResponse 快照索引项
type SnapshotSummaryResponse struct {
	RunID   string `json:"run_id"`
	TakenAt string `json:"taken_at"`
}

// ToSnapshotSummaries 转换快照索引
func ToSnapshotSummaries(in []repository.SnapshotSummary) []SnapshotSummaryResponse {
	out := make([]SnapshotSummaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, SnapshotSummaryResponse{RunID: s.RunID, TakenAt: s.TakenAt.Format(time.RFC3339Nano)})
	}
	return out
}

// FrameResponse 单帧数据
type FrameResponse struct {
	AnimationID string       `json:"animation_id"`
	Frame       int          `json:"frame"`
	FPS         int          `json:"fps"`
	Centers     [][3]float64 `json:"centers"`
	RGBs        [][3]float64 `json:"rgbs"`
	Opacities   []float64    `json:"opacities"`
}

// ToFrameResponse 转换帧数据
func ToFrameResponse(animationID string, fps int, f *sandbox.Frame) *FrameResponse {
	return &FrameResponse{
		AnimationID: animationID,
		Frame:       f.Index,
		FPS:         fps,
		Centers:     f.Centers,
		RGBs:        f.RGBs,
		Opacities:   f.Opacities,
	}
}

// FunctionsResponse 活动函数查看
type FunctionsResponse struct {
	AnimationID string           `json:"animation_id"`
	Functions   entity.Functions `json:"functions"`
	Markdown    string           `json:"markdown"`
}

// ToFunctionsResponse 以 markdown 渲染三段函数
func ToFunctionsResponse(a *entity.Animation) *FunctionsResponse {
	fns := a.Functions()
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", a.Title())
	for _, kind := range entity.FunctionKinds {
		code := strings.TrimSpace(fns.Get(kind))
		if code == "" {
			code = "# rest values"
		}
		fmt.Fprintf(&sb, "\n## %s\n```\n%s\n```\n", kind, code)
	}
	return &FunctionsResponse{AnimationID: a.ID(), Functions: fns, Markdown: sb.String()}
}

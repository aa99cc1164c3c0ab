package entity

import (
	"time"

	"github.com/google/uuid"
)

// FunctionKind 动画的三类逐帧函数
type FunctionKind string

const (
	FunctionCenters   FunctionKind = "centers"
	FunctionRGBs      FunctionKind = "rgbs"
	FunctionOpacities FunctionKind = "opacities"
)

// FunctionKinds 固定顺序的函数类型
var FunctionKinds = []FunctionKind{FunctionCenters, FunctionRGBs, FunctionOpacities}

// Functions 三个逐帧函数的源码
type Functions struct {
	Centers   string `json:"centers"`
	RGBs      string `json:"rgbs"`
	Opacities string `json:"opacities"`
}

// Get 按类型取函数源码
func (f Functions) Get(kind FunctionKind) string {
	switch kind {
	case FunctionCenters:
		return f.Centers
	case FunctionRGBs:
		return f.RGBs
	case FunctionOpacities:
		return f.Opacities
	default:
		return ""
	}
}

// IdentityFunctions 静止场景（零运动）的函数集合
func IdentityFunctions() Functions {
	return Functions{
		Centers:   "x = x\ny = y\nz = z",
		RGBs:      "r = r\ng = g\nb = b",
		Opacities: "a = a",
	}
}

// Summaries 视觉评审给出的逐函数总结
type Summaries struct {
	General   string `json:"general"`
	Centers   string `json:"centers"`
	RGBs      string `json:"rgbs"`
	Opacities string `json:"opacities"`
}

// Get 按类型取总结
func (s Summaries) Get(kind FunctionKind) string {
	switch kind {
	case FunctionCenters:
		return s.Centers
	case FunctionRGBs:
		return s.RGBs
	case FunctionOpacities:
		return s.Opacities
	default:
		return ""
	}
}

// Origin 动画来源
type Origin string

const (
	OriginSample   Origin = "sample"
	OriginImprove  Origin = "improve"
	OriginFeedback Origin = "feedback"
	OriginFallback Origin = "fallback"
)

// Animation 一个已校验的候选动画
// 创建后不可变：精修总是产生新的 Animation。
type Animation struct {
	id          string
	title       string
	description string
	duration    int
	functions   Functions
	summaries   Summaries
	score       float64
	origin      Origin
	parentID    string
	createdAt   time.Time
}

// AnimationParams 创建动画的参数
type AnimationParams struct {
	Title       string
	Description string
	Duration    int
	Functions   Functions
	Summaries   Summaries
	Score       float64
	Origin      Origin
	ParentID    string
}

// NewAnimation 创建动画
func NewAnimation(p AnimationParams) *Animation {
	return &Animation{
		id:          uuid.NewString(),
		title:       p.Title,
		description: p.Description,
		duration:    p.Duration,
		functions:   p.Functions,
		summaries:   p.Summaries,
		score:       p.Score,
		origin:      p.Origin,
		parentID:    p.ParentID,
		createdAt:   time.Now().UTC(),
	}
}

func (a *Animation) ID() string           { return a.id }
func (a *Animation) Title() string        { return a.title }
func (a *Animation) Description() string  { return a.description }
func (a *Animation) Duration() int        { return a.duration }
func (a *Animation) Functions() Functions { return a.functions }
func (a *Animation) Summaries() Summaries { return a.summaries }
func (a *Animation) Score() float64       { return a.score }
func (a *Animation) Origin() Origin       { return a.origin }
func (a *Animation) ParentID() string     { return a.parentID }
func (a *Animation) CreatedAt() time.Time { return a.createdAt }

// Fallback 是否为兜底的静止动画
func (a *Animation) Fallback() bool { return a.origin == OriginFallback }

// TotalFrames 指定帧率下的总帧数
func (a *Animation) TotalFrames(fps int) int {
	return a.duration * fps
}

// AnimationView 动画的可序列化视图
type AnimationView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    int       `json:"duration"`
	Functions   Functions `json:"functions"`
	Summaries   Summaries `json:"summaries"`
	Score       float64   `json:"score"`
	Origin      Origin    `json:"origin"`
	ParentID    string    `json:"parent_id,omitempty"`
	Fallback    bool      `json:"fallback"`
	CreatedAt   time.Time `json:"created_at"`
}

// View 返回可序列化视图
func (a *Animation) View() AnimationView {
	return AnimationView{
		ID:          a.id,
		Title:       a.title,
		Description: a.description,
		Duration:    a.duration,
		Functions:   a.functions,
		Summaries:   a.summaries,
		Score:       a.score,
		Origin:      a.origin,
		ParentID:    a.parentID,
		Fallback:    a.Fallback(),
		CreatedAt:   a.createdAt,
	}
}

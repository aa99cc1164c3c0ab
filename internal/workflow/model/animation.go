package model

// DesignInput 设计阶段输入：描述 -> 运动设计方案（纯文本）
type DesignInput struct {
	Title       string
	Description string
	Duration    int
	FPS         int

	// ContextBlock 改进/反馈时附带的上下文（当前代码、评审总结、反馈文本）
	ContextBlock string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// CodeInput 代码阶段输入：设计方案 -> 三个函数体
type CodeInput struct {
	Title       string
	Description string
	Duration    int
	FPS         int

	Plan         string
	ContextBlock string

	// Strict 使用更严格的兜底提示词
	Strict bool

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// CodeOutput 代码阶段输出
type CodeOutput struct {
	Title     string `json:"title"`
	Centers   string `json:"centers"`
	RGBs      string `json:"rgbs"`
	Opacities string `json:"opacities"`
}

// RenderedView 送给视觉模型的一张渲染图
type RenderedView struct {
	Angle string
	Frame int
	PNG   []byte
}

// CritiqueInput 视觉评审输入
type CritiqueInput struct {
	Title       string
	Description string
	Duration    int
	FPS         int

	Centers   string
	RGBs      string
	Opacities string

	Views []RenderedView

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// CritiqueOutput 视觉评审输出，Score 为 1..10
type CritiqueOutput struct {
	Summary   string  `json:"summary"`
	Centers   string  `json:"centers"`
	RGBs      string  `json:"rgbs"`
	Opacities string  `json:"opacities"`
	Score     float64 `json:"score"`
}

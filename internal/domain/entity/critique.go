package entity

// NeutralScore 未进行评审或评审失败时的中性分数
const NeutralScore = 0.5

// Critique 视觉评审结果，Score 已归一化到 [0,1]
type Critique struct {
	Summaries Summaries `json:"summaries"`
	Score     float64   `json:"score"`
	// Neutral 为 true 表示未实际评审（无视角或评审失败）
	Neutral bool `json:"neutral"`
}

// NeutralCritique 中性评审结果
func NeutralCritique() Critique {
	return Critique{Score: NeutralScore, Neutral: true}
}

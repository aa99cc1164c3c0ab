package node

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	wfmodel "splat-anim-ai/internal/workflow/model"
)

// fencedBlock 匹配 ```centers ... ``` 形式的代码块
var fencedBlock = regexp.MustCompile("(?s)```[ \\t]*([A-Za-z_]+)[^\\n]*\\n(.*?)```")

// ParseCodeOutput 解析代码阶段的模型输出
// 优先解析第一个 JSON 对象；失败时退回到三个带标签的代码块。
func ParseCodeOutput(raw string) (*wfmodel.CodeOutput, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty model output")
	}

	var out wfmodel.CodeOutput
	if err := json.Unmarshal([]byte(firstJSONObject(text)), &out); err == nil && (out.Centers != "" || out.RGBs != "" || out.Opacities != "") {
		return &out, nil
	}

	blocks := ExtractFencedBlocks(text)
	fb := wfmodel.CodeOutput{
		Centers:   blocks["centers"],
		RGBs:      blocks["rgbs"],
		Opacities: blocks["opacities"],
	}
	if fb.Centers == "" || fb.RGBs == "" || fb.Opacities == "" {
		return nil, fmt.Errorf("model output contains neither a code JSON object nor labelled code blocks")
	}
	return &fb, nil
}

// ExtractFencedBlocks 按语言标签收集代码块，同名标签取第一个
func ExtractFencedBlocks(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range fencedBlock.FindAllStringSubmatch(s, -1) {
		label := strings.ToLower(strings.TrimSpace(m[1]))
		if _, ok := out[label]; ok {
			continue
		}
		out[label] = strings.TrimSpace(m[2])
	}
	return out
}

// ParseCritiqueOutput 解析视觉评审输出
func ParseCritiqueOutput(raw string) (*wfmodel.CritiqueOutput, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty model output")
	}
	var out wfmodel.CritiqueOutput
	if err := json.Unmarshal([]byte(firstJSONObject(text)), &out); err != nil {
		return nil, fmt.Errorf("decode critique: %w", err)
	}
	if out.Score < 1 || out.Score > 10 {
		return nil, fmt.Errorf("critique score %v out of range [1, 10]", out.Score)
	}
	return &out, nil
}

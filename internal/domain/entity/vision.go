package entity

import (
	"fmt"
	"strings"
)

// VisionAngle 视觉评审使用的相机视角
type VisionAngle string

const (
	AngleFront      VisionAngle = "front"
	AngleFrontLeft  VisionAngle = "front-left"
	AngleLeft       VisionAngle = "left"
	AngleBackLeft   VisionAngle = "back-left"
	AngleBack       VisionAngle = "back"
	AngleBackRight  VisionAngle = "back-right"
	AngleRight      VisionAngle = "right"
	AngleFrontRight VisionAngle = "front-right"
)

// AllVisionAngles 全部视角，按绕场景一周的顺序排列
var AllVisionAngles = []VisionAngle{
	AngleFront, AngleFrontLeft, AngleLeft, AngleBackLeft,
	AngleBack, AngleBackRight, AngleRight, AngleFrontRight,
}

// 视角预设
const (
	VisionPresetNone         = "none"
	VisionPresetFront        = "front"
	VisionPresetFrontBackLRs = "front + back + sides"
	VisionPresetAll          = "all"
)

// Yaw 返回视角绕 Y 轴的偏航角（度）
func (a VisionAngle) Yaw() (float64, bool) {
	for i, v := range AllVisionAngles {
		if v == a {
			return float64(i) * 45, true
		}
	}
	return 0, false
}

// VisionAnglesFromPreset 将预设名称展开为视角列表，未知预设返回空列表
func VisionAnglesFromPreset(preset string) []VisionAngle {
	switch strings.TrimSpace(preset) {
	case VisionPresetFront:
		return []VisionAngle{AngleFront}
	case VisionPresetFrontBackLRs:
		return []VisionAngle{AngleFront, AngleBack, AngleLeft, AngleRight}
	case VisionPresetAll:
		out := make([]VisionAngle, len(AllVisionAngles))
		copy(out, AllVisionAngles)
		return out
	default:
		return []VisionAngle{}
	}
}

// ParseVisionAngles 解析视角标签列表，拒绝未知或重复的标签
func ParseVisionAngles(labels []string) ([]VisionAngle, error) {
	out := make([]VisionAngle, 0, len(labels))
	seen := make(map[VisionAngle]struct{}, len(labels))
	for _, l := range labels {
		a := VisionAngle(strings.ToLower(strings.TrimSpace(l)))
		if _, ok := a.Yaw(); !ok {
			return nil, fmt.Errorf("unknown vision angle %q", l)
		}
		if _, dup := seen[a]; dup {
			return nil, fmt.Errorf("duplicated vision angle %q", l)
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

package entity

import (
	"fmt"
	"strings"
)

// 生成参数取值范围
const (
	MinDuration    = 1
	MaxDuration    = 10
	MinTemperature = 0.0
	MaxTemperature = 2.0
	DefaultFPS     = 24
)

// SupportedFPS 播放支持的帧率
var SupportedFPS = []int{8, 24, 50}

// GeneratorConfig 单次生成运行的不可变输入
type GeneratorConfig struct {
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Duration          int           `json:"duration"`
	FPS               int           `json:"fps"`
	DesignTemperature float32       `json:"design_temperature"`
	CodeTemperature   float32       `json:"code_temperature"`
	VisionAngles      []VisionAngle `json:"vision_angles"`
	NSamples          int           `json:"n_samples"`
	NImproves         int           `json:"n_improves"`
}

// Validate 校验参数范围
func (c GeneratorConfig) Validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if c.Duration < MinDuration || c.Duration > MaxDuration {
		return fmt.Errorf("duration must be within [%d, %d], got %d", MinDuration, MaxDuration, c.Duration)
	}
	if !isSupportedFPS(c.FPS) {
		return fmt.Errorf("fps must be one of %v, got %d", SupportedFPS, c.FPS)
	}
	if c.DesignTemperature < MinTemperature || c.DesignTemperature > MaxTemperature {
		return fmt.Errorf("design_temperature must be within [0, 2], got %v", c.DesignTemperature)
	}
	if c.CodeTemperature < MinTemperature || c.CodeTemperature > MaxTemperature {
		return fmt.Errorf("code_temperature must be within [0, 2], got %v", c.CodeTemperature)
	}
	if c.NSamples < 1 {
		return fmt.Errorf("n_samples must be >= 1, got %d", c.NSamples)
	}
	if c.NImproves < 0 {
		return fmt.Errorf("n_improves must be >= 0, got %d", c.NImproves)
	}
	labels := make([]string, len(c.VisionAngles))
	for i, a := range c.VisionAngles {
		labels[i] = string(a)
	}
	if _, err := ParseVisionAngles(labels); err != nil {
		return err
	}
	return nil
}

// WithDefaults 补全未设置的字段
func (c GeneratorConfig) WithDefaults() GeneratorConfig {
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
	if c.NSamples == 0 {
		c.NSamples = 1
	}
	if c.Duration == 0 {
		c.Duration = MinDuration
	}
	if strings.TrimSpace(c.Title) == "" {
		c.Title = "Untitled"
	}
	angles := make([]VisionAngle, len(c.VisionAngles))
	copy(angles, c.VisionAngles)
	c.VisionAngles = angles
	return c
}

// TotalFrames 返回动画总帧数
func (c GeneratorConfig) TotalFrames() int {
	return c.Duration * c.FPS
}

// HasVision 是否启用视觉评审
func (c GeneratorConfig) HasVision() bool {
	return len(c.VisionAngles) > 0
}

func isSupportedFPS(fps int) bool {
	for _, v := range SupportedFPS {
		if v == fps {
			return true
		}
	}
	return false
}

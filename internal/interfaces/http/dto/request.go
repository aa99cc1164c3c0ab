// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"splat-anim-ai/internal/domain/entity"
)

// defaultTemperature 未指定时两阶段的采样温度
const defaultTemperature float32 = 1.0

// SceneRequest 内联点云
type SceneRequest struct {
	Centers   [][3]float64 `json:"centers" binding:"required"`
	RGBs      [][3]float64 `json:"rgbs" binding:"required"`
	Opacities []float64    `json:"opacities" binding:"required"`
}

// CreateSessionRequest 创建会话请求；不带场景时使用演示球体
type CreateSessionRequest struct {
	Scene *SceneRequest `json:"scene,omitempty"`
	FPS   int           `json:"fps,omitempty"`
}

// ToScene 构造场景实体
func (r *CreateSessionRequest) ToScene() (*entity.Scene, error) {
	if r == nil || r.Scene == nil {
		return nil, nil
	}
	return entity.NewScene(r.Scene.Centers, r.Scene.RGBs, r.Scene.Opacities)
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	Title             string   `json:"title"`
	Description       string   `json:"description" binding:"required"`
	Duration          int      `json:"duration"`
	FPS               int      `json:"fps"`
	DesignTemperature *float32 `json:"design_temperature,omitempty"`
	CodeTemperature   *float32 `json:"code_temperature,omitempty"`
	// VisionAngles 显式视角列表，优先于 VisionPreset
	VisionAngles []string `json:"vision_angles,omitempty"`
	VisionPreset string   `json:"vision_preset,omitempty"`
	NSamples     int      `json:"n_samples"`
	NImproves    int      `json:"n_improves"`
}

// ToConfig 转换为生成配置
func (r *GenerateRequest) ToConfig() (entity.GeneratorConfig, error) {
	cfg := entity.GeneratorConfig{
		Title:             strings.TrimSpace(r.Title),
		Description:       strings.TrimSpace(r.Description),
		Duration:          r.Duration,
		FPS:               r.FPS,
		DesignTemperature: defaultTemperature,
		CodeTemperature:   defaultTemperature,
		NSamples:          r.NSamples,
		NImproves:         r.NImproves,
	}
	if r.DesignTemperature != nil {
		cfg.DesignTemperature = *r.DesignTemperature
	}
	if r.CodeTemperature != nil {
		cfg.CodeTemperature = *r.CodeTemperature
	}

	if len(r.VisionAngles) > 0 {
		angles, err := entity.ParseVisionAngles(r.VisionAngles)
		if err != nil {
			return cfg, err
		}
		cfg.VisionAngles = angles
	} else {
		preset := strings.TrimSpace(r.VisionPreset)
		if preset == "" {
			preset = entity.VisionPresetNone
		}
		switch preset {
		case entity.VisionPresetNone, entity.VisionPresetFront, entity.VisionPresetFrontBackLRs, entity.VisionPresetAll:
		default:
			return cfg, fmt.Errorf("unknown vision preset %q", preset)
		}
		cfg.VisionAngles = entity.VisionAnglesFromPreset(preset)
	}
	return cfg, nil
}

// FeedbackRequest 人工反馈请求
type FeedbackRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// SetActiveRequest 选择活动动画请求
type SetActiveRequest struct {
	AnimationID string `json:"animation_id" binding:"required"`
}

// SetFPSRequest 修改帧率请求
type SetFPSRequest struct {
	FPS int `json:"fps" binding:"required"`
}

// BindSessionID 从 URI 绑定会话 ID
func BindSessionID(c *gin.Context) string {
	return c.Param("id")
}

// BindFrame 从 URI 绑定帧序号
func BindFrame(c *gin.Context) (int, error) {
	v, err := strconv.Atoi(c.Param("frame"))
	if err != nil {
		return 0, fmt.Errorf("invalid frame %q", c.Param("frame"))
	}
	return v, nil
}

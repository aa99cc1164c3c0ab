// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"splat-anim-ai/internal/application/session"
	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/interfaces/http/dto"
	"splat-anim-ai/pkg/errors"
	"splat-anim-ai/pkg/logger"
)

// SessionHandler 会话处理器
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) sessionResponse(s *session.Session) *dto.SessionResponse {
	return dto.ToSessionResponse(s.ID(), s.Scene().Len(), s.FPS(), s.Evolution(), s.Active(), s.CreatedAt())
}

// CreateSession 创建会话
// @Summary 创建会话
// @Description 使用内联点云或演示球体创建查看会话
// @Tags Sessions
// @Accept json
// @Produce json
// @Param body body dto.CreateSessionRequest false "场景"
// @Success 201 {object} dto.Response[dto.SessionResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	scene, err := req.ToScene()
	if err != nil {
		dto.BadRequest(c, "invalid scene: "+err.Error())
		return
	}

	s := h.sessions.Create(ctx, scene)
	if req.FPS != 0 {
		if err := h.sessions.SetFPS(s.ID(), req.FPS); err != nil {
			_ = h.sessions.Delete(ctx, s.ID())
			dto.FromError(c, err)
			return
		}
	}
	dto.Created(c, h.sessionResponse(s))
}

// GetSession 获取会话
// @Summary 获取会话
// @Tags Sessions
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(dto.BindSessionID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, h.sessionResponse(s))
}

// DeleteSession 关闭会话
// @Summary 关闭会话
// @Description 取消进行中的运行并删除谱系快照
// @Tags Sessions
// @Param id path string true "会话 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), dto.BindSessionID(c)); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}

// Generate 生成新动画
// @Summary 生成新动画
// @Description 同步执行采样与自动改进，取代该会话中进行中的运行
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param body body dto.GenerateRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.EvolutionResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/generate [post]
func (h *SessionHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	cfg, err := req.ToConfig()
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	evo, err := h.sessions.Generate(ctx, dto.BindSessionID(c), cfg)
	if err != nil {
		if !errors.IsAppError(err) {
			logger.Error(ctx, "failed to generate animation", err)
		}
		dto.FromError(c, err)
		return
	}
	snap := evo.Snapshot()
	dto.Success(c, &dto.EvolutionResponse{Source: "live", Evolution: &snap})
}

// Feedback 按人工反馈精修当前动画
// @Summary 精修当前动画
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param body body dto.FeedbackRequest true "反馈"
// @Success 200 {object} dto.Response[entity.AnimationView]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/feedback [post]
func (h *SessionHandler) Feedback(c *gin.Context) {
	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	anim, err := h.sessions.Feedback(c.Request.Context(), dto.BindSessionID(c), req.Feedback)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, anim.View())
}

// GetEvolution 获取谱系详情
// @Summary 获取谱系详情
// @Description source=snapshot 时从快照存储读取最近一次保存的谱系
// @Tags Sessions
// @Produce json
// @Param id path string true "会话 ID"
// @Param source query string false "live 或 snapshot" default(live)
// @Success 200 {object} dto.Response[dto.EvolutionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/evolution [get]
func (h *SessionHandler) GetEvolution(c *gin.Context) {
	ctx := c.Request.Context()
	id := dto.BindSessionID(c)

	if strings.EqualFold(c.Query("source"), "snapshot") {
		runs, err := h.sessions.Snapshots(ctx, id)
		if err != nil {
			logger.Error(ctx, "failed to list evolution snapshots", err)
			dto.FromError(c, errors.Wrap(err, errors.CodeCacheError, "snapshot store unavailable"))
			return
		}
		latest, err := h.sessions.LatestSnapshot(ctx, id)
		if err != nil {
			logger.Error(ctx, "failed to load evolution snapshot", err)
			dto.FromError(c, errors.Wrap(err, errors.CodeCacheError, "snapshot store unavailable"))
			return
		}
		if latest == nil {
			dto.NotFound(c, "no evolution snapshot")
			return
		}
		dto.Success(c, &dto.EvolutionResponse{Source: "snapshot", Evolution: latest, Runs: dto.ToSnapshotSummaries(runs)})
		return
	}

	s, err := h.sessions.Get(id)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	evo := s.Evolution()
	if evo == nil {
		dto.FromError(c, errors.ErrNoAnimation)
		return
	}
	snap := evo.Snapshot()
	dto.Success(c, &dto.EvolutionResponse{Source: "live", Evolution: &snap})
}

// SetActive 选择活动动画
// @Summary 选择活动动画
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param body body dto.SetActiveRequest true "动画 ID"
// @Success 200 {object} dto.Response[entity.AnimationView]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/active [put]
func (h *SessionHandler) SetActive(c *gin.Context) {
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	anim, err := h.sessions.SetActive(dto.BindSessionID(c), req.AnimationID)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, anim.View())
}

// SetFPS 修改播放帧率
// @Summary 修改播放帧率
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param body body dto.SetFPSRequest true "帧率"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/fps [put]
func (h *SessionHandler) SetFPS(c *gin.Context) {
	var req dto.SetFPSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	id := dto.BindSessionID(c)
	if err := h.sessions.SetFPS(id, req.FPS); err != nil {
		dto.FromError(c, err)
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, h.sessionResponse(s))
}

// GetFrame 计算活动动画的一帧
// @Summary 获取帧数据
// @Tags Playback
// @Produce json
// @Param id path string true "会话 ID"
// @Param frame path int true "帧序号"
// @Success 200 {object} dto.Response[dto.FrameResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/frames/{frame} [get]
func (h *SessionHandler) GetFrame(c *gin.Context) {
	index, err := dto.BindFrame(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	id := dto.BindSessionID(c)
	frame, anim, err := h.sessions.Frame(c.Request.Context(), id, index)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToFrameResponse(anim.ID(), s.FPS(), frame))
}

// GetFunctions 查看活动动画的函数
// @Summary 查看活动函数
// @Tags Playback
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.FunctionsResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/functions [get]
func (h *SessionHandler) GetFunctions(c *gin.Context) {
	s, err := h.sessions.Get(dto.BindSessionID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	anim := s.Active()
	if anim == nil {
		dto.FromError(c, errors.ErrNoAnimation)
		return
	}
	dto.Success(c, dto.ToFunctionsResponse(anim))
}

// Render 渲染预览图
// @Summary 渲染预览图
// @Tags Playback
// @Produce png
// @Param id path string true "会话 ID"
// @Param frame path int true "帧序号"
// @Param angle query string false "视角" default(front)
// @Success 200 {file} binary
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/render/{frame} [get]
func (h *SessionHandler) Render(c *gin.Context) {
	ctx := c.Request.Context()
	index, err := dto.BindFrame(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	label := c.DefaultQuery("angle", string(entity.AngleFront))
	angles, err := entity.ParseVisionAngles([]string{label})
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	png, err := h.sessions.Render(ctx, dto.BindSessionID(c), index, angles[0])
	if err != nil {
		if !errors.IsAppError(err) {
			logger.Error(ctx, "failed to render frame", err)
			err = errors.Wrap(err, errors.CodeRenderError, "render failed")
		}
		dto.FromError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

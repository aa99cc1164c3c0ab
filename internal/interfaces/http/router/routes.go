package router

import (
	"github.com/gin-gonic/gin"

	"splat-anim-ai/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
// limit 只作用于触发 LLM 调用的接口。
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	sessionHandler *handler.SessionHandler,
	streamHandler *handler.StreamHandler,
	limit gin.HandlerFunc,
) {
	sessions := v1.Group("/sessions")
	{
		sessions.POST("", sessionHandler.CreateSession)
		sessions.GET("/:id", sessionHandler.GetSession)
		sessions.DELETE("/:id", sessionHandler.DeleteSession)

		// 生成与精修
		sessions.POST("/:id/generate", limit, sessionHandler.Generate)
		sessions.POST("/:id/feedback", limit, sessionHandler.Feedback)

		// 谱系与选择
		sessions.GET("/:id/evolution", sessionHandler.GetEvolution)
		sessions.PUT("/:id/active", sessionHandler.SetActive)

		// 播放
		sessions.PUT("/:id/fps", sessionHandler.SetFPS)
		sessions.GET("/:id/frames/:frame", sessionHandler.GetFrame)
		sessions.GET("/:id/functions", sessionHandler.GetFunctions)
		sessions.GET("/:id/render/:frame", sessionHandler.Render)

		// 事件流
		sessions.GET("/:id/events", streamHandler.Events)
	}
}

// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"splat-anim-ai/pkg/errors"
	"splat-anim-ai/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery Panic 恢复中间件
// SSE 等已开始写出的响应只能中断连接，不再写错误体。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"route", c.FullPath(),
				"session_id", c.Param("id"),
				"method", c.Request.Method,
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":       http.StatusInternalServerError,
				"message":    "internal server error",
				"error":      gin.H{"error_code": errors.CodeInternalError},
				"trace_id":   c.GetString("trace_id"),
				"request_id": c.GetString("request_id"),
			})
		}()

		c.Next()
	}
}

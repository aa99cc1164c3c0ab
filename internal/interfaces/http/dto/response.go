package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"splat-anim-ai/pkg/errors"
)

// Response 统一响应结构
type Response[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Code      int          `json:"code"`
	Message   string       `json:"message"`
	Error     *ErrorDetail `json:"error,omitempty"`
	TraceID   string       `json:"trace_id,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

func reply[T any](c *gin.Context, status int, message string, data T) {
	c.JSON(status, Response[T]{
		Code:      status,
		Message:   message,
		Data:      data,
		TraceID:   c.GetString("trace_id"),
		RequestID: c.GetString("request_id"),
	})
}

func replyError(c *gin.Context, status int, message string, detail *ErrorDetail) {
	c.JSON(status, ErrorResponse{
		Code:      status,
		Message:   message,
		Error:     detail,
		TraceID:   c.GetString("trace_id"),
		RequestID: c.GetString("request_id"),
	})
}

// Success 返回 200
func Success[T any](c *gin.Context, data T) {
	reply(c, http.StatusOK, "success", data)
}

// Created 返回 201
func Created[T any](c *gin.Context, data T) {
	reply(c, http.StatusCreated, "created", data)
}

// NoContent 返回 204
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, message string) {
	replyError(c, http.StatusBadRequest, message, &ErrorDetail{ErrorCode: string(errors.CodeInvalidParam)})
}

// NotFound 资源不存在
func NotFound(c *gin.Context, message string) {
	replyError(c, http.StatusNotFound, message, &ErrorDetail{ErrorCode: string(errors.CodeNotFound)})
}

// FromError 按 AppError 映射状态码；非 AppError 视为 500，且不向客户端暴露内部错误
func FromError(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	detail := appErr.Detail
	if detail == "" && appErr.Err != nil && status < http.StatusInternalServerError {
		detail = appErr.Err.Error()
	}
	replyError(c, status, appErr.Message, &ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   detail,
	})
}

// Package errors 提供统一的错误定义
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"
	CodeCanceled           ErrorCode = "1009"

	// 资源错误 (3xxx)
	CodeSessionNotFound   ErrorCode = "3001"
	CodeAnimationNotFound ErrorCode = "3002"
	CodeNoAnimation       ErrorCode = "3003"

	// 业务错误 (4xxx)
	CodeSynthesisFailure  ErrorCode = "4001"
	CodeSandboxViolation  ErrorCode = "4002"
	CodeRuntimeFault      ErrorCode = "4003"
	CodeRefinementFailure ErrorCode = "4004"
	CodeGenerationFailed  ErrorCode = "4005"
	CodeLLMCallFailed     ErrorCode = "4006"
	CodeSuperseded        ErrorCode = "4007"

	// 外部服务错误 (5xxx)
	CodeCacheError       ErrorCode = "5002"
	CodeRenderError      ErrorCode = "5004"
	CodeLLMProviderError ErrorCode = "5005"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = msg + " (" + e.Detail + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码匹配，使 errors.Is(err, ErrSandboxViolation) 对包装后的错误同样成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 返回携带详细信息的副本
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 返回携带底层错误的副本
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound, CodeSessionNotFound, CodeAnimationNotFound, CodeNoAnimation:
		return http.StatusNotFound
	case CodeConflict, CodeSuperseded:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeRefinementFailure, CodeSynthesisFailure, CodeSandboxViolation, CodeRuntimeFault:
		return http.StatusUnprocessableEntity
	case CodeLLMProviderError, CodeLLMCallFailed:
		return http.StatusBadGateway
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")
	ErrCanceled           = New(CodeCanceled, "operation canceled")

	ErrSessionNotFound   = New(CodeSessionNotFound, "session not found")
	ErrAnimationNotFound = New(CodeAnimationNotFound, "animation not found")
	ErrNoAnimation       = New(CodeNoAnimation, "no animation generated yet")

	ErrSynthesisFailure  = New(CodeSynthesisFailure, "synthesis failure")
	ErrSandboxViolation  = New(CodeSandboxViolation, "sandbox violation")
	ErrRuntimeFault      = New(CodeRuntimeFault, "runtime fault")
	ErrRefinementFailure = New(CodeRefinementFailure, "refinement failure")
	ErrGenerationFailed  = New(CodeGenerationFailed, "animation generation failed")
	ErrLLMCallFailed     = New(CodeLLMCallFailed, "LLM call failed")
	ErrSuperseded        = New(CodeSuperseded, "evolution superseded by a newer run")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.Canceled) {
		return Wrap(err, CodeCanceled, "operation canceled")
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

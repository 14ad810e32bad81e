// Package errors 提供统一的错误定义
package errors

import (
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
	CodeNotFound           ErrorCode = "1002"
	CodeConflict           ErrorCode = "1003"
	CodeInternalError      ErrorCode = "1004"
	CodeServiceUnavailable ErrorCode = "1005"
	CodeConfigurationError ErrorCode = "1006"

	// 内容结构错误 (2xxx)
	CodeUnknownContentType ErrorCode = "2001"
	CodeNoDocumentFound    ErrorCode = "2002"
	CodeMalformedDocument  ErrorCode = "2003"
	CodeBadEnvelope        ErrorCode = "2004"
	CodeIncompleteDocument ErrorCode = "2005"
	CodeDanglingReference  ErrorCode = "2006"

	// 模型提供商错误 (3xxx)
	CodeProviderError   ErrorCode = "3001"
	CodeProviderTimeout ErrorCode = "3002"

	// H5P 托管服务错误 (4xxx)
	CodeSubmissionRejected    ErrorCode = "4001"
	CodeSubmissionUnavailable ErrorCode = "4002"
	CodeSubmissionTimeout     ErrorCode = "4003"

	// 会话/流程错误 (5xxx)
	CodeSessionNotFound    ErrorCode = "5001"
	CodeStageViolation     ErrorCode = "5002"
	CodeGenerationExceeded ErrorCode = "5003"
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
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
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
	case CodeInvalidParam, CodeUnknownContentType, CodeMalformedDocument,
		CodeBadEnvelope, CodeIncompleteDocument, CodeDanglingReference,
		CodeStageViolation:
		return http.StatusBadRequest
	case CodeNotFound, CodeSessionNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeProviderTimeout, CodeSubmissionTimeout:
		return http.StatusGatewayTimeout
	case CodeServiceUnavailable, CodeSubmissionUnavailable:
		return http.StatusServiceUnavailable
	case CodeProviderError, CodeSubmissionRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrUnknownContentType = New(CodeUnknownContentType, "unknown content type")
	ErrNoDocumentFound    = New(CodeNoDocumentFound, "no content document in reply")
	ErrSessionNotFound    = New(CodeSessionNotFound, "session not found")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError 将错误转换为 AppError，沿错误链向下查找
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// HasCode 检查错误链上是否携带指定错误码
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Tag 错误类别标签
type Tag string

const (
	TagNotFound            Tag = "NotFound"
	TagIntegrityViolation  Tag = "IntegrityViolation"
	TagConflictingEnum     Tag = "ConflictingEnum"
	TagDuplicatePair       Tag = "DuplicatePair"
	TagUpstreamUnavailable Tag = "UpstreamUnavailable"
	TagTimeout             Tag = "Timeout"
	TagValidationFailed    Tag = "ValidationFailed"
	TagNotAuthorized       Tag = "NotAuthorized"
	TagCapacityExceeded    Tag = "CapacityExceeded"
)

// Error 领域错误，携带机器标签和可读信息
type Error struct {
	Tag     Tag    `json:"tag"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tag, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New 创建领域错误
func New(tag Tag, message string) *Error {
	return &Error{Tag: tag, Message: message}
}

// Newf 创建带格式化信息的领域错误
func Newf(tag Tag, format string, args ...interface{}) *Error {
	return &Error{Tag: tag, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并附加标签
func Wrap(tag Tag, message string, cause error) *Error {
	return &Error{Tag: tag, Message: message, cause: cause}
}

// TagOf 提取错误标签，非领域错误返回空串
func TagOf(err error) Tag {
	var e *Error
	if errors.As(err, &e) {
		return e.Tag
	}
	return ""
}

// Has 判断错误是否带有指定标签
func Has(err error, tag Tag) bool {
	return TagOf(err) == tag
}

// HTTPStatus 将错误标签映射为HTTP状态码
// 校验失败与查无资源同样回404，上游故障和超时回503
func HTTPStatus(err error) int {
	switch TagOf(err) {
	case TagNotFound, TagValidationFailed:
		return http.StatusNotFound
	case TagConflictingEnum:
		return http.StatusBadRequest
	case TagIntegrityViolation, TagDuplicatePair, TagCapacityExceeded:
		return http.StatusConflict
	case TagNotAuthorized:
		return http.StatusForbidden
	case TagUpstreamUnavailable, TagTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

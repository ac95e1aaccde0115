package eventum

import (
	"errors"
	"fmt"

	xerrors "github.com/tokmz/eventum/pkg/errors"
)

// 握手阶段错误，由 ExceptionTranslator 转换为 HTTP 响应
var (
	// ErrRouteNotFound 握手路径未注册（404 Not Found）
	ErrRouteNotFound = xerrors.New(2001, 404, "Not Found", nil)
	// ErrRequiredHeadersMissing 缺少必需请求头（400 Missing required headers）
	ErrRequiredHeadersMissing = xerrors.New(2002, 400, "Missing required headers", nil)
)

var (
	// ErrValidationFailed 事件数据未通过校验
	ErrValidationFailed = errors.New("eventum: validation failed")
	// ErrDisconnected 连接已断开
	ErrDisconnected = errors.New("eventum: disconnected")
	// ErrInvalidPayload 入站数据不是 JSON 对象
	ErrInvalidPayload = errors.New("eventum: invalid payload")
)

// DisconnectedError 连接断开错误，errors.Is(err, ErrDisconnected) 成立
type DisconnectedError struct {
	ConnectionID string
	Code         int
}

func (e *DisconnectedError) Error() string {
	return fmt.Sprintf("Connection with id: %s got disconnected", e.ConnectionID)
}

// Is 匹配 ErrDisconnected
func (e *DisconnectedError) Is(target error) bool {
	return target == ErrDisconnected
}

// ValidationError 校验失败，携带校验器返回的原因
type ValidationError struct {
	Event string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("eventum: event %q validation failed: %v", e.Event, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is 匹配 ErrValidationFailed
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

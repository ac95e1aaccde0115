package errors

import (
	"errors"
	"maps"
	"net/http"
)

// Error 携带 HTTP 语义的错误
//
// 握手阶段返回的 *Error 会被 ExceptionTranslator 转换为一次 HTTP 响应，
// 状态码取 HttpCode，响应体取 Message，附加头取 Headers。
type Error struct {
	Code     int         `json:"code"`    // 错误码
	Message  string      `json:"message"` // 错误信息（同时作为响应体）
	HttpCode int         `json:"-"`       // http状态码
	Headers  http.Header `json:"-"`       // 附加响应头
	Err      error       `json:"-"`       // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// Unwrap 实现 errors.Unwrap 接口
func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建新的错误
// code 错误码
// httpCode http状态码，<=0 时使用 500
// message 错误信息
// err 原始错误，可为 nil
func New(code, httpCode int, message string, err error) *Error {
	if httpCode <= 0 {
		httpCode = http.StatusInternalServerError
	}
	return &Error{
		Code:     code,
		HttpCode: httpCode,
		Message:  message,
		Err:      err,
	}
}

// Clone 克隆错误（避免修改共享的预定义错误）
func (e *Error) Clone() *Error {
	return &Error{
		Code:     e.Code,
		HttpCode: e.HttpCode,
		Message:  e.Message,
		Headers:  e.Headers.Clone(),
		Err:      e.Err,
	}
}

// WithError 添加原始错误（返回新实例，不修改原错误）
func (e *Error) WithError(err error) *Error {
	c := e.Clone()
	c.Err = err
	return c
}

// WithMessage 替换错误信息（返回新实例，不修改原错误）
func (e *Error) WithMessage(message string) *Error {
	c := e.Clone()
	c.Message = message
	return c
}

// WithHeader 追加响应头（返回新实例，不修改原错误）
func (e *Error) WithHeader(key, value string) *Error {
	c := e.Clone()
	if c.Headers == nil {
		c.Headers = make(http.Header)
	}
	c.Headers.Add(key, value)
	return c
}

// WithHeaders 合并一组响应头（返回新实例，不修改原错误）
func (e *Error) WithHeaders(h http.Header) *Error {
	c := e.Clone()
	if c.Headers == nil {
		c.Headers = make(http.Header, len(h))
	}
	maps.Copy(c.Headers, h.Clone())
	return c
}

// Body 返回响应体
func (e *Error) Body() []byte {
	return []byte(e.Message)
}

// Is 检查错误是否为指定类型
// 当 target 也是 *Error 时，比较 Code 是否相同
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if ok {
		return e.Code == t.Code
	}
	return false
}

// From 从错误链中提取 *Error
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// As 转换为指定类型的错误
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is 检查错误是否为指定类型
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

package eventum

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Payload 解码后的入站事件
//
// Fields 为完整的 JSON 对象（包含 "event" 字段），Raw 为原始字节。
type Payload struct {
	Event  string
	Fields map[string]any
	Raw    []byte
}

// DecodePayload 解码入站数据，非 JSON 对象返回 ErrInvalidPayload
func DecodePayload(data []byte) (*Payload, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}

	// 缺失或非字符串的 event 视为空事件名
	event, _ := fields["event"].(string)
	return &Payload{Event: event, Fields: fields, Raw: data}, nil
}

// Get 读取字段
func (p *Payload) Get(key string) (any, bool) {
	v, ok := p.Fields[key]
	return v, ok
}

// String 读取字符串字段
func (p *Payload) String(key string) string {
	s, _ := p.Fields[key].(string)
	return s
}

// Bind 将原始数据解码到 v
func (p *Payload) Bind(v any) error {
	return json.Unmarshal(p.Raw, v)
}

// Event 出站事件：event 字段加任意数据字段
type Event struct {
	Name string
	Data map[string]any
}

// NewEvent 创建事件
func NewEvent(name string, data map[string]any) Event {
	return Event{Name: name, Data: data}
}

// MarshalJSON 输出 {"event": name, ...data}
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		out[k] = v
	}
	out["event"] = e.Name
	return json.Marshal(out)
}

// ValidationErrorEvent 校验失败时发送给客户端的事件
var ValidationErrorEvent = NewEvent("validation_error", map[string]any{
	"message": "Invalid data received",
})

// HTTPResponse 握手阶段的 HTTP 响应
type HTTPResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// NewHTTPResponse 创建 HTTP 响应，body 支持 string 与 []byte
func NewHTTPResponse[B string | []byte](status int, body B, headers http.Header) *HTTPResponse {
	return &HTTPResponse{Status: status, Headers: headers, Body: []byte(body)}
}

package gateway

import "net/http"

// ScopeType 会话类型
type ScopeType string

const (
	ScopeLifespan  ScopeType = "lifespan"
	ScopeWebSocket ScopeType = "websocket"
	ScopeHTTP      ScopeType = "http"
)

// Scope 会话描述，在会话建立时生成，之后只读
type Scope struct {
	Type         ScopeType
	Path         string
	Subprotocols []string    // 客户端按优先级提供的子协议
	Headers      http.Header // 请求头（规范化键名）
	RemoteAddr   string
}

// MessageType 消息类型
type MessageType string

const (
	TypeAccept            MessageType = "websocket.accept"
	TypeReceive           MessageType = "websocket.receive"
	TypeDisconnect        MessageType = "websocket.disconnect"
	TypeSend              MessageType = "websocket.send"
	TypeClose             MessageType = "websocket.close"
	TypeHTTPResponseStart MessageType = "websocket.http.response.start"
	TypeHTTPResponseBody  MessageType = "websocket.http.response.body"

	TypeRequest       MessageType = "http.request"
	TypeResponseStart MessageType = "http.response.start"
	TypeResponseBody  MessageType = "http.response.body"

	TypeLifespanStartup          MessageType = "lifespan.startup"
	TypeLifespanStartupComplete  MessageType = "lifespan.startup.complete"
	TypeLifespanStartupFailed    MessageType = "lifespan.startup.failed"
	TypeLifespanShutdown         MessageType = "lifespan.shutdown"
	TypeLifespanShutdownComplete MessageType = "lifespan.shutdown.complete"
	TypeLifespanShutdownFailed   MessageType = "lifespan.shutdown.failed"
)

// 关闭码
const (
	CloseNormal     = 1000
	CloseGoingAway  = 1001
	CloseAbnormal   = 1006
	defaultDenyCode = http.StatusForbidden
)

// Message 网关消息（按 Type 使用对应字段）
type Message struct {
	Type MessageType

	Text  string // receive/send：文本帧
	Bytes []byte // receive/send：二进制帧

	Subprotocol string      // accept：选定的子协议
	Headers     http.Header // accept/response.start：响应头

	Code   int    // disconnect/close：关闭码
	Reason string // close：关闭原因

	Status int    // response.start：HTTP 状态码
	Body   []byte // response.body / request：HTTP 正文

	Message string // lifespan.*.failed：失败原因
}

// IsEmpty 是否为空帧（既无文本也无二进制）
func (m Message) IsEmpty() bool {
	return m.Text == "" && len(m.Bytes) == 0
}

// Accept 构造 accept 消息
func Accept(subprotocol string, headers http.Header) Message {
	return Message{Type: TypeAccept, Subprotocol: subprotocol, Headers: headers}
}

// SendText 构造文本发送消息
func SendText(text string) Message {
	return Message{Type: TypeSend, Text: text}
}

// SendBytes 构造二进制发送消息
func SendBytes(b []byte) Message {
	return Message{Type: TypeSend, Bytes: b}
}

// Close 构造关闭消息
func Close(code int, reason string) Message {
	return Message{Type: TypeClose, Code: code, Reason: reason}
}

// ReceiveText 构造文本接收消息
func ReceiveText(text string) Message {
	return Message{Type: TypeReceive, Text: text}
}

// ReceiveBytes 构造二进制接收消息
func ReceiveBytes(b []byte) Message {
	return Message{Type: TypeReceive, Bytes: b}
}

// Disconnect 构造断开消息
func Disconnect(code int) Message {
	return Message{Type: TypeDisconnect, Code: code}
}

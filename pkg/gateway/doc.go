// Package gateway 连接网关：把底层传输抽象为 Scope + 收发消息两个原语
//
// 一次会话由 Scope 描述（类型、路径、子协议、请求头），应用通过 Transport
// 的 Receive/Send 与会话交互，消息统一使用 Message 标签联合体：
//
//	websocket.accept               接受握手（可附加响应头与选定的子协议）
//	websocket.receive              收到文本或二进制帧
//	websocket.disconnect           对端断开（带关闭码）
//	websocket.send                 发送文本或二进制帧
//	websocket.close                主动关闭（关闭码 + 原因）
//	websocket.http.response.start  握手前以 HTTP 响应拒绝：状态码 + 响应头
//	websocket.http.response.body   握手前以 HTTP 响应拒绝：响应体
//	lifespan.*                     进程生命周期事件
//
// Handler 基于 gorilla/websocket 实现 http.Handler；Lifespan 在内存中驱动
// 启动/关闭事件；MemoryTransport 用于测试或进程内桥接。
//
// 使用示例：
//
//	h := gateway.NewHandler(app, gateway.WithAllowAllOrigins())
//	http.ListenAndServe(":7777", h)
package gateway

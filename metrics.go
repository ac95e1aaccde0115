package eventum

import "time"

// Metrics 监控接口
type Metrics interface {
	// 连接指标
	IncrementConnections()
	DecrementConnections()
	IncrementRejectedHandshakes(path string)

	// 事件指标
	IncrementEvents(event string)
	RecordEventLatency(event string, d time.Duration)
	IncrementValidationFailures(event string)
	IncrementInvalidPayloads()
	IncrementHandlerErrors(event string)
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (NoopMetrics) IncrementConnections()                            {}
func (NoopMetrics) DecrementConnections()                            {}
func (NoopMetrics) IncrementRejectedHandshakes(path string)          {}
func (NoopMetrics) IncrementEvents(event string)                     {}
func (NoopMetrics) RecordEventLatency(event string, d time.Duration) {}
func (NoopMetrics) IncrementValidationFailures(event string)         {}
func (NoopMetrics) IncrementInvalidPayloads()                        {}
func (NoopMetrics) IncrementHandlerErrors(event string)              {}

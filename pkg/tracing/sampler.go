package tracing

import (
	"os"
	"slices"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// newSampler 根据配置创建采样器，OTEL_TRACES_SAMPLER 优先；IgnoredEvents 总是生效
func newSampler(cfg *Config) trace.Sampler {
	var base trace.Sampler
	if name := os.Getenv("OTEL_TRACES_SAMPLER"); name != "" {
		base = samplerFromEnv(name, envSamplingRatio())
	} else {
		switch cfg.SamplingType {
		case "always":
			base = trace.AlwaysSample()
		case "never":
			base = trace.NeverSample()
		case "ratio":
			base = trace.TraceIDRatioBased(cfg.SamplingRate)
		default:
			base = trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplingRate))
		}
	}

	if len(cfg.IgnoredEvents) == 0 {
		return base
	}
	ignored := make(map[string]struct{}, len(cfg.IgnoredEvents))
	for _, e := range cfg.IgnoredEvents {
		ignored[e] = struct{}{}
	}
	return &eventSampler{base: base, ignored: ignored}
}

// eventSampler 丢弃指定事件的 Span，其余交给 base
type eventSampler struct {
	base    trace.Sampler
	ignored map[string]struct{}
}

func (s *eventSampler) ShouldSample(p trace.SamplingParameters) trace.SamplingResult {
	for _, kv := range p.Attributes {
		if kv.Key != EventKey {
			continue
		}
		if _, ok := s.ignored[kv.Value.AsString()]; ok {
			return trace.SamplingResult{
				Decision:   trace.Drop,
				Tracestate: oteltrace.SpanContextFromContext(p.ParentContext).TraceState(),
			}
		}
		break
	}
	return s.base.ShouldSample(p)
}

func (s *eventSampler) Description() string {
	events := make([]string, 0, len(s.ignored))
	for e := range s.ignored {
		events = append(events, e)
	}
	slices.Sort(events)
	return "EventFilter{" + strings.Join(events, ",") + "}/" + s.base.Description()
}

// samplerFromEnv 按 OpenTelemetry 约定的采样器名称创建
func samplerFromEnv(name string, ratio float64) trace.Sampler {
	switch name {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(ratio)
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(ratio))
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}

// envSamplingRatio 读取 OTEL_TRACES_SAMPLER_ARG，非法值按 1.0 处理
func envSamplingRatio() float64 {
	ratio, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}

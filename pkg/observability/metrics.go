package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics bundles the meter instruments recorded around turns, tool
// executions and LLM requests. Every record method is nil-safe so call sites
// never have to guard against an uninitialized process.
type Metrics struct {
	turnDuration metric.Float64Histogram
	turnsTotal   metric.Int64Counter
	turnErrors   metric.Int64Counter
	turnTokens   metric.Int64Counter

	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter
}

var (
	globalMetrics *Metrics
	metricsMu     sync.RWMutex
)

// SetGlobalMetrics installs the process-wide metrics sink.
func SetGlobalMetrics(m *Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the installed sink, nil when metrics are off.
func GetGlobalMetrics() *Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

// InitMetrics wires an OpenTelemetry meter through the Prometheus exporter.
// The exporter registers with the default Prometheus registry, so the
// instruments appear on any promhttp handler.
func InitMetrics() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meter := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	).Meter("datasage")

	m := &Metrics{}
	for _, inst := range []struct {
		target *metric.Float64Histogram
		name   string
		desc   string
	}{
		{&m.turnDuration, "datasage_turn_duration_seconds", "Turn duration in seconds"},
		{&m.toolDuration, "datasage_tool_execution_duration_seconds", "Tool execution duration in seconds"},
		{&m.llmDuration, "datasage_llm_request_duration_seconds", "LLM request duration in seconds"},
	} {
		if *inst.target, err = meter.Float64Histogram(inst.name, metric.WithDescription(inst.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", inst.name, err)
		}
	}
	for _, inst := range []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.turnsTotal, "datasage_turns_total", "Total turns processed"},
		{&m.turnErrors, "datasage_turn_errors_total", "Total failed turns"},
		{&m.turnTokens, "datasage_turn_tokens_total", "Total tokens consumed by turns"},
		{&m.toolCalls, "datasage_tool_calls_total", "Total tool invocations"},
		{&m.toolErrors, "datasage_tool_errors_total", "Total tool invocations with a failure envelope"},
		{&m.llmInputTokens, "datasage_llm_tokens_input_total", "Total input tokens sent to the LLM"},
		{&m.llmOutputTokens, "datasage_llm_tokens_output_total", "Total output tokens from the LLM"},
		{&m.llmErrors, "datasage_llm_errors_total", "Total LLM request errors"},
	} {
		if *inst.target, err = meter.Int64Counter(inst.name, metric.WithDescription(inst.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", inst.name, err)
		}
	}

	return m, nil
}

// RecordTurn records one processed turn.
func (m *Metrics) RecordTurn(ctx context.Context, duration time.Duration, tokens int, err error) {
	if m == nil {
		return
	}
	m.turnDuration.Record(ctx, duration.Seconds())
	m.turnsTotal.Add(ctx, 1)
	if tokens > 0 {
		m.turnTokens.Add(ctx, int64(tokens))
	}
	if err != nil {
		m.turnErrors.Add(ctx, 1)
	}
}

// RecordToolExecution records one tool invocation. Tool failures are
// envelopes rather than errors, so the caller passes the envelope verdict.
func (m *Metrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if failed {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

// RecordLLMCall records one LLM round trip.
func (m *Metrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

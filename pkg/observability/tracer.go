// Package observability instruments the agent's hot paths (turns, LLM
// requests, tool executions) with OpenTelemetry spans and
// Prometheus-exported metrics. Both stay inert until initialized: the call
// sites run against the no-op global providers and cost nearly nothing.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Span names and attribute keys shared by the instrumented packages.
const (
	SpanTurn          = "agent.turn"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"

	AttrSessionID       = "session.id"
	AttrToolName        = "tool.name"
	AttrErrorCode       = "error.code"
	AttrLLMModel        = "llm.model"
	AttrLLMProvider     = "llm.provider"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
)

// InitTracer installs a global tracer provider that writes spans to stdout
// and returns its shutdown func, which flushes pending spans.
func InitTracer(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns a tracer from the installed global provider. Before
// InitTracer runs this is the no-op provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Package tools exposes the four bounded data operations the agent can
// invoke: query, count, aggregate and describe-schema.
//
// Every execution returns a uniform envelope: {success:true, sessionId, ...}
// or {success:false, sessionId, error, code}. No outcome ever reaches the
// caller as a raised error; failures are data the reasoning loop can react to.
package tools

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/datasage-io/datasage/pkg/llms"
	"github.com/datasage-io/datasage/pkg/observability"
	"github.com/datasage-io/datasage/pkg/pipeline"
	"github.com/datasage-io/datasage/pkg/schema"
	"github.com/datasage-io/datasage/pkg/store"
)

// Tool names as advertised to the reasoning capability.
const (
	ToolQuery     = "query_documents"
	ToolCount     = "count_documents"
	ToolAggregate = "aggregate_documents"
	ToolDescribe  = "describe_schema"
)

// Query limits enforced regardless of what the model asks for.
const (
	DefaultQueryLimit = 10
	MaxQueryLimit     = 50
)

// Result is the uniform tool outcome envelope.
type Result = map[string]any

// Executor composes the schema reflector/formatter, the pipeline sanitizer
// and the document store behind the four tool operations. It holds only
// read-only state and is safe for concurrent use.
type Executor struct {
	registry  *schema.Registry
	reflector *schema.Reflector
	formatter *schema.Formatter
	rules     pipeline.Rules
	store     store.Store
	logger    *zap.SugaredLogger
}

// NewExecutor wires an executor. A nil rules table is valid and makes the
// sanitizer a no-op; a nil logger falls back to a no-op logger.
func NewExecutor(registry *schema.Registry, st store.Store, rules pipeline.Rules, logger *zap.SugaredLogger) (*Executor, error) {
	if registry == nil {
		return nil, fmt.Errorf("schema registry is required")
	}
	if st == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Executor{
		registry:  registry,
		reflector: schema.NewReflector(registry),
		formatter: schema.NewFormatter(),
		rules:     rules,
		store:     st,
		logger:    logger,
	}, nil
}

// Collections returns the registered collection names in registration order.
func (e *Executor) Collections() []string {
	return e.registry.Collections()
}

// Execute runs one tool invocation and converts every outcome into an
// envelope tagged with the calling session.
func (e *Executor) Execute(ctx context.Context, sessionID string, call llms.ToolCall) Result {
	start := time.Now()
	ctx, span := observability.Tracer("datasage.tools").Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, call.Name),
			attribute.String(observability.AttrSessionID, sessionID),
		),
	)
	defer span.End()

	result := e.execute(ctx, sessionID, call)

	failed := result["success"] != true
	span.SetAttributes(attribute.Bool("success", !failed))
	if failed {
		if code, ok := result["code"].(string); ok {
			span.SetAttributes(attribute.String(observability.AttrErrorCode, code))
		}
	}
	observability.GetGlobalMetrics().RecordToolExecution(ctx, call.Name, time.Since(start), failed)
	return result
}

func (e *Executor) execute(ctx context.Context, sessionID string, call llms.ToolCall) Result {
	switch call.Name {
	case ToolQuery:
		return e.query(ctx, sessionID, call.Arguments)
	case ToolCount:
		return e.count(ctx, sessionID, call.Arguments)
	case ToolAggregate:
		return e.aggregate(ctx, sessionID, call.Arguments)
	case ToolDescribe:
		return e.describeSchema(sessionID, call.Arguments)
	default:
		return failure(sessionID, CodeUnknownTool, fmt.Sprintf("unknown tool: %s", call.Name))
	}
}

func (e *Executor) query(ctx context.Context, sessionID string, args map[string]any) Result {
	collection, ok := stringArg(args, "collection")
	if !ok {
		return failure(sessionID, CodeInvalidArguments, "collection is required")
	}
	if _, registered := e.registry.Get(collection); !registered {
		return failure(sessionID, CodeUnknownCollection, fmt.Sprintf("unknown collection: %s", collection))
	}

	limit := int64(DefaultQueryLimit)
	if raw, present := numberArg(args, "limit"); present {
		limit = int64(raw)
		if limit < 1 {
			limit = DefaultQueryLimit
		}
		if limit > MaxQueryLimit {
			limit = MaxQueryLimit
		}
	}

	docs, err := e.store.Query(ctx, collection, store.QueryOptions{
		Filter:     mapArg(args, "filter"),
		Projection: mapArg(args, "projection"),
		Sort:       mapArg(args, "sort"),
		Limit:      limit,
	})
	if err != nil {
		e.logger.Warnw("query failed", "collection", collection, "error", err)
		return failure(sessionID, CodeQueryError, err.Error())
	}

	return success(sessionID, map[string]any{
		"collection": collection,
		"documents":  docs,
		"count":      len(docs),
	})
}

func (e *Executor) count(ctx context.Context, sessionID string, args map[string]any) Result {
	collection, ok := stringArg(args, "collection")
	if !ok {
		return failure(sessionID, CodeInvalidArguments, "collection is required")
	}
	if _, registered := e.registry.Get(collection); !registered {
		return failure(sessionID, CodeUnknownCollection, fmt.Sprintf("unknown collection: %s", collection))
	}

	n, err := e.store.Count(ctx, collection, mapArg(args, "filter"))
	if err != nil {
		e.logger.Warnw("count failed", "collection", collection, "error", err)
		return failure(sessionID, CodeQueryError, err.Error())
	}

	return success(sessionID, map[string]any{
		"collection": collection,
		"count":      n,
	})
}

func (e *Executor) aggregate(ctx context.Context, sessionID string, args map[string]any) Result {
	collection, ok := stringArg(args, "collection")
	if !ok {
		return failure(sessionID, CodeInvalidArguments, "collection is required")
	}
	if _, registered := e.registry.Get(collection); !registered {
		return failure(sessionID, CodeUnknownCollection, fmt.Sprintf("unknown collection: %s", collection))
	}

	stages := stagesArg(args, "pipeline")
	if stages == nil {
		return failure(sessionID, CodeInvalidArguments, "pipeline must be an array of stage documents")
	}

	sanitized := pipeline.Sanitize(stages, e.rules)

	docs, err := e.store.Aggregate(ctx, collection, sanitized)
	if err != nil {
		e.logger.Warnw("aggregation failed", "collection", collection, "error", err)
		return failure(sessionID, CodeAggregationError, err.Error())
	}

	return success(sessionID, map[string]any{
		"collection":      collection,
		"documents":       docs,
		"count":           len(docs),
		"sanitizedStages": len(sanitized),
	})
}

func (e *Executor) describeSchema(sessionID string, args map[string]any) Result {
	collection, ok := stringArg(args, "collection")
	if !ok {
		return failure(sessionID, CodeInvalidArguments, "collection is required")
	}

	desc, err := e.reflector.Reflect(collection)
	if err != nil {
		return failure(sessionID, CodeUnknownCollection, err.Error())
	}

	formatted := e.formatter.Format(desc)
	if len(formatted) == 0 {
		// A registered collection with nothing to show is a different failure
		// than a name the registry has never heard of.
		return failure(sessionID, CodeSchemaError, fmt.Sprintf("collection %s is empty or unreflectable", collection))
	}

	return success(sessionID, map[string]any{
		"collection": collection,
		"schema":     formatted,
		"fieldCount": len(formatted),
	})
}

func success(sessionID string, payload map[string]any) Result {
	out := Result{
		"success":   true,
		"sessionId": sessionID,
	}
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func failure(sessionID, code, message string) Result {
	return Result{
		"success":   false,
		"sessionId": sessionID,
		"code":      code,
		"error":     message,
	}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func mapArg(args map[string]any, key string) map[string]any {
	v, _ := args[key].(map[string]any)
	return v
}

func stagesArg(args map[string]any, key string) []pipeline.Stage {
	switch v := args[key].(type) {
	case []pipeline.Stage:
		return v
	case []any:
		out := make([]pipeline.Stage, 0, len(v))
		for _, item := range v {
			stage, ok := item.(map[string]any)
			if !ok {
				return nil
			}
			out = append(out, stage)
		}
		return out
	default:
		return nil
	}
}

package tools

// Error codes carried in failure envelopes. Per-tool failures are ordinary
// data for the reasoning loop; only the orchestrator-level codes terminate a
// turn.
const (
	// CodeUnknownCollection marks an unregistered collection name.
	CodeUnknownCollection = "UnknownCollection"

	// CodeQueryError marks a store rejection of a query or count. The
	// original store message is preserved verbatim so the model can adapt.
	CodeQueryError = "QueryError"

	// CodeAggregationError marks a store rejection of a pipeline.
	CodeAggregationError = "AggregationError"

	// CodeSchemaError marks a known collection with zero reflectable fields,
	// deliberately distinct from CodeUnknownCollection.
	CodeSchemaError = "SchemaError"

	// CodeUnknownTool marks an invocation of a tool the registry doesn't have.
	CodeUnknownTool = "UnknownTool"

	// CodeInvalidArguments marks missing or mistyped tool parameters.
	CodeInvalidArguments = "InvalidArguments"
)

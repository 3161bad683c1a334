package tools

import (
	"fmt"
	"strings"

	"github.com/datasage-io/datasage/pkg/llms"
)

// Definitions returns the tool contracts advertised to the reasoning
// capability. The collection enum is derived from the registry so the model
// only sees names that exist.
func (e *Executor) Definitions() []llms.ToolDefinition {
	collections := e.registry.Collections()
	collectionParam := map[string]any{
		"type":        "string",
		"description": fmt.Sprintf("Collection to operate on. One of: %s", strings.Join(collections, ", ")),
	}
	if len(collections) > 0 {
		collectionParam["enum"] = collections
	}

	return []llms.ToolDefinition{
		{
			Name:        ToolQuery,
			Description: "Find documents in a collection with an optional MongoDB filter, projection, sort and limit. Read-only.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"collection": collectionParam,
					"filter": map[string]any{
						"type":        "object",
						"description": "MongoDB filter document, e.g. {\"status\": \"delivered\"}.",
					},
					"projection": map[string]any{
						"type":        "object",
						"description": "Fields to include (1) or exclude (0).",
					},
					"sort": map[string]any{
						"type":        "object",
						"description": "Sort specification, e.g. {\"createdAt\": -1}.",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": fmt.Sprintf("Maximum documents to return (default %d, max %d).", DefaultQueryLimit, MaxQueryLimit),
					},
				},
				"required": []string{"collection"},
			},
		},
		{
			Name:        ToolCount,
			Description: "Count documents in a collection matching an optional MongoDB filter.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"collection": collectionParam,
					"filter": map[string]any{
						"type":        "object",
						"description": "MongoDB filter document.",
					},
				},
				"required": []string{"collection"},
			},
		},
		{
			Name:        ToolAggregate,
			Description: "Run a MongoDB aggregation pipeline against a collection. Mandatory access filters are enforced automatically on referenced collections.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"collection": collectionParam,
					"pipeline": map[string]any{
						"type":        "array",
						"description": "Aggregation stages as JSON documents, e.g. [{\"$group\": {\"_id\": \"$status\", \"n\": {\"$sum\": 1}}}].",
						"items":       map[string]any{"type": "object"},
					},
				},
				"required": []string{"collection", "pipeline"},
			},
		},
		{
			Name:        ToolDescribe,
			Description: "Describe a collection's schema: field types, modifiers, enums, constraints and references.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"collection": collectionParam,
				},
				"required": []string{"collection"},
			},
		},
	}
}

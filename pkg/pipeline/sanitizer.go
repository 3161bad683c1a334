// Package pipeline rewrites aggregation pipelines to enforce mandatory
// per-collection access filters.
//
// Whenever a pipeline pulls in another collection (through $lookup, $facet
// sub-pipelines, or $unionWith) the sanitizer prepends that collection's
// rule filter as a $match stage. Rules are never merged with caller-supplied
// filters: a duplicate filter is harmless, a missing one is not.
package pipeline

// Rules maps collection names to the mandatory filter document enforced
// whenever that collection is referenced. Lookup is exact-string match; an
// empty table makes the sanitizer a no-op.
type Rules map[string]map[string]any

// Stage is one aggregation pipeline stage in its JSON document shape.
type Stage = map[string]any

// Sanitize returns a rewritten copy of the pipeline with every collection
// reference guarded by its rule, recursing through nested sub-pipelines.
// The input is never mutated. Stages that reference no other collection pass
// through untouched.
func Sanitize(stages []Stage, rules Rules) []Stage {
	if len(stages) == 0 {
		return stages
	}

	out := make([]Stage, 0, len(stages))
	for _, stage := range stages {
		out = append(out, sanitizeStage(stage, rules))
	}
	return out
}

func sanitizeStage(stage Stage, rules Rules) Stage {
	if lookup, ok := stage["$lookup"].(map[string]any); ok {
		return Stage{"$lookup": sanitizeLookup(lookup, rules)}
	}
	if facet, ok := stage["$facet"].(map[string]any); ok {
		return Stage{"$facet": sanitizeFacet(facet, rules)}
	}
	if union, present := stage["$unionWith"]; present {
		return Stage{"$unionWith": sanitizeUnion(union, rules)}
	}
	return stage
}

// sanitizeLookup guards the joined collection. The rule's $match goes to the
// front of the sub-pipeline, created if the lookup had none, and any existing
// sub-pipeline stages are themselves sanitized first.
func sanitizeLookup(lookup map[string]any, rules Rules) map[string]any {
	out := make(map[string]any, len(lookup)+1)
	for k, v := range lookup {
		out[k] = v
	}

	sub := sanitizeSub(lookup["pipeline"], rules)

	from, _ := lookup["from"].(string)
	if filter, ok := rules[from]; ok {
		sub = prependMatch(sub, filter)
	}
	if sub != nil {
		out["pipeline"] = sub
	}
	return out
}

// sanitizeFacet sanitizes every named branch independently; branches do not
// interact.
func sanitizeFacet(facet map[string]any, rules Rules) map[string]any {
	out := make(map[string]any, len(facet))
	for name, branch := range facet {
		out[name] = sanitizeSub(branch, rules)
	}
	return out
}

// sanitizeUnion handles both $unionWith forms. A bare collection name with no
// matching rule keeps its bare shape; with a rule it is rewritten to the
// document form carrying a single $match. The document form is recursively
// sanitized, then the rule filter is prepended.
func sanitizeUnion(union any, rules Rules) any {
	switch u := union.(type) {
	case string:
		filter, ok := rules[u]
		if !ok {
			return u
		}
		return map[string]any{
			"coll":     u,
			"pipeline": []any{Stage{"$match": filter}},
		}
	case map[string]any:
		out := make(map[string]any, len(u)+1)
		for k, v := range u {
			out[k] = v
		}
		sub := sanitizeSub(u["pipeline"], rules)
		coll, _ := u["coll"].(string)
		if filter, ok := rules[coll]; ok {
			sub = prependMatch(sub, filter)
		}
		if sub != nil {
			out["pipeline"] = sub
		}
		return out
	default:
		return union
	}
}

// sanitizeSub rewrites a nested pipeline value. Stage documents are
// sanitized recursively; anything else passes through unchanged so the store
// rejects it itself and its error text survives verbatim.
func sanitizeSub(v any, rules Rules) []any {
	items := subItems(v)
	if items == nil {
		return nil
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		if stage, ok := item.(map[string]any); ok {
			out = append(out, sanitizeStage(stage, rules))
		} else {
			out = append(out, item)
		}
	}
	return out
}

func prependMatch(sub []any, filter map[string]any) []any {
	out := make([]any, 0, len(sub)+1)
	out = append(out, Stage{"$match": filter})
	return append(out, sub...)
}

// subItems normalizes the loosely-typed pipeline values that arrive from
// decoded JSON: either []Stage directly or []any of arbitrary items.
func subItems(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []Stage:
		out := make([]any, len(s))
		for i, stage := range s {
			out[i] = stage
		}
		return out
	default:
		return nil
	}
}

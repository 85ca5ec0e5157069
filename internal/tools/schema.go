package tools

// windowSchemaProperties returns the JSON Schema properties shared by every
// analyzer tool: the fetch window, filter query, and pagination controls.
func windowSchemaProperties() map[string]interface{} {
	return map[string]interface{}{
		"start_date": map[string]interface{}{
			"type":        "string",
			"description": "Window start as an RFC 3339 timestamp. Defaults to one hour ago.",
		},
		"end_date": map[string]interface{}{
			"type":        "string",
			"description": "Window end as an RFC 3339 timestamp. Defaults to now.",
		},
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Optional filter query passed to the log store verbatim, e.g. 'status:error AND service:payment'.",
		},
		"limit": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum records to fetch for this window. Defaults to 100.",
			"default":     100,
		},
		"page_token": map[string]interface{}{
			"type":        "string",
			"description": "Continuation token from a previous response's next_page_token.",
		},
		"keep_noisy_attributes": map[string]interface{}{
			"type":        "boolean",
			"description": "Retain bulky metadata arrays (tags) that normalization strips by default.",
			"default":     false,
		},
	}
}

// windowSchema builds an input schema from the shared window properties plus
// tool-specific extras.
func windowSchema(extra map[string]interface{}, required ...string) map[string]interface{} {
	props := windowSchemaProperties()
	for k, v := range extra {
		props[k] = v
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

package ai

// Schema 生成接口 responseSchema 的子集（OpenAPI 风格）
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

func stringSchema(desc string) *Schema {
	return &Schema{Type: "string", Description: desc}
}

func enumSchema(desc string, values ...string) *Schema {
	return &Schema{Type: "string", Description: desc, Enum: values}
}

func arrayOf(items *Schema, desc string) *Schema {
	return &Schema{Type: "array", Items: items, Description: desc}
}

func object(required []string, props map[string]*Schema) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

var (
	statusSummarySchema = object([]string{"summary", "highlights", "next_steps"}, map[string]*Schema{
		"summary":    stringSchema("Two or three sentence status summary"),
		"highlights": arrayOf(stringSchema(""), "Notable progress"),
		"next_steps": arrayOf(stringSchema(""), "Recommended next steps"),
	})

	riskReportSchema = object([]string{"risks"}, map[string]*Schema{
		"risks": arrayOf(object([]string{"title", "description", "likelihood", "impact", "mitigation"}, map[string]*Schema{
			"title":       stringSchema(""),
			"description": stringSchema(""),
			"likelihood":  enumSchema("", RiskLow, RiskMedium, RiskHigh),
			"impact":      enumSchema("", RiskLow, RiskMedium, RiskHigh),
			"mitigation":  stringSchema(""),
			"task_ids":    arrayOf(&Schema{Type: "integer"}, "Related task ids"),
		}), "Predicted risks"),
	})

	lessonsSchema = object([]string{"went_well", "improvements", "recommendations"}, map[string]*Schema{
		"went_well":       arrayOf(stringSchema(""), ""),
		"improvements":    arrayOf(stringSchema(""), ""),
		"recommendations": arrayOf(stringSchema(""), ""),
	})

	criticalPathSchema = object([]string{"task_ids", "explanation"}, map[string]*Schema{
		"task_ids":    arrayOf(&Schema{Type: "integer"}, "Ordered ids of the tasks on the critical path"),
		"explanation": stringSchema("Why these tasks form the critical path"),
	})

	portfolioSchema = object([]string{"summary", "projects"}, map[string]*Schema{
		"summary": stringSchema("Portfolio level summary"),
		"projects": arrayOf(object([]string{"project_id", "health", "note"}, map[string]*Schema{
			"project_id": {Type: "integer"},
			"health":     enumSchema("", HealthOnTrack, HealthAtRisk, HealthOffTrack),
			"note":       stringSchema(""),
		}), ""),
	})
)

package llm

import "encoding/json"

// HealthContext is the opaque blob of recent metrics handed to the model.
type HealthContext struct {
	Sleep     any `json:"sleep,omitempty"`
	Activity  any `json:"activity,omitempty"`
	Readiness any `json:"readiness,omitempty"`
}

// HealthSystemPrompt builds the assistant's system prompt with the user's
// recent health data embedded as JSON.
func HealthSystemPrompt(data HealthContext) string {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		payload = []byte("{}")
	}

	return `You are a health and wellness assistant analyzing data from an Oura Ring wearable device.
Your role is to:
1. Answer user questions about their health data
2. Provide insights and patterns from their metrics
3. Generate helpful visualizations using Vega-Lite specifications when appropriate
4. Offer actionable suggestions for improving health metrics

When generating visualizations:
- Use Vega-Lite JSON specifications
- Wrap the specification in a code block with the language identifier "vega-lite"
- Keep visualizations simple and focused on the data being discussed

Available health data:
` + string(payload) + `

Be conversational, supportive, and data-driven in your responses.`
}

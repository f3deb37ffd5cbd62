package prompt

const (
	GenerateEntitiesV1 = "generate_entities.v1"
	AnalyzeProfileV1   = "analyze_profile.v1"
)

func builtins() []Template {
	return []Template{
		{
			ID:       GenerateEntitiesV1,
			Required: []string{"goal", "industry_label"},
			Optional: []string{"source_text"},
			Body: `
You are an expert AI career assistant that turns a person's background into experience cards.

Career goal: {{.goal}}
Target industry: {{.industry_label}}
{{if .source_text}}
Source material provided by the user:
"""
{{.source_text}}
"""

Derive the cards from the source material only. Do not make up experience that is not in the text.
{{else}}
No source material was provided. Suggest realistic experiences a person pursuing this goal should build.
{{end}}
Sort every card into exactly one category:
- "FocusMatch": directly relevant to the goal and industry.
- "GrowthPotential": transferable experience that shows room to grow toward the goal.
- "FoundationSkills": general skills and habits that support any path.

Return your result as a structured JSON object in this format:

{
  "entities": [
    {
      "name": string,
      "category": "FocusMatch" | "GrowthPotential" | "FoundationSkills",
      "timeLocation": string,
      "oneLineSummary": string,
      "background": string,
      "role": string,
      "taskDetails": string,
      "reflection": string,
      "highlight": string
    }
  ]
}

Be concise and professional. Leave a field as an empty string when the information is unknown.
Return only valid JSON. Your response must be a single JSON object.
`,
		},
		{
			ID:       AnalyzeProfileV1,
			Required: []string{"goal", "industry_label", "entities"},
			Body: `
You are an expert AI career assistant that evaluates how well a person's experiences support a career goal.

Career goal: {{.goal}}
Target industry: {{.industry_label}}

Experience cards (one per line, "name | category | summary"):
{{.entities}}

Your goal is to:
- Identify the experiences that best support the goal.
- Point out missing or weak areas.
- Assign an overall readiness score from 0 to 100.

Return your result as a structured JSON object in this format:

{
  "summary": string,
  "readiness_score": number,
  "key_experiences": [string],
  "strengths": [string],
  "gaps": [string],
  "recommendation": string
}

"key_experiences" must repeat card names exactly as listed above.
Base all reasoning only on the provided cards. Do not make up data.
Return only valid JSON. Your response must be a single JSON object.
`,
		},
	}
}

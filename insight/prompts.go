package insight

import "fmt"

const extractSystemPrompt = `You are an expert at analyzing customer research interviews and identifying patterns and themes.

Your task is to analyze transcripts from multiple customer interviews and
identify common themes and patterns, cluster similar findings together, rank
findings by importance and impact, surface unique or surprising
observations, and formulate actionable recommendations.

Avoid generic insights; focus on specific, actionable findings that would
impact product decisions.`

const extractSchemaHint = `Your response must be a valid JSON array with this structure:
[
  {
    "theme": "Name of theme/insight",
    "description": "Clear description of the insight",
    "evidence": "Support from the interviews",
    "impact": "Potential impact on product decisions",
    "confidence": 3
  }
]
Confidence is an integer from 1 to 5 based on how many interviewees shared
similar views. Keep descriptions and impacts concise to avoid truncation.
Do not wrap the array in any other object.`

func extractPrompt(bizContext, sample string) string {
	return fmt.Sprintf(`The interviews below are about: %s

%s

Analyze these conversations and identify the key themes, patterns, and actionable findings.`, bizContext, sample)
}

func extractConversationHeader(n int, summary string) string {
	if summary != "" {
		return fmt.Sprintf("--- Interview %d (summary: %s) ---", n, summary)
	}
	return fmt.Sprintf("--- Interview %d ---", n)
}

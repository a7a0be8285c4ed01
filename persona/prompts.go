package persona

import "fmt"

const reflectSystemPrompt = `You are an expert in user research and market analysis.
Your task is to reflect on which types of personas would be most valuable
to interview about the given topic or context.

Consider who the main stakeholders or user groups in this domain are, which
personas would provide the most diverse and insightful perspectives, which
roles or backgrounds have valuable experiences with this topic, and what
combination of personas gives comprehensive coverage.`

func reflectSchemaHint(count int) string {
	return fmt.Sprintf(`Format your response as a single JSON object with this structure:
{
  "reasoning": "your reasoning about which personas would be valuable",
  "personas": [
    {"role": "concise role/title", "description": "2-3 sentence description of who they are and why they're valuable to interview"}
  ]
}
The "personas" array must contain exactly %d entries. The entire response must parse as valid JSON.`, count)
}

func reflectPrompt(bizContext string, count int) string {
	return fmt.Sprintf(`Context for persona identification: %s

Please identify %d diverse personas that would be most valuable to interview about this topic.`, bizContext, count)
}

const detailSystemPrompt = `You are an expert in creating realistic customer personas for product research.
Your task is to create one detailed, realistic persona for a potential
customer in the provided context, based on the role and description provided.

Make the persona feel like a real person with nuanced characteristics, not a
generic stereotype. Include unexpected but realistic details that make them
memorable and authentic.`

const detailSchemaHint = `Provide the output as a single JSON object with this structure:
{
  "name": "Full Name",
  "age": 35,
  "gender": "gender",
  "occupation": "job title",
  "location": "city, country",
  "background": "paragraph with relevant background",
  "description": "concise summary of this persona",
  "behaviors": ["behavior 1", "behavior 2"],
  "goals": ["goal 1", "goal 2"],
  "pain_points": ["pain point 1", "pain point 2"],
  "motivations": ["motivation 1", "motivation 2"],
  "challenges": ["challenge 1", "challenge 2"]
}
The entire response must parse as valid JSON.`

func detailPrompt(bizContext, role, description string) string {
	return fmt.Sprintf(`Context for persona creation: %s

Role: %s
Description: %s

Please create a detailed, realistic customer persona based on this role and description.`, bizContext, role, description)
}

const correctiveInstruction = `Your previous response could not be used because it was malformed or incomplete. Respond again, strictly following the requested JSON structure with all required fields populated.`

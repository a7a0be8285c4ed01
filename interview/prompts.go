package interview

import (
	"fmt"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/internal/util"
)

// closingMarker is the explicit signal a persona appends when it considers
// the conversation naturally finished. The driver strips it from the stored
// reply.
const closingMarker = "[CONVERSATION_COMPLETE]"

const personaSystemTemplate = `You are roleplaying as a real person with the following characteristics:

Name: {{.name}}
Age: {{.age}}
Gender: {{.gender}}
Occupation: {{.occupation}}
Location: {{.location}}

Background:
{{.background}}

Behaviors:
{{bullets .behaviors}}

Goals:
{{bullets .goals}}

Pain Points:
{{bullets .pain_points}}

Motivations:
{{bullets .motivations}}

Challenges:
{{bullets .challenges}}

You are participating in a customer interview about: {{.context}}

Respond naturally as this person would, based on their characteristics. Be
authentic, show emotions, and express your genuine pain points and
challenges. Don't be overly formal. Don't explicitly mention your persona
details; embody them in your responses.

If you feel the interview has covered everything you have to say and has
reached a natural end, finish your reply with the exact marker
{{.marker}} on its own. Otherwise, never emit that marker.`

const interviewerSystemTemplate = `You are an experienced product researcher conducting a customer discovery interview.

You're interviewing: {{.name}}, a {{.age}}-year-old {{.occupation}} from {{.location}}.

Context for this interview: {{.context}}

Your goal is to uncover deep insights about this person's pain points and
challenges, goals and motivations, current behaviors and workflows, and
unmet needs.

Follow product discovery interview best practices: ask open-ended
questions, probe deeper with "why" questions, avoid leading questions,
focus on problems rather than solutions, and follow up on interesting
points.

Reply with your next question only. Keep it conversational and focused on
getting the interviewee to share more about their experiences.`

func personaSystemPrompt(bizContext string, p *core.Persona) (string, error) {
	return util.RenderTemplate(personaSystemTemplate, map[string]any{
		"name":        p.Name,
		"age":         p.Age,
		"gender":      p.Gender,
		"occupation":  p.Occupation,
		"location":    p.Location,
		"background":  p.Background,
		"behaviors":   p.Behaviors,
		"goals":       p.Goals,
		"pain_points": p.PainPoints,
		"motivations": p.Motivations,
		"challenges":  p.Challenges,
		"context":     bizContext,
		"marker":      closingMarker,
	})
}

func interviewerSystemPrompt(bizContext string, p *core.Persona) (string, error) {
	return util.RenderTemplate(interviewerSystemTemplate, map[string]any{
		"name":       p.Name,
		"age":        p.Age,
		"occupation": p.Occupation,
		"location":   p.Location,
		"context":    bizContext,
	})
}

// openingQuestion is the fixed first interviewer turn. Later turns are
// model-generated follow-ups conditioned on the transcript.
func openingQuestion(bizContext string, p *core.Persona) string {
	return fmt.Sprintf("Hello %s, thank you for joining me today. I'd like to learn about your experiences with %s. Could you start by telling me about any challenges you face in this area?", p.Name, bizContext)
}

const summarySystemPrompt = `You are an expert at summarizing customer discovery interviews.

Review the conversation and create a concise summary covering the key
points discussed, the main pain points identified, needs and desires
expressed, behavioral patterns revealed, and opportunities identified.
Keep it focused on information valuable for product development.`

func summaryPrompt(bizContext, transcript string) string {
	return fmt.Sprintf(`The conversation below is a customer discovery interview about: %s

%s

Provide a concise summary of this conversation.`, bizContext, transcript)
}

package core

// Insight is an aggregated finding derived from one or more transcripts.
// Insights are never mutated after creation; the simulation replaces its
// insight collection wholesale when re-extraction runs.
type Insight struct {
	Theme          string `json:"theme"`
	Description    string `json:"description"`
	Evidence       string `json:"evidence,omitempty"`
	Impact         string `json:"impact,omitempty"`
	Confidence     int    `json:"confidence"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ClampConfidence coerces a confidence score into the valid [1,5] band.
func ClampConfidence(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

// NewInsight constructs an insight with the confidence clamped at creation
// so out-of-band scores can never enter the collection.
func NewInsight(theme, description, evidence, impact string, confidence int) Insight {
	return Insight{
		Theme:       theme,
		Description: description,
		Evidence:    evidence,
		Impact:      impact,
		Confidence:  ClampConfidence(confidence),
	}
}

package core

// Persona is a synthetic customer profile used as the interview subject.
// Personas are immutable once generated, owned by exactly one simulation,
// and map 1:1 to a conversation created together with them.
type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Age         int      `json:"age"`
	Gender      string   `json:"gender"`
	Occupation  string   `json:"occupation"`
	Location    string   `json:"location"`
	Background  string   `json:"background"`
	Description string   `json:"description"`
	Behaviors   []string `json:"behaviors"`
	Goals       []string `json:"goals"`
	PainPoints  []string `json:"pain_points"`
	Motivations []string `json:"motivations"`
	Challenges  []string `json:"challenges"`
}

// PersonaOutline is the lightweight preview record produced by the reflect
// step: a role plus a short rationale for interviewing that persona. It is
// used for planning before committing to a full run.
type PersonaOutline struct {
	Role        string `json:"role"`
	Description string `json:"description"`
}

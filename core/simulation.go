package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewID generates a unique identifier for simulations, personas,
// conversations and related entities.
func NewID() string { return uuid.NewString() }

// Simulation is one discovery run: a business context, a persona batch, and
// their conversations and insights. Lifecycle state is mutated exclusively
// by the owning controller; every mutation and the progress counters share a
// single mutex so "recompute and report progress" is atomic relative to
// driver completion events.
type Simulation struct {
	id          string
	context     string
	numPersonas int
	maxTurns    int

	mu             sync.RWMutex
	status         Status
	failure        string
	personas       []*Persona
	conversations  []*Conversation
	insights       []Insight
	created        time.Time
	updated        time.Time
	started        time.Time
	ended          time.Time
	completedTurns int
	activeDrivers  int
}

// SimulationSnapshot is a consistent, immutable view of simulation metadata.
type SimulationSnapshot struct {
	ID                 string    `json:"id"`
	Context            string    `json:"context"`
	NumPersonas        int       `json:"num_personas"`
	MaxTurns           int       `json:"max_turns"`
	Status             Status    `json:"status"`
	Error              string    `json:"error,omitempty"`
	PersonasCount      int       `json:"personas_count"`
	ConversationsCount int       `json:"conversations_count"`
	InsightsCount      int       `json:"insights_count"`
	Created            time.Time `json:"created"`
	Updated            time.Time `json:"updated"`
	Started            time.Time `json:"start_time"`
	Ended              time.Time `json:"end_time"`
}

// NewSimulation creates a simulation in the pending status.
func NewSimulation(id, context string, numPersonas, maxTurns int) *Simulation {
	now := time.Now()
	return &Simulation{
		id:          id,
		context:     context,
		numPersonas: numPersonas,
		maxTurns:    maxTurns,
		status:      StatusPending,
		created:     now,
		updated:     now,
	}
}

// ID returns the simulation identifier.
func (s *Simulation) ID() string { return s.id }

// Context returns the business context the simulation explores.
func (s *Simulation) Context() string { return s.context }

// NumPersonas returns the requested persona count.
func (s *Simulation) NumPersonas() int { return s.numPersonas }

// MaxTurns returns the per-conversation turn budget.
func (s *Simulation) MaxTurns() int { return s.maxTurns }

// Status returns the current lifecycle status.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Transition moves the simulation to the target status if the current
// status is one of the allowed sources; otherwise it returns an
// InvalidStateError and leaves the state unchanged.
func (s *Simulation) Transition(action string, to Status, from ...Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range from {
		if s.status != f {
			continue
		}
		s.status = to
		s.updated = time.Now()
		switch to {
		case StatusRunning:
			s.started = s.updated
		case StatusCompleted, StatusStopped, StatusError:
			s.ended = s.updated
		}
		return nil
	}
	return &InvalidStateError{Action: action, Status: s.status}
}

// Fail transitions to the error status recording a human-readable reason.
// A simulation already in a terminal status is left untouched.
func (s *Simulation) Fail(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return
	}
	s.status = StatusError
	s.failure = reason
	s.updated = time.Now()
	s.ended = s.updated
}

// AttachPersonas stores the generated persona batch and creates one empty
// conversation per persona. Both collections are created together so the
// 1:1 persona/conversation mapping holds by construction.
func (s *Simulation) AttachPersonas(personas []*Persona) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personas = append([]*Persona(nil), personas...)
	s.conversations = make([]*Conversation, 0, len(personas))
	for _, p := range personas {
		s.conversations = append(s.conversations, NewConversation(NewID(), p.ID))
	}
	s.updated = time.Now()
}

// Personas returns a copy of the persona collection.
func (s *Simulation) Personas() []*Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Persona(nil), s.personas...)
}

// Conversations returns a copy of the conversation collection. The
// conversations themselves are safe for concurrent access.
func (s *Simulation) Conversations() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Conversation(nil), s.conversations...)
}

// ConversationSnapshots returns point-in-time copies of all transcripts in
// creation order.
func (s *Simulation) ConversationSnapshots() []ConversationSnapshot {
	convs := s.Conversations()
	snaps := make([]ConversationSnapshot, 0, len(convs))
	for _, c := range convs {
		snaps = append(snaps, c.Snapshot())
	}
	return snaps
}

// SetInsights replaces the insight collection wholesale.
func (s *Simulation) SetInsights(insights []Insight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append([]Insight(nil), insights...)
	s.updated = time.Now()
}

// Insights returns a copy of the insight collection.
func (s *Simulation) Insights() []Insight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Insight(nil), s.insights...)
}

// NoteTurn records one completed interviewer/persona exchange. The counter
// is bounded by numPersonas × maxTurns.
func (s *Simulation) NoteTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completedTurns < s.numPersonas*s.maxTurns {
		s.completedTurns++
	}
	s.updated = time.Now()
}

// DriverStarted increments the active conversation counter.
func (s *Simulation) DriverStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeDrivers++
}

// DriverExited decrements the active conversation counter. Called exactly
// once per driver, on every exit path.
func (s *Simulation) DriverExited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeDrivers > 0 {
		s.activeDrivers--
	}
	s.updated = time.Now()
}

// Progress returns the progress snapshot from a single consistent read of
// the per-simulation counters.
func (s *Simulation) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := s.numPersonas * s.maxTurns
	return Progress{
		Status:               s.status,
		TotalTurns:           total,
		CompletedTurns:       s.completedTurns,
		ActiveConversations:  s.activeDrivers,
		CompletionPercentage: CompletionPercent(s.status, s.completedTurns, total),
	}
}

// Snapshot returns a consistent metadata view of the simulation.
func (s *Simulation) Snapshot() SimulationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SimulationSnapshot{
		ID:                 s.id,
		Context:            s.context,
		NumPersonas:        s.numPersonas,
		MaxTurns:           s.maxTurns,
		Status:             s.status,
		Error:              s.failure,
		PersonasCount:      len(s.personas),
		ConversationsCount: len(s.conversations),
		InsightsCount:      len(s.insights),
		Created:            s.created,
		Updated:            s.updated,
		Started:            s.started,
		Ended:              s.ended,
	}
}

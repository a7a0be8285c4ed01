package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
	"github.com/hupe1980/discoverysim/logging"
	"github.com/hupe1980/discoverysim/persona"
)

// Defaults applied when a caller passes zero for the optional creation
// parameters.
const (
	DefaultNumPersonas = 5
	DefaultMaxTurns    = 10
)

// RegistryOptions configure the simulation registry.
type RegistryOptions struct {
	// DefaultNumPersonas replaces a zero numPersonas on creation.
	DefaultNumPersonas int
	// DefaultMaxTurns replaces a zero maxTurns on creation.
	DefaultMaxTurns int
	// StopTimeout is passed through to every controller.
	StopTimeout time.Duration
	// Logger receives registry and controller diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Registry is the process-wide mapping from simulation id to controller.
// Controllers are created on CreateSimulation and destroyed on
// DeleteSimulation; operations on different simulations never contend.
type Registry struct {
	gw        gateway.Gateway
	reflector *persona.Generator
	opts      RegistryOptions

	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewRegistry builds an empty registry backed by gw.
func NewRegistry(gw gateway.Gateway, optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		DefaultNumPersonas: DefaultNumPersonas,
		DefaultMaxTurns:    DefaultMaxTurns,
		StopTimeout:        DefaultStopTimeout,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		gw: gw,
		reflector: persona.NewGenerator(gw, func(o *persona.Options) {
			o.Logger = opts.Logger
		}),
		opts:        opts,
		controllers: make(map[string]*Controller),
	}
}

// CreateSimulation validates the parameters and registers a new pending
// simulation, returning its id. Zero numPersonas and maxTurns take the
// registry defaults; negative values are rejected.
func (r *Registry) CreateSimulation(ctx context.Context, bizContext string, numPersonas, maxTurns int) (string, error) {
	if bizContext == "" {
		return "", &core.InvalidArgumentError{Field: "context", Value: bizContext, Message: "must not be empty"}
	}
	if numPersonas == 0 {
		numPersonas = r.opts.DefaultNumPersonas
	}
	if numPersonas < 1 {
		return "", &core.InvalidArgumentError{Field: "num_personas", Value: numPersonas, Message: "must be at least 1"}
	}
	if maxTurns == 0 {
		maxTurns = r.opts.DefaultMaxTurns
	}
	if maxTurns < 1 {
		return "", &core.InvalidArgumentError{Field: "max_turns", Value: maxTurns, Message: "must be at least 1"}
	}

	sim := core.NewSimulation(core.NewID(), bizContext, numPersonas, maxTurns)
	ctrl := NewController(sim, r.gw, func(o *ControllerOptions) {
		o.StopTimeout = r.opts.StopTimeout
		o.Logger = r.opts.Logger
	})

	r.mu.Lock()
	r.controllers[sim.ID()] = ctrl
	r.mu.Unlock()

	r.opts.Logger.Info("simulation created", "simulation_id", sim.ID(), "personas", numPersonas, "max_turns", maxTurns)
	return sim.ID(), nil
}

// StartSimulation starts the identified simulation.
func (r *Registry) StartSimulation(ctx context.Context, id string) error {
	ctrl, err := r.controller(id)
	if err != nil {
		return err
	}
	return ctrl.Start(ctx)
}

// StopSimulation cooperatively stops the identified simulation.
func (r *Registry) StopSimulation(ctx context.Context, id string) error {
	ctrl, err := r.controller(id)
	if err != nil {
		return err
	}
	return ctrl.Stop(ctx)
}

// GetSimulation returns the simulation's metadata snapshot.
func (r *Registry) GetSimulation(id string) (core.SimulationSnapshot, error) {
	ctrl, err := r.controller(id)
	if err != nil {
		return core.SimulationSnapshot{}, err
	}
	return ctrl.Simulation().Snapshot(), nil
}

// ListSimulations returns a snapshot of every registered simulation.
func (r *Registry) ListSimulations() []core.SimulationSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snaps := make([]core.SimulationSnapshot, 0, len(r.controllers))
	for _, ctrl := range r.controllers {
		snaps = append(snaps, ctrl.Simulation().Snapshot())
	}
	return snaps
}

// GetPersonas returns the generated personas of the simulation.
func (r *Registry) GetPersonas(id string) ([]*core.Persona, error) {
	ctrl, err := r.controller(id)
	if err != nil {
		return nil, err
	}
	return ctrl.Simulation().Personas(), nil
}

// GetConversations returns snapshots of the simulation's conversations.
func (r *Registry) GetConversations(id string) ([]core.ConversationSnapshot, error) {
	ctrl, err := r.controller(id)
	if err != nil {
		return nil, err
	}
	return ctrl.Simulation().ConversationSnapshots(), nil
}

// GetInsights returns the simulation's aggregated insights.
func (r *Registry) GetInsights(id string) ([]core.Insight, error) {
	ctrl, err := r.controller(id)
	if err != nil {
		return nil, err
	}
	return ctrl.Simulation().Insights(), nil
}

// GetProgress returns a consistent progress snapshot.
func (r *Registry) GetProgress(id string) (core.Progress, error) {
	ctrl, err := r.controller(id)
	if err != nil {
		return core.Progress{}, err
	}
	return ctrl.Progress(), nil
}

// DeleteSimulation removes the simulation and releases everything it owns.
// A running simulation is cooperatively shut down first. Deleting an
// unknown id returns ErrNotFound, which callers retrying a delete treat as
// already satisfied.
func (r *Registry) DeleteSimulation(ctx context.Context, id string) error {
	r.mu.Lock()
	ctrl, ok := r.controllers[id]
	if ok {
		delete(r.controllers, id)
	}
	r.mu.Unlock()
	if !ok {
		return core.ErrNotFound
	}

	ctrl.Shutdown()
	r.opts.Logger.Info("simulation deleted", "simulation_id", id)
	return nil
}

// ReflectPersonas previews which persona types would be interviewed for the
// context, without creating or touching any simulation. Zero numPersonas
// takes the registry default.
func (r *Registry) ReflectPersonas(ctx context.Context, bizContext string, numPersonas int) ([]core.PersonaOutline, error) {
	if bizContext == "" {
		return nil, &core.InvalidArgumentError{Field: "context", Value: bizContext, Message: "must not be empty"}
	}
	if numPersonas == 0 {
		numPersonas = r.opts.DefaultNumPersonas
	}
	if numPersonas < 1 {
		return nil, &core.InvalidArgumentError{Field: "num_personas", Value: numPersonas, Message: "must be at least 1"}
	}
	return r.reflector.Reflect(ctx, bizContext, numPersonas)
}

func (r *Registry) controller(id string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctrl, ok := r.controllers[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return ctrl, nil
}

// Package discoverysim provides a high-level façade over the simulation
// registry and its collaborators (persona generation, interview driving,
// insight extraction, model gateway). Most applications interact with this
// package by:
//  1. Creating a DiscoverySim via New() (optionally overriding the gateway)
//  2. Creating and starting simulations against a business context
//  3. Polling progress and reading back personas, transcripts and insights
//
// The façade delegates lifecycle management to simulation.Registry while
// keeping setup ergonomics concise. The default gateway talks to OpenAI
// with retry and a global in-flight cap; tests typically supply
// gateway.Mock instead.
package discoverysim

import (
	"context"
	"time"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
	"github.com/hupe1980/discoverysim/gateway/openai"
	"github.com/hupe1980/discoverysim/logging"
	"github.com/hupe1980/discoverysim/simulation"
)

// Options configures the DiscoverySim instance.
type Options struct {
	// Gateway is the model backend. Defaults to the OpenAI provider wrapped
	// with retry and the in-flight gate.
	Gateway gateway.Gateway

	// MaxInflightCalls caps concurrent model calls across all simulations.
	// Only applied when Gateway is nil (a supplied gateway manages its own
	// limits). Set to 0 for unlimited.
	MaxInflightCalls int

	// DefaultNumPersonas replaces a zero persona count on creation.
	DefaultNumPersonas int

	// DefaultMaxTurns replaces a zero turn budget on creation.
	DefaultMaxTurns int

	// StopTimeout bounds how long Stop waits for drivers to exit.
	StopTimeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// DiscoverySim is the high-level façade aggregating the registry and the
// model gateway.
type DiscoverySim struct {
	opts     Options
	registry *simulation.Registry
}

// New creates a DiscoverySim with optional overrides. Without a gateway
// override it reads the OpenAI API key from the environment.
func New(optFns ...func(o *Options)) *DiscoverySim {
	opts := Options{
		MaxInflightCalls:   16,
		DefaultNumPersonas: simulation.DefaultNumPersonas,
		DefaultMaxTurns:    simulation.DefaultMaxTurns,
		StopTimeout:        simulation.DefaultStopTimeout,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Gateway == nil {
		gate := core.NewGate(opts.MaxInflightCalls)
		opts.Gateway = gateway.NewRetrying(
			gateway.WithGate(openai.New(), gate),
			func(o *gateway.RetryOptions) { o.Logger = opts.Logger },
		)
	}

	reg := simulation.NewRegistry(opts.Gateway, func(o *simulation.RegistryOptions) {
		o.DefaultNumPersonas = opts.DefaultNumPersonas
		o.DefaultMaxTurns = opts.DefaultMaxTurns
		o.StopTimeout = opts.StopTimeout
		o.Logger = opts.Logger
	})

	return &DiscoverySim{opts: opts, registry: reg}
}

// CreateSimulation registers a new pending simulation and returns its id.
// Zero numPersonas and maxTurns take the configured defaults.
func (d *DiscoverySim) CreateSimulation(ctx context.Context, bizContext string, numPersonas, maxTurns int) (string, error) {
	return d.registry.CreateSimulation(ctx, bizContext, numPersonas, maxTurns)
}

// StartSimulation launches the simulation pipeline and returns immediately.
func (d *DiscoverySim) StartSimulation(ctx context.Context, id string) error {
	return d.registry.StartSimulation(ctx, id)
}

// StopSimulation cooperatively stops a running simulation.
func (d *DiscoverySim) StopSimulation(ctx context.Context, id string) error {
	return d.registry.StopSimulation(ctx, id)
}

// GetSimulation returns the simulation's metadata snapshot.
func (d *DiscoverySim) GetSimulation(id string) (core.SimulationSnapshot, error) {
	return d.registry.GetSimulation(id)
}

// ListSimulations returns a snapshot of every registered simulation.
func (d *DiscoverySim) ListSimulations() []core.SimulationSnapshot {
	return d.registry.ListSimulations()
}

// GetPersonas returns the generated personas of a simulation.
func (d *DiscoverySim) GetPersonas(id string) ([]*core.Persona, error) {
	return d.registry.GetPersonas(id)
}

// GetConversations returns snapshots of a simulation's conversations.
func (d *DiscoverySim) GetConversations(id string) ([]core.ConversationSnapshot, error) {
	return d.registry.GetConversations(id)
}

// GetInsights returns a simulation's aggregated insights.
func (d *DiscoverySim) GetInsights(id string) ([]core.Insight, error) {
	return d.registry.GetInsights(id)
}

// GetProgress returns a consistent progress snapshot.
func (d *DiscoverySim) GetProgress(id string) (core.Progress, error) {
	return d.registry.GetProgress(id)
}

// DeleteSimulation removes a simulation, cooperatively stopping it first if
// it is running.
func (d *DiscoverySim) DeleteSimulation(ctx context.Context, id string) error {
	return d.registry.DeleteSimulation(ctx, id)
}

// ReflectPersonas previews which persona types would be interviewed for a
// context without creating a simulation.
func (d *DiscoverySim) ReflectPersonas(ctx context.Context, bizContext string, numPersonas int) ([]core.PersonaOutline, error) {
	return d.registry.ReflectPersonas(ctx, bizContext, numPersonas)
}

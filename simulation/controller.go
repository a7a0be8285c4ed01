// Package simulation owns the discovery-run lifecycle: a registry maps
// simulation ids to controllers, and each controller drives one simulation
// through persona generation, concurrent interviews and insight extraction.
package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
	"github.com/hupe1980/discoverysim/insight"
	"github.com/hupe1980/discoverysim/interview"
	"github.com/hupe1980/discoverysim/logging"
	"github.com/hupe1980/discoverysim/persona"
)

// DefaultStopTimeout bounds how long Stop waits for drivers to observe
// cancellation before abandoning them.
const DefaultStopTimeout = 2 * time.Minute

// ControllerOptions configure a simulation controller.
type ControllerOptions struct {
	// StopTimeout bounds the wait for driver exit on Stop and Delete.
	StopTimeout time.Duration
	// Logger receives lifecycle diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Controller executes one simulation. It is the only writer of the
// simulation's lifecycle state; conversations are written exclusively by
// their drivers.
type Controller struct {
	sim         *core.Simulation
	gw          gateway.Gateway
	generator   *persona.Generator
	extractor   *insight.Extractor
	stopTimeout time.Duration
	logger      logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController builds a controller for sim backed by gw.
func NewController(sim *core.Simulation, gw gateway.Gateway, optFns ...func(o *ControllerOptions)) *Controller {
	opts := ControllerOptions{
		StopTimeout: DefaultStopTimeout,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Controller{
		sim: sim,
		gw:  gw,
		generator: persona.NewGenerator(gw, func(o *persona.Options) {
			o.Logger = opts.Logger
		}),
		extractor: insight.NewExtractor(gw, func(o *insight.Options) {
			o.Logger = opts.Logger
		}),
		stopTimeout: opts.StopTimeout,
		logger:      opts.Logger,
	}
}

// Simulation returns the simulation owned by this controller.
func (c *Controller) Simulation() *core.Simulation { return c.sim }

// Start launches the simulation pipeline and returns immediately. Legal
// from pending (personas are generated first) and from ready (personas
// already exist). Any other status fails with InvalidStateError.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running() {
		return &core.InvalidStateError{Action: "start", Status: c.sim.Status()}
	}

	switch st := c.sim.Status(); st {
	case core.StatusPending:
		if err := c.sim.Transition("start", core.StatusGeneratingPersonas, core.StatusPending); err != nil {
			return err
		}
	case core.StatusReady:
	default:
		return &core.InvalidStateError{Action: "start", Status: st}
	}

	// The pipeline outlives the caller's request context.
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info("simulation starting", "simulation_id", c.sim.ID(), "personas", c.sim.NumPersonas(), "max_turns", c.sim.MaxTurns())
	go c.run(runCtx)
	return nil
}

// running reports whether a pipeline launched by Start has not yet exited.
// Callers must hold c.mu.
func (c *Controller) running() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// run is the supervised pipeline: persona generation, driver fan-out,
// insight extraction, completion.
func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	if c.sim.Status() == core.StatusGeneratingPersonas {
		personas, err := c.generator.Generate(ctx, c.sim.Context(), c.sim.NumPersonas())
		if err != nil {
			c.logger.Error("persona generation failed", "simulation_id", c.sim.ID(), "error", err)
			c.sim.Fail("persona generation failed: " + err.Error())
			return
		}
		c.sim.AttachPersonas(personas)
		if err := c.sim.Transition("ready", core.StatusReady, core.StatusGeneratingPersonas); err != nil {
			return
		}
	}

	if err := c.sim.Transition("run", core.StatusRunning, core.StatusReady); err != nil {
		return
	}

	personas := c.sim.Personas()
	byID := make(map[string]*core.Persona, len(personas))
	for _, p := range personas {
		byID[p.ID] = p
	}

	var wg sync.WaitGroup
	for _, conv := range c.sim.Conversations() {
		p := byID[conv.PersonaID()]
		if p == nil {
			continue
		}
		c.sim.DriverStarted()
		wg.Add(1)
		go func(p *core.Persona, conv *core.Conversation) {
			defer wg.Done()
			defer c.sim.DriverExited()
			d := interview.NewDriver(c.gw, func(o *interview.Options) {
				o.MaxTurns = c.sim.MaxTurns()
				o.OnTurn = c.sim.NoteTurn
				o.Logger = c.logger
			})
			if err := d.Run(ctx, c.sim.Context(), p, conv); err != nil {
				c.logger.Warn("conversation ended with failure", "simulation_id", c.sim.ID(), "conversation_id", conv.ID(), "error", err)
			}
		}(p, conv)
	}
	wg.Wait()

	if ctx.Err() != nil {
		// Stop owns the terminal transition after cancellation.
		return
	}

	snaps := c.sim.ConversationSnapshots()
	if reason := totalDrivingFailure(snaps, c.sim.Progress().CompletedTurns); reason != "" {
		c.logger.Error("driving pipeline failed", "simulation_id", c.sim.ID(), "error", reason)
		c.sim.Fail(reason)
		return
	}

	insights, err := c.extractor.Extract(ctx, c.sim.Context(), snaps)
	if err != nil {
		// Extraction failure never fails a finished run.
		c.logger.Warn("insight extraction failed", "simulation_id", c.sim.ID(), "error", err)
	}
	c.sim.SetInsights(insights)

	if err := c.sim.Transition("complete", core.StatusCompleted, core.StatusRunning); err != nil {
		c.logger.Warn("completion transition rejected", "simulation_id", c.sim.ID(), "error", err)
		return
	}
	c.logger.Info("simulation completed", "simulation_id", c.sim.ID(), "insights", len(insights))
}

// totalDrivingFailure reports a failure reason when every conversation
// failed before completing a single turn. Partial failures leave the run on
// the completion path with the surviving transcripts.
func totalDrivingFailure(snaps []core.ConversationSnapshot, completedTurns int) string {
	if len(snaps) == 0 || completedTurns > 0 {
		return ""
	}
	for _, s := range snaps {
		if s.Error == "" {
			return ""
		}
	}
	return "all conversations failed: " + snaps[0].Error
}

// Stop cancels all drivers cooperatively and waits for them to exit before
// transitioning to stopped. Legal only while running. If drivers fail to
// exit within the stop timeout they are abandoned and the simulation still
// transitions to stopped.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if st := c.sim.Status(); st != core.StatusRunning {
		c.mu.Unlock()
		return &core.InvalidStateError{Action: "stop", Status: st}
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(c.stopTimeout):
		c.logger.Error("drivers did not exit before the stop timeout, abandoning", "simulation_id", c.sim.ID())
	case <-ctx.Done():
		return ctx.Err()
	}

	err := c.sim.Transition("stop", core.StatusStopped, core.StatusRunning)
	if err != nil && c.sim.Status() == core.StatusCompleted {
		// The final turn finished during the stop handshake; the run is
		// already complete and there is nothing left to stop.
		return nil
	}
	if err == nil {
		c.logger.Info("simulation stopped", "simulation_id", c.sim.ID())
	}
	return err
}

// Shutdown cancels any active pipeline without a status transition. Used by
// the registry when a running simulation is deleted.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(c.stopTimeout):
		c.logger.Error("drivers did not exit before the stop timeout during delete", "simulation_id", c.sim.ID())
	}
}

// Progress returns a consistent progress snapshot.
func (c *Controller) Progress() core.Progress {
	return c.sim.Progress()
}

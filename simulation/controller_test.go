package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
)

// scriptedMock answers the whole pipeline: one reflection batch, one detail
// payload per outline, and one insight extraction. Conversational replies
// fall back to the mock defaults.
func scriptedMock(n int) *gateway.Mock {
	mock := gateway.NewMock()

	outlines := make([]string, n)
	for i := 1; i <= n; i++ {
		outlines[i-1] = fmt.Sprintf(`{"role": "Role %d", "description": "Persona type %d."}`, i, i)
	}
	mock.StubStructured("persona identification", `{"personas": [`+strings.Join(outlines, ",")+`]}`)

	for i := 1; i <= n; i++ {
		mock.StubStructured(fmt.Sprintf("Role: Role %d", i), fmt.Sprintf(`{
		  "name": "Persona %d",
		  "age": 30,
		  "gender": "nonbinary",
		  "occupation": "Occupation %d",
		  "location": "City %d",
		  "background": "Background %d.",
		  "description": "Summary %d.",
		  "behaviors": ["b"],
		  "goals": ["g"],
		  "pain_points": ["p"],
		  "motivations": ["m"],
		  "challenges": ["c"]
		}`, i, i, i, i, i))
	}

	mock.StubStructured("key themes", `[{"theme": "Theme", "description": "Desc", "evidence": "E", "impact": "I", "confidence": 4}]`)
	return mock
}

// slowGateway injects latency per model call so tests can observe a
// simulation while it runs.
type slowGateway struct {
	inner gateway.Gateway
	delay time.Duration
}

func (s *slowGateway) GenerateStructured(ctx context.Context, req gateway.StructuredRequest) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.inner.GenerateStructured(ctx, req)
}

func (s *slowGateway) GenerateReply(ctx context.Context, req gateway.ReplyRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(s.delay):
	}
	return s.inner.GenerateReply(ctx, req)
}

func waitTerminal(t *testing.T, reg *Registry, id string) core.SimulationSnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := reg.GetSimulation(id)
		return err == nil && snap.Status.Terminal()
	}, 10*time.Second, 5*time.Millisecond)
	snap, err := reg.GetSimulation(id)
	require.NoError(t, err)
	return snap
}

func TestSimulationLifecycleCompletes(t *testing.T) {
	reg := NewRegistry(scriptedMock(3))
	ctx := context.Background()

	id, err := reg.CreateSimulation(ctx, "Mobile budgeting app for students", 3, 5)
	require.NoError(t, err)

	snap, err := reg.GetSimulation(id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, snap.Status)

	require.NoError(t, reg.StartSimulation(ctx, id))
	snap = waitTerminal(t, reg, id)
	assert.Equal(t, core.StatusCompleted, snap.Status)

	personas, err := reg.GetPersonas(id)
	require.NoError(t, err)
	assert.Len(t, personas, 3)

	convs, err := reg.GetConversations(id)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	for _, conv := range convs {
		assert.True(t, conv.Completed)
		assert.LessOrEqual(t, len(conv.Messages), 2*5)
		for i, m := range conv.Messages {
			want := core.RoleInterviewer
			if i%2 == 1 {
				want = core.RolePersona
			}
			assert.Equal(t, want, m.Role)
		}
	}

	insights, err := reg.GetInsights(id)
	require.NoError(t, err)
	for _, ins := range insights {
		assert.GreaterOrEqual(t, ins.Confidence, 1)
		assert.LessOrEqual(t, ins.Confidence, 5)
	}

	progress, err := reg.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, progress.Status)
	assert.Equal(t, 100.0, progress.CompletionPercentage)
	assert.Equal(t, 15, progress.TotalTurns)
	assert.Equal(t, 15, progress.CompletedTurns)
	assert.Zero(t, progress.ActiveConversations)
}

func TestSimulationDoubleStart(t *testing.T) {
	gw := &slowGateway{inner: scriptedMock(2), delay: 50 * time.Millisecond}
	reg := NewRegistry(gw)
	ctx := context.Background()

	id, err := reg.CreateSimulation(ctx, "topic", 2, 2)
	require.NoError(t, err)
	require.NoError(t, reg.StartSimulation(ctx, id))

	err = reg.StartSimulation(ctx, id)
	var stateErr *core.InvalidStateError
	require.ErrorAs(t, err, &stateErr)

	// The first run is unaffected by the rejected second start.
	snap := waitTerminal(t, reg, id)
	assert.Equal(t, core.StatusCompleted, snap.Status)
}

func TestControllerStartRejectsActivePipeline(t *testing.T) {
	sim := core.NewSimulation(core.NewID(), "topic", 1, 1)
	ctrl := NewController(sim, scriptedMock(1))

	// Simulate the window where the pipeline has reached ready but has not
	// yet transitioned to running. A second Start must not replace the
	// active pipeline's cancel handle.
	require.NoError(t, sim.Transition("start", core.StatusGeneratingPersonas, core.StatusPending))
	require.NoError(t, sim.Transition("ready", core.StatusReady, core.StatusGeneratingPersonas))
	ctrl.mu.Lock()
	ctrl.done = make(chan struct{})
	ctrl.mu.Unlock()

	err := ctrl.Start(context.Background())
	var stateErr *core.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "start", stateErr.Action)

	// Once the pipeline has exited, a start from ready is legal again.
	ctrl.mu.Lock()
	close(ctrl.done)
	ctrl.mu.Unlock()
	require.NoError(t, ctrl.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sim.Status().Terminal()
	}, 10*time.Second, 5*time.Millisecond)
	assert.Equal(t, core.StatusCompleted, sim.Status())
}

func TestSimulationStopMidRun(t *testing.T) {
	gw := &slowGateway{inner: scriptedMock(2), delay: 30 * time.Millisecond}
	reg := NewRegistry(gw)
	ctx := context.Background()

	id, err := reg.CreateSimulation(ctx, "topic", 2, 50)
	require.NoError(t, err)
	require.NoError(t, reg.StartSimulation(ctx, id))

	require.Eventually(t, func() bool {
		snap, err := reg.GetSimulation(id)
		return err == nil && snap.Status == core.StatusRunning
	}, 10*time.Second, 5*time.Millisecond)

	require.NoError(t, reg.StopSimulation(ctx, id))

	snap, err := reg.GetSimulation(id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusStopped, snap.Status)

	// No conversation gains messages after the confirmed stop point.
	before, err := reg.GetConversations(id)
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	after, err := reg.GetConversations(id)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Len(t, after[i].Messages, len(before[i].Messages))
	}

	// Stopping a stopped simulation is an InvalidState no-op.
	err = reg.StopSimulation(ctx, id)
	var stateErr *core.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestSimulationProgressMonotonic(t *testing.T) {
	gw := &slowGateway{inner: scriptedMock(2), delay: 10 * time.Millisecond}
	reg := NewRegistry(gw)
	ctx := context.Background()

	id, err := reg.CreateSimulation(ctx, "topic", 2, 3)
	require.NoError(t, err)
	require.NoError(t, reg.StartSimulation(ctx, id))

	lastTurns := 0
	lastPct := 0.0
	monotonic := true
	require.Eventually(t, func() bool {
		p, err := reg.GetProgress(id)
		if err != nil {
			return false
		}
		if p.CompletedTurns < lastTurns || p.CompletionPercentage < lastPct {
			monotonic = false
		}
		lastTurns, lastPct = p.CompletedTurns, p.CompletionPercentage
		return p.Status.Terminal()
	}, 10*time.Second, 2*time.Millisecond)

	assert.True(t, monotonic, "progress went backwards")
	assert.Equal(t, 100.0, lastPct)
}

func TestSimulationPersonaGenerationFailure(t *testing.T) {
	mock := gateway.NewMock()
	mock.FailStructured(&core.GatewayError{Op: "structured", Retryable: false, Err: errors.New("auth failure")})
	reg := NewRegistry(mock)
	ctx := context.Background()

	id, err := reg.CreateSimulation(ctx, "topic", 2, 2)
	require.NoError(t, err)
	require.NoError(t, reg.StartSimulation(ctx, id))

	snap := waitTerminal(t, reg, id)
	assert.Equal(t, core.StatusError, snap.Status)
	assert.Contains(t, snap.Error, "persona generation failed")

	// No drivers were launched.
	convs, err := reg.GetConversations(id)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestSimulationAllConversationsFailed(t *testing.T) {
	mock := scriptedMock(1)
	mock.FailReply(&core.GatewayError{Op: "reply", Retryable: false, Err: errors.New("quota exhausted")})
	reg := NewRegistry(mock)
	ctx := context.Background()

	id, err := reg.CreateSimulation(ctx, "topic", 1, 3)
	require.NoError(t, err)
	require.NoError(t, reg.StartSimulation(ctx, id))

	snap := waitTerminal(t, reg, id)
	assert.Equal(t, core.StatusError, snap.Status)
	assert.Contains(t, snap.Error, "all conversations failed")
}

func TestRegistryValidation(t *testing.T) {
	reg := NewRegistry(scriptedMock(1))
	ctx := context.Background()

	var argErr *core.InvalidArgumentError

	_, err := reg.CreateSimulation(ctx, "", 1, 1)
	require.ErrorAs(t, err, &argErr)

	_, err = reg.CreateSimulation(ctx, "topic", -1, 1)
	require.ErrorAs(t, err, &argErr)

	_, err = reg.CreateSimulation(ctx, "topic", 1, -1)
	require.ErrorAs(t, err, &argErr)

	// Zero values take the configured defaults.
	id, err := reg.CreateSimulation(ctx, "topic", 0, 0)
	require.NoError(t, err)
	snap, err := reg.GetSimulation(id)
	require.NoError(t, err)
	assert.Equal(t, DefaultNumPersonas, snap.NumPersonas)
	assert.Equal(t, DefaultMaxTurns, snap.MaxTurns)
}

func TestRegistryDelete(t *testing.T) {
	reg := NewRegistry(scriptedMock(1))
	ctx := context.Background()

	id, err := reg.CreateSimulation(ctx, "topic", 1, 1)
	require.NoError(t, err)

	require.NoError(t, reg.DeleteSimulation(ctx, id))

	_, err = reg.GetSimulation(id)
	require.ErrorIs(t, err, core.ErrNotFound)

	// Second delete reports NotFound without side effects.
	require.ErrorIs(t, reg.DeleteSimulation(ctx, id), core.ErrNotFound)
}

func TestRegistryDeleteRunningSimulation(t *testing.T) {
	gw := &slowGateway{inner: scriptedMock(2), delay: 30 * time.Millisecond}
	reg := NewRegistry(gw)
	ctx := context.Background()

	id, err := reg.CreateSimulation(ctx, "topic", 2, 50)
	require.NoError(t, err)
	require.NoError(t, reg.StartSimulation(ctx, id))

	require.Eventually(t, func() bool {
		snap, err := reg.GetSimulation(id)
		return err == nil && snap.Status == core.StatusRunning
	}, 10*time.Second, 5*time.Millisecond)

	require.NoError(t, reg.DeleteSimulation(ctx, id))
	_, err = reg.GetSimulation(id)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRegistryReflectPersonas(t *testing.T) {
	reg := NewRegistry(scriptedMock(2))
	ctx := context.Background()

	outlines, err := reg.ReflectPersonas(ctx, "topic", 2)
	require.NoError(t, err)
	require.Len(t, outlines, 2)

	// Stateless: nothing was registered.
	assert.Empty(t, reg.ListSimulations())

	_, err = reg.ReflectPersonas(ctx, "", 2)
	var argErr *core.InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
}

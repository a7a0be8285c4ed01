package discoverysim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/gateway"
)

func TestFacadeEndToEnd(t *testing.T) {
	mock := gateway.NewMock()
	mock.StubStructured("persona identification", `{"personas": [{"role": "R", "description": "D"}]}`)
	mock.StubStructured("Role: R", `{
	  "name": "N", "age": 30, "gender": "x", "occupation": "O", "location": "L",
	  "background": "B", "description": "S",
	  "behaviors": ["b"], "goals": ["g"], "pain_points": ["p"],
	  "motivations": ["m"], "challenges": ["c"]
	}`)
	mock.StubStructured("key themes", `[{"theme": "T", "description": "D", "confidence": 3}]`)

	sim := New(func(o *Options) { o.Gateway = mock })
	ctx := context.Background()

	// Defaults applied on zero values.
	id, err := sim.CreateSimulation(ctx, "ctx", 1, 0)
	require.NoError(t, err)
	snap, err := sim.GetSimulation(id)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.MaxTurns)

	require.NoError(t, sim.StartSimulation(ctx, id))
	require.Eventually(t, func() bool {
		s, err := sim.GetSimulation(id)
		return err == nil && s.Status.Terminal()
	}, 10*time.Second, 5*time.Millisecond)

	snap, err = sim.GetSimulation(id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, snap.Status)

	insights, err := sim.GetInsights(id)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "T", insights[0].Theme)

	assert.Len(t, sim.ListSimulations(), 1)
	require.NoError(t, sim.DeleteSimulation(ctx, id))
	_, err = sim.GetSimulation(id)
	require.ErrorIs(t, err, core.ErrNotFound)
}

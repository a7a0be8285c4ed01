package core

import "context"

// Gate bounds the number of in-flight model calls across all simulations so
// concurrent drivers cannot overwhelm the gateway. A nil gate or a size of
// zero admits everything.
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate admitting at most size concurrent holders.
// If size <= 0 the gate is unbounded.
func NewGate(size int) *Gate {
	g := &Gate{}
	if size > 0 {
		g.slots = make(chan struct{}, size)
	}
	return g
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil || g.slots == nil {
		return ctx.Err()
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired slot.
func (g *Gate) Release() {
	if g == nil || g.slots == nil {
		return
	}
	<-g.slots
}

// InFlight returns the number of currently held slots.
func (g *Gate) InFlight() int {
	if g == nil || g.slots == nil {
		return 0
	}
	return len(g.slots)
}

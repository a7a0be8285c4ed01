package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hupe1980/discoverysim/core"
	"github.com/hupe1980/discoverysim/logging"
)

// RetryOptions configure the Retrying wrapper.
type RetryOptions struct {
	// MaxAttempts is the total number of attempts per call, including the
	// first one.
	MaxAttempts int
	// BaseDelay is the wait before the first retry; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Logger receives retry diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Retrying wraps a Gateway with bounded retry and exponential backoff.
// Only errors classified retryable by the wrapped gateway (timeouts, rate
// limits, transient 5xx) are retried; everything else surfaces immediately.
type Retrying struct {
	inner Gateway
	opts  RetryOptions
}

// NewRetrying constructs the retry wrapper with optional overrides.
func NewRetrying(inner Gateway, optFns ...func(o *RetryOptions)) *Retrying {
	opts := RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Retrying{inner: inner, opts: opts}
}

// GenerateStructured implements Gateway.
func (r *Retrying) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	err := r.do(ctx, "generate_structured", func() error {
		var err error
		raw, err = r.inner.GenerateStructured(ctx, req)
		return err
	})
	return raw, err
}

// GenerateReply implements Gateway.
func (r *Retrying) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	var text string
	err := r.do(ctx, "generate_reply", func() error {
		var err error
		text, err = r.inner.GenerateReply(ctx, req)
		return err
	})
	return text, err
}

func (r *Retrying) do(ctx context.Context, op string, fn func() error) error {
	delay := r.opts.BaseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !core.IsRetryable(err) || attempt >= r.opts.MaxAttempts {
			return err
		}
		r.opts.Logger.Warn("retrying gateway call", "op", op, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > r.opts.MaxDelay {
			delay = r.opts.MaxDelay
		}
	}
}

// Gated caps concurrent calls into the wrapped gateway with a shared
// core.Gate, protecting the backend from a burst of parallel drivers across
// simulations. Compose inside Retrying so backoff sleeps do not hold a slot.
type Gated struct {
	inner Gateway
	gate  *core.Gate
}

// WithGate wraps a gateway with the shared in-flight gate.
func WithGate(inner Gateway, gate *core.Gate) *Gated {
	return &Gated{inner: inner, gate: gate}
}

// GenerateStructured implements Gateway.
func (g *Gated) GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	if err := g.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer g.gate.Release()
	return g.inner.GenerateStructured(ctx, req)
}

// GenerateReply implements Gateway.
func (g *Gated) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	if err := g.gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer g.gate.Release()
	return g.inner.GenerateReply(ctx, req)
}

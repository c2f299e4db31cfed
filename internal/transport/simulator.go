package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/hrsync/internal/ir"
)

// DefaultTimeout bounds a single simulated call, delay included.
const DefaultTimeout = 30 * time.Second

// Simulator wraps calls with latency and failure injection.
type Simulator struct {
	policy  Policy
	timeout time.Duration
	logger  *slog.Logger
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithTimeout sets the per-call timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the simulator logger.
func WithLogger(logger *slog.Logger) SimulatorOption {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSimulator returns a simulator driven by policy.
func NewSimulator(policy Policy, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		policy:  policy,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do waits the injected delay, injects a failure for mutating ops when the
// policy says so, and otherwise runs fn.
//
// fn is never called when the delay is interrupted or a failure is injected.
// An injected failure or a call timeout is returned as a TRANSPORT *ir.Error;
// cancellation of ctx returns ctx.Err() wrapped with the op name.
// fn must return a context error only when it had no effect; a fn that
// finishes its work after the timeout reports its own result.
func (s *Simulator) Do(ctx context.Context, op Op, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	delay := s.policy.Delay(op)
	delaySeconds.WithLabelValues(op.Kind.String()).Observe(delay.Seconds())

	if err := wait(callCtx, delay); err != nil {
		return s.interrupted(ctx, op, err)
	}

	if op.Kind.Mutating() && s.policy.Fail(op) {
		callsTotal.WithLabelValues(op.Name, op.Kind.String(), outcomeInjected).Inc()
		s.logger.Debug("injected network failure", "op", op.Name, "kind", op.Kind.String(), "delay", delay)
		return ir.NewTransportError(op.Name, nil)
	}

	if err := fn(callCtx); err != nil {
		if callCtx.Err() != nil && errors.Is(err, callCtx.Err()) {
			return s.interrupted(ctx, op, err)
		}
		callsTotal.WithLabelValues(op.Name, op.Kind.String(), outcomeError).Inc()
		return err
	}
	callsTotal.WithLabelValues(op.Name, op.Kind.String(), outcomeOK).Inc()
	return nil
}

// interrupted classifies a context error: the caller's cancellation is passed
// through, while the simulator's own timeout is a transport failure.
func (s *Simulator) interrupted(parent context.Context, op Op, err error) error {
	if parent.Err() != nil {
		callsTotal.WithLabelValues(op.Name, op.Kind.String(), outcomeCancelled).Inc()
		return fmt.Errorf("%s: %w", op.Name, parent.Err())
	}
	callsTotal.WithLabelValues(op.Name, op.Kind.String(), outcomeTimeout).Inc()
	e := ir.NewTransportError(op.Name, err)
	e.Message = fmt.Sprintf("call timed out after %s", s.timeout)
	return e
}

// Call is Do for calls that produce a value.
func Call[T any](ctx context.Context, s *Simulator, op Op, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := s.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

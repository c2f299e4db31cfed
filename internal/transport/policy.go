package transport

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Policy decides latency and failure for each call.
// Implementations must be safe for concurrent use.
type Policy interface {
	Delay(op Op) time.Duration
	Fail(op Op) bool
}

// Default simulation parameters.
const (
	DefaultMinDelay    = 200 * time.Millisecond
	DefaultMaxDelay    = 1200 * time.Millisecond
	DefaultWriteFail   = 0.075
	DefaultReorderFail = 0.10
)

// RandomConfig parameterizes RandomPolicy.
type RandomConfig struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	WriteFail   float64
	ReorderFail float64
	Seed        uint64
}

// DefaultRandomConfig returns the stock latency and failure profile.
func DefaultRandomConfig() RandomConfig {
	return RandomConfig{
		MinDelay:    DefaultMinDelay,
		MaxDelay:    DefaultMaxDelay,
		WriteFail:   DefaultWriteFail,
		ReorderFail: DefaultReorderFail,
		Seed:        uint64(time.Now().UnixNano()),
	}
}

// RandomPolicy draws a uniform delay in [MinDelay, MaxDelay] and fails
// writes and reorders with their configured probabilities.
type RandomPolicy struct {
	cfg RandomConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy returns a policy seeded from cfg.Seed.
func NewRandomPolicy(cfg RandomConfig) *RandomPolicy {
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &RandomPolicy{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1|1)),
	}
}

// Delay implements Policy.
func (p *RandomPolicy) Delay(Op) time.Duration {
	span := int64(p.cfg.MaxDelay - p.cfg.MinDelay)
	if span <= 0 {
		return p.cfg.MinDelay
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.MinDelay + time.Duration(p.rng.Int64N(span+1))
}

// Fail implements Policy.
func (p *RandomPolicy) Fail(op Op) bool {
	var rate float64
	switch op.Kind {
	case Write:
		rate = p.cfg.WriteFail
	case Reorder:
		rate = p.cfg.ReorderFail
	default:
		return false
	}
	if rate <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < rate
}

// ScriptedPolicy is a deterministic Policy for tests: a fixed delay and a
// queue of failure outcomes consumed one per mutating call. Once the queue
// is empty every call succeeds.
type ScriptedPolicy struct {
	delay time.Duration

	mu       sync.Mutex
	outcomes []bool
	calls    []Op
}

// NewScriptedPolicy returns a policy that waits delay and fails the n-th
// mutating call when outcomes[n] is true.
func NewScriptedPolicy(delay time.Duration, outcomes ...bool) *ScriptedPolicy {
	return &ScriptedPolicy{delay: delay, outcomes: outcomes}
}

// FailNext queues n failures after any already scripted outcomes.
func (p *ScriptedPolicy) FailNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for range n {
		p.outcomes = append(p.outcomes, true)
	}
}

// Script appends outcomes to the queue.
func (p *ScriptedPolicy) Script(outcomes ...bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, outcomes...)
}

// Remaining returns the number of unconsumed outcomes.
func (p *ScriptedPolicy) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outcomes)
}

// Calls returns every mutating op the policy was consulted for, in order.
func (p *ScriptedPolicy) Calls() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Op, len(p.calls))
	copy(out, p.calls)
	return out
}

// Delay implements Policy.
func (p *ScriptedPolicy) Delay(Op) time.Duration { return p.delay }

// Fail implements Policy.
func (p *ScriptedPolicy) Fail(op Op) bool {
	if !op.Kind.Mutating() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, op)
	if len(p.outcomes) == 0 {
		return false
	}
	fail := p.outcomes[0]
	p.outcomes = p.outcomes[1:]
	return fail
}

// Package health tracks liveness and readiness of the service.
//
// Every check runs in its own goroutine at a fixed interval. A check flips to
// unhealthy only after failureThreshold consecutive failures and back to
// healthy after successThreshold consecutive successes.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Option configures a single check.
type Option func(*probe)

// WithThresholds overrides the consecutive failure and success counts needed
// to change a check's state. Defaults are 3 and 1.
func WithThresholds(failure, success int) Option {
	return func(p *probe) {
		p.failureThreshold = max(failure, 1)
		p.successThreshold = max(success, 1)
	}
}

type probe struct {
	name             string
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Only touched by the goroutine running the probe.
	fails int
	oks   int
}

func newProbe(name string, timeout time.Duration, check CheckFunc, opts []Option) *probe {
	p := &probe{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.healthy.Store(true)
	return p
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)
	if err != nil {
		p.oks = 0
		if p.fails++; p.fails >= p.failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	if p.oks++; p.oks >= p.successThreshold {
		p.healthy.Store(true)
	}
}

// failure returns the reason p is unhealthy.
func (p *probe) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error(), true
	}
	return "check is unhealthy", true
}

// Report is the outcome of a set of checks.
type Report struct {
	Status string            `json:"status" enum:"ok,unhealthy"`
	Checks map[string]string `json:"checks,omitempty" doc:"Failing checks and their last error"`
}

// OK reports whether every check passed.
func (r Report) OK() bool { return r.Status == statusOK }

const (
	statusOK        = "ok"
	statusUnhealthy = "unhealthy"
)

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// New returns a Health that is not ready until SetReady(true) is called.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check deciding whether the process must be
// restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check, opts))
}

// AddReadinessCheck registers a check deciding whether the service accepts
// traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc, opts ...Option) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check, opts))
}

// Start runs every registered check until Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}

	ctx, h.cancel = context.WithCancel(ctx)
	h.group, ctx = errgroup.WithContext(ctx)
	for _, p := range h.all() {
		h.group.Go(func() error {
			loop(ctx, p, interval)
			return nil
		})
	}
}

func loop(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Stop halts the checks and waits for them to return. It is safe to call
// more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel, group := h.cancel, h.group
	h.cancel, h.group = nil, nil
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = group.Wait()
}

// SetReady sets the manual readiness flag, typically true after startup
// and false at the beginning of a graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.Ready().OK()
}

// Live returns the state of the liveness checks.
func (h *Health) Live() Report {
	h.mu.RLock()
	probes := h.liveness
	h.mu.RUnlock()
	return report(probes, nil)
}

// Ready returns the state of the readiness checks and the manual flag.
func (h *Health) Ready() Report {
	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	extra := map[string]string{}
	if !h.ready.Load() {
		extra["_readiness"] = "service is not ready"
	}
	return report(probes, extra)
}

func (h *Health) all() []*probe {
	out := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	out = append(out, h.liveness...)
	return append(out, h.readiness...)
}

func report(probes []*probe, failures map[string]string) Report {
	if failures == nil {
		failures = map[string]string{}
	}
	for _, p := range probes {
		if msg, failed := p.failure(); failed {
			failures[p.name] = msg
		}
	}
	if len(failures) == 0 {
		return Report{Status: statusOK}
	}
	return Report{Status: statusUnhealthy, Checks: failures}
}

// Package admission gates outbound provider calls behind per-provider
// rate-limit and circuit-breaker checks. The controller is process-wide
// shared state: one instance serves every concurrent conversation, with a
// mutex per provider record so a check and its matching record cannot
// interleave with another caller's and jointly exceed a budget.
package admission

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/models"
	"github.com/PathwayLabs/CareerPilot/internal/util"
)

// Window sizes are fixed by the provider budget semantics.
const (
	requestWindow = 60 * time.Second
	burstWindow   = 10 * time.Second
	tokenWindow   = 60 * time.Second

	// maxExponentialBackoff caps the error-recovery wait recommendation.
	maxExponentialBackoff = 60 * time.Second
)

// providerState is the mutable rate state for one provider id. All fields
// are guarded by mu. cooldownUntil never retreats.
type providerState struct {
	mu sync.Mutex

	requestTimes []time.Time
	burstTimes   []time.Time

	windowStart  time.Time
	windowTokens int

	// Admitted-but-unrecorded calls. pendingEstimates is FIFO so a later
	// RecordResult or Release converts the oldest outstanding reservation.
	pendingEstimates []int
	reservedTokens   int
	inflight         int

	consecutiveErrors int
	cooldownUntil     time.Time
}

// Controller owns per-provider rate state. Safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	providers map[string]*providerState
	limits    map[string]models.ProviderLimits
	defaults  models.ProviderLimits
	now       func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithProviderLimits sets explicit limits for one provider id.
func WithProviderLimits(provider string, limits models.ProviderLimits) Option {
	return func(c *Controller) { c.limits[provider] = limits }
}

// WithDefaultLimits overrides the limits applied to unconfigured providers.
func WithDefaultLimits(limits models.ProviderLimits) Option {
	return func(c *Controller) { c.defaults = limits }
}

// withClock overrides the time source for tests.
func withClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates an admission controller with the given options.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		providers: make(map[string]*providerState),
		limits:    make(map[string]models.ProviderLimits),
		defaults:  models.DefaultProviderLimits(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	slog.Debug("Controller.NewController: admission controller created", "configuredProviders", len(c.limits))
	return c
}

// limitsFor resolves the limits for a provider id.
func (c *Controller) limitsFor(provider string) models.ProviderLimits {
	if l, ok := c.limits[provider]; ok {
		return l
	}
	return c.defaults
}

// stateFor returns (creating if needed) the state record for a provider.
func (c *Controller) stateFor(provider string) *providerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ps, ok := c.providers[provider]
	if !ok {
		ps = &providerState{}
		c.providers[provider] = ps
	}
	return ps
}

// CheckRateLimit gates one provider call. It must be called, and must return
// Allowed=true, before any call that consumes the provider's budget is
// issued. On admission the estimated tokens are reserved and the in-flight
// call counted, so concurrent callers cannot jointly pass a budget they would
// exceed together; RecordResult (or Release on cancellation) settles the
// reservation.
//
// Checks run in a fixed order: cooldown, request rate, token budget, burst,
// error threshold. The token check runs before any usage is committed; an
// over-budget call is never admitted.
func (c *Controller) CheckRateLimit(provider string, estimatedTokens int) models.AdmissionResult {
	limits := c.limitsFor(provider)
	ps := c.stateFor(provider)
	now := c.now()

	ps.mu.Lock()
	defer ps.mu.Unlock()

	// 1. Active cooldown.
	if now.Before(ps.cooldownUntil) {
		return c.reject(provider, models.ReasonCooldownActive,
			ps.cooldownUntil.Sub(now), models.StrategyExponentialBackoff)
	}

	// 2. Request rate over the sliding 60s window.
	ps.requestTimes = pruneBefore(ps.requestTimes, now.Add(-requestWindow))
	if len(ps.requestTimes)+ps.inflight >= limits.RequestsPerMinute {
		wait := requestWindow
		if len(ps.requestTimes) > 0 {
			wait = requestWindow - now.Sub(ps.requestTimes[0])
		}
		return c.reject(provider, models.ReasonRequestRateExceeded, wait, models.StrategyLinearBackoff)
	}

	// 3. Token budget over a fixed 60s window, checked before committing.
	if ps.windowStart.IsZero() || now.Sub(ps.windowStart) >= tokenWindow {
		ps.windowStart = now
		ps.windowTokens = 0
	}
	if ps.windowTokens+ps.reservedTokens+estimatedTokens > limits.TokensPerMinute {
		wait := tokenWindow - now.Sub(ps.windowStart)
		return c.reject(provider, models.ReasonTokenRateExceeded, wait, models.StrategyLinearBackoff)
	}

	// 4. Burst rate over the sliding 10s window.
	ps.burstTimes = pruneBefore(ps.burstTimes, now.Add(-burstWindow))
	if len(ps.burstTimes)+ps.inflight >= limits.BurstLimit {
		wait := burstWindow
		if len(ps.burstTimes) > 0 {
			wait = burstWindow - now.Sub(ps.burstTimes[0])
		}
		return c.reject(provider, models.ReasonBurstLimitExceeded,
			util.Jitter(wait, 0.25), models.StrategyJitterBackoff)
	}

	// 5. Error-driven circuit breaker. Tripping starts (or extends) the
	// cooldown; cooldownUntil never retreats. The counter drops back to one
	// below the threshold so the first post-cooldown call is admitted as a
	// trial: a trial failure re-trips immediately, a success starts recovery.
	if ps.consecutiveErrors >= limits.ErrorThreshold {
		until := now.Add(limits.Cooldown)
		if until.After(ps.cooldownUntil) {
			ps.cooldownUntil = until
		}
		tripped := ps.consecutiveErrors
		ps.consecutiveErrors = limits.ErrorThreshold - 1
		if ps.consecutiveErrors < 0 {
			ps.consecutiveErrors = 0
		}
		slog.Warn("Controller.CheckRateLimit: error threshold tripped, cooldown started",
			"provider", provider, "consecutiveErrors", tripped, "cooldownUntil", ps.cooldownUntil)
		return c.reject(provider, models.ReasonErrorThresholdTripped,
			exponentialBackoff(tripped), models.StrategyExponentialBackoff)
	}

	// 6. Admit and reserve.
	ps.pendingEstimates = append(ps.pendingEstimates, estimatedTokens)
	ps.reservedTokens += estimatedTokens
	ps.inflight++

	slog.Debug("Controller.CheckRateLimit: call admitted",
		"provider", provider, "estimatedTokens", estimatedTokens,
		"windowRequests", len(ps.requestTimes), "inflight", ps.inflight)
	return models.AdmissionResult{Allowed: true, Provider: provider}
}

// RecordResult settles the oldest outstanding reservation after the provider
// call completed. It commits the request and burst timestamps, adds the
// actual token usage to the current window, and adjusts the consecutive-error
// counter: failures increment it, successes decrement it with a floor of 0.
func (c *Controller) RecordResult(provider string, tokensUsed int, success bool, latency time.Duration) {
	ps := c.stateFor(provider)
	now := c.now()

	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.settleOldestLocked()
	ps.requestTimes = append(ps.requestTimes, now)
	ps.burstTimes = append(ps.burstTimes, now)

	if ps.windowStart.IsZero() || now.Sub(ps.windowStart) >= tokenWindow {
		ps.windowStart = now
		ps.windowTokens = 0
	}
	ps.windowTokens += tokensUsed

	if success {
		if ps.consecutiveErrors > 0 {
			ps.consecutiveErrors--
		}
	} else {
		ps.consecutiveErrors++
	}

	slog.Debug("Controller.RecordResult: result recorded",
		"provider", provider, "tokensUsed", tokensUsed, "success", success,
		"latency", latency, "consecutiveErrors", ps.consecutiveErrors)
}

// Release drops the oldest outstanding reservation without committing any
// usage. Called when an admitted call is cancelled before reaching the
// provider, so the reserved budget returns to the pool.
func (c *Controller) Release(provider string) {
	ps := c.stateFor(provider)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.settleOldestLocked() {
		slog.Debug("Controller.Release: reservation released", "provider", provider, "inflight", ps.inflight)
	}
}

// CooldownUntil reports the provider's current cooldown deadline (zero when
// no cooldown is active).
func (c *Controller) CooldownUntil(provider string) time.Time {
	ps := c.stateFor(provider)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.cooldownUntil
}

// settleOldestLocked removes the oldest pending reservation. Callers hold ps.mu.
func (ps *providerState) settleOldestLocked() bool {
	if len(ps.pendingEstimates) == 0 {
		return false
	}
	ps.reservedTokens -= ps.pendingEstimates[0]
	if ps.reservedTokens < 0 {
		ps.reservedTokens = 0
	}
	ps.pendingEstimates = ps.pendingEstimates[1:]
	if ps.inflight > 0 {
		ps.inflight--
	}
	return true
}

// reject builds a rejection result and logs it.
func (c *Controller) reject(provider, reason string, wait time.Duration, strategy string) models.AdmissionResult {
	if wait < 0 {
		wait = 0
	}
	slog.Info("Controller.CheckRateLimit: call rejected",
		"provider", provider, "reason", reason, "waitTime", wait, "strategy", strategy)
	return models.AdmissionResult{
		Allowed:  false,
		Provider: provider,
		Reason:   reason,
		WaitTime: wait,
		Strategy: strategy,
	}
}

// exponentialBackoff returns min(2^errors, 60) seconds.
func exponentialBackoff(errors int) time.Duration {
	if errors <= 0 {
		return time.Second
	}
	secs := math.Pow(2, float64(errors))
	d := time.Duration(secs) * time.Second
	if d > maxExponentialBackoff || d <= 0 {
		return maxExponentialBackoff
	}
	return d
}

// pruneBefore drops timestamps at or before the cutoff, preserving order.
func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(times) && !times[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return times
	}
	return times[idx:]
}

package admission

import (
	"testing"
	"time"

	"github.com/PathwayLabs/CareerPilot/internal/models"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) now() time.Time {
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.t = f.t.Add(d)
}

func generousLimits() models.ProviderLimits {
	return models.ProviderLimits{
		RequestsPerMinute: 1000,
		TokensPerMinute:   1000000,
		BurstLimit:        1000,
		Cooldown:          60 * time.Second,
		ErrorThreshold:    1000,
	}
}

func TestCheckRateLimit_RequestRateExceeded(t *testing.T) {
	clock := newFakeClock()
	limits := generousLimits()
	limits.RequestsPerMinute = 3
	c := NewController(WithProviderLimits("openai", limits), withClock(clock.now))

	for i := 0; i < 3; i++ {
		res := c.CheckRateLimit("openai", 100)
		if !res.Allowed {
			t.Fatalf("request %d: expected admission, got rejection %q", i, res.Reason)
		}
		c.RecordResult("openai", 100, true, time.Millisecond)
	}

	res := c.CheckRateLimit("openai", 100)
	if res.Allowed {
		t.Fatal("expected 4th request within the window to be rejected")
	}
	if res.Reason != models.ReasonRequestRateExceeded {
		t.Errorf("expected reason %q, got %q", models.ReasonRequestRateExceeded, res.Reason)
	}
	if res.Strategy != models.StrategyLinearBackoff {
		t.Errorf("expected strategy %q, got %q", models.StrategyLinearBackoff, res.Strategy)
	}
	if res.WaitTime <= 0 || res.WaitTime > 60*time.Second {
		t.Errorf("expected wait within (0, 60s], got %v", res.WaitTime)
	}

	// The window slides: 61 seconds later the same call is admitted.
	clock.advance(61 * time.Second)
	if res := c.CheckRateLimit("openai", 100); !res.Allowed {
		t.Errorf("expected admission after the window passed, got rejection %q", res.Reason)
	}
}

func TestCheckRateLimit_InflightCallsCount(t *testing.T) {
	clock := newFakeClock()
	limits := generousLimits()
	limits.RequestsPerMinute = 2
	c := NewController(WithProviderLimits("openai", limits), withClock(clock.now))

	// Two calls admitted but not yet recorded still consume the budget.
	for i := 0; i < 2; i++ {
		if res := c.CheckRateLimit("openai", 100); !res.Allowed {
			t.Fatalf("call %d: expected admission, got rejection %q", i, res.Reason)
		}
	}
	if res := c.CheckRateLimit("openai", 100); res.Allowed {
		t.Error("expected rejection while two admitted calls are in flight")
	}
}

func TestCheckRateLimit_TokenBudgetCheckedBeforeCommit(t *testing.T) {
	clock := newFakeClock()
	limits := generousLimits()
	limits.TokensPerMinute = 1000
	c := NewController(WithProviderLimits("openai", limits), withClock(clock.now))

	if res := c.CheckRateLimit("openai", 600); !res.Allowed {
		t.Fatalf("expected first call admitted, got rejection %q", res.Reason)
	}
	c.RecordResult("openai", 600, true, time.Millisecond)

	// 600 used + 600 estimated exceeds 1000: rejected before committing.
	res := c.CheckRateLimit("openai", 600)
	if res.Allowed {
		t.Fatal("expected over-budget call to be rejected")
	}
	if res.Reason != models.ReasonTokenRateExceeded {
		t.Errorf("expected reason %q, got %q", models.ReasonTokenRateExceeded, res.Reason)
	}

	// Rejection committed nothing: a smaller call still fits.
	if res := c.CheckRateLimit("openai", 300); !res.Allowed {
		t.Errorf("expected smaller call admitted, got rejection %q", res.Reason)
	}
	c.Release("openai")

	// The window resets after 60 seconds.
	clock.advance(61 * time.Second)
	if res := c.CheckRateLimit("openai", 600); !res.Allowed {
		t.Errorf("expected admission after window reset, got rejection %q", res.Reason)
	}
}

func TestCheckRateLimit_ReservationHeldUntilReleased(t *testing.T) {
	clock := newFakeClock()
	limits := generousLimits()
	limits.TokensPerMinute = 1000
	c := NewController(WithProviderLimits("openai", limits), withClock(clock.now))

	if res := c.CheckRateLimit("openai", 600); !res.Allowed {
		t.Fatalf("expected admission, got rejection %q", res.Reason)
	}
	// The reservation blocks a second large call even with nothing recorded.
	if res := c.CheckRateLimit("openai", 600); res.Allowed {
		t.Fatal("expected rejection while 600 tokens are reserved")
	}

	// Cancellation returns the reserved budget.
	c.Release("openai")
	if res := c.CheckRateLimit("openai", 600); !res.Allowed {
		t.Errorf("expected admission after release, got rejection %q", res.Reason)
	}
}

func TestCheckRateLimit_BurstLimit(t *testing.T) {
	clock := newFakeClock()
	limits := generousLimits()
	limits.BurstLimit = 2
	c := NewController(WithProviderLimits("openai", limits), withClock(clock.now))

	for i := 0; i < 2; i++ {
		if res := c.CheckRateLimit("openai", 100); !res.Allowed {
			t.Fatalf("call %d: expected admission, got rejection %q", i, res.Reason)
		}
		c.RecordResult("openai", 100, true, time.Millisecond)
	}

	res := c.CheckRateLimit("openai", 100)
	if res.Allowed {
		t.Fatal("expected burst rejection")
	}
	if res.Reason != models.ReasonBurstLimitExceeded {
		t.Errorf("expected reason %q, got %q", models.ReasonBurstLimitExceeded, res.Reason)
	}
	if res.Strategy != models.StrategyJitterBackoff {
		t.Errorf("expected strategy %q, got %q", models.StrategyJitterBackoff, res.Strategy)
	}
	// Wait is the burst window plus up to 25% jitter.
	if res.WaitTime < 10*time.Second || res.WaitTime > 12500*time.Millisecond {
		t.Errorf("expected wait within [10s, 12.5s], got %v", res.WaitTime)
	}

	clock.advance(11 * time.Second)
	if res := c.CheckRateLimit("openai", 100); !res.Allowed {
		t.Errorf("expected admission after burst window passed, got rejection %q", res.Reason)
	}
}

func TestCheckRateLimit_ErrorThresholdAndCooldown(t *testing.T) {
	clock := newFakeClock()
	limits := generousLimits()
	limits.ErrorThreshold = 2
	limits.Cooldown = 60 * time.Second
	c := NewController(WithProviderLimits("openai", limits), withClock(clock.now))

	for i := 0; i < 2; i++ {
		if res := c.CheckRateLimit("openai", 100); !res.Allowed {
			t.Fatalf("call %d: expected admission, got rejection %q", i, res.Reason)
		}
		c.RecordResult("openai", 100, false, time.Millisecond)
	}

	// Threshold reached: the breaker trips and a cooldown starts.
	res := c.CheckRateLimit("openai", 100)
	if res.Allowed {
		t.Fatal("expected rejection at the error threshold")
	}
	if res.Reason != models.ReasonErrorThresholdTripped {
		t.Errorf("expected reason %q, got %q", models.ReasonErrorThresholdTripped, res.Reason)
	}
	if res.Strategy != models.StrategyExponentialBackoff {
		t.Errorf("expected strategy %q, got %q", models.StrategyExponentialBackoff, res.Strategy)
	}
	// 2 consecutive errors recommend a 2^2 = 4 second wait.
	if res.WaitTime != 4*time.Second {
		t.Errorf("expected 4s exponential wait, got %v", res.WaitTime)
	}

	first := c.CooldownUntil("openai")
	if first.IsZero() {
		t.Fatal("expected a cooldown deadline after the trip")
	}

	// During the cooldown every check is rejected and the deadline holds.
	clock.advance(10 * time.Second)
	res = c.CheckRateLimit("openai", 100)
	if res.Allowed || res.Reason != models.ReasonCooldownActive {
		t.Errorf("expected cooldown_active rejection, got allowed=%v reason=%q", res.Allowed, res.Reason)
	}
	if got := c.CooldownUntil("openai"); !got.Equal(first) {
		t.Errorf("cooldown deadline moved during cooldown: %v -> %v", first, got)
	}

	// After the cooldown the breaker is half-open: one trial call is admitted.
	clock.advance(55 * time.Second)
	res = c.CheckRateLimit("openai", 100)
	if !res.Allowed {
		t.Fatalf("expected trial admission after cooldown, got rejection %q", res.Reason)
	}

	// A failed trial re-trips immediately and extends the deadline.
	c.RecordResult("openai", 100, false, time.Millisecond)
	res = c.CheckRateLimit("openai", 100)
	if res.Allowed || res.Reason != models.ReasonErrorThresholdTripped {
		t.Errorf("expected re-trip after failed trial, got allowed=%v reason=%q", res.Allowed, res.Reason)
	}
	if got := c.CooldownUntil("openai"); !got.After(first) {
		t.Errorf("expected extended cooldown deadline, got %v (was %v)", got, first)
	}
}

func TestCheckRateLimit_BreakerRecoversAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	limits := generousLimits()
	limits.ErrorThreshold = 2
	limits.Cooldown = 60 * time.Second
	c := NewController(WithProviderLimits("openai", limits), withClock(clock.now))

	for i := 0; i < 2; i++ {
		if res := c.CheckRateLimit("openai", 100); !res.Allowed {
			t.Fatalf("call %d: expected admission, got rejection %q", i, res.Reason)
		}
		c.RecordResult("openai", 100, false, time.Millisecond)
	}
	if res := c.CheckRateLimit("openai", 100); res.Allowed {
		t.Fatal("expected trip at the error threshold")
	}

	// Waiting out repeated cooldowns never strands the provider: after each
	// one a trial call is admitted, and a successful trial clears the breaker.
	for i := 0; i < 3; i++ {
		clock.advance(61 * time.Second)
		res := c.CheckRateLimit("openai", 100)
		if !res.Allowed {
			t.Fatalf("cooldown %d: expected trial admission, got rejection %q", i, res.Reason)
		}
		if i < 2 {
			c.RecordResult("openai", 100, false, time.Millisecond)
			if res := c.CheckRateLimit("openai", 100); res.Allowed {
				t.Fatalf("cooldown %d: expected re-trip after failed trial", i)
			}
		}
	}
	c.RecordResult("openai", 100, true, time.Millisecond)

	// The successful trial decremented the counter: the next call is
	// admitted with no further waiting.
	if res := c.CheckRateLimit("openai", 100); !res.Allowed {
		t.Errorf("expected admission after successful trial, got rejection %q", res.Reason)
	}
}

func TestRecordResult_SuccessDecrementsErrorsWithFloor(t *testing.T) {
	clock := newFakeClock()
	limits := generousLimits()
	limits.ErrorThreshold = 2
	c := NewController(WithProviderLimits("openai", limits), withClock(clock.now))

	// Successes on a clean record never push the counter below zero.
	for i := 0; i < 5; i++ {
		if res := c.CheckRateLimit("openai", 100); !res.Allowed {
			t.Fatalf("call %d: expected admission, got rejection %q", i, res.Reason)
		}
		c.RecordResult("openai", 100, true, time.Millisecond)
	}

	// One failure then one success nets back to a clean record: a second
	// failure alone must not trip a threshold of 2.
	c.CheckRateLimit("openai", 100)
	c.RecordResult("openai", 100, false, time.Millisecond)
	c.CheckRateLimit("openai", 100)
	c.RecordResult("openai", 100, true, time.Millisecond)
	c.CheckRateLimit("openai", 100)
	c.RecordResult("openai", 100, false, time.Millisecond)

	if res := c.CheckRateLimit("openai", 100); !res.Allowed {
		t.Errorf("expected admission with one net error, got rejection %q", res.Reason)
	}
}

func TestCheckRateLimit_UnknownProviderUsesDefaults(t *testing.T) {
	clock := newFakeClock()
	c := NewController(withClock(clock.now))

	res := c.CheckRateLimit("anthropic", 100)
	if !res.Allowed {
		t.Errorf("expected default limits to admit the first call, got rejection %q", res.Reason)
	}
	if res.Provider != "anthropic" {
		t.Errorf("expected provider echoed back, got %q", res.Provider)
	}
}

// Package models defines admission-control structures for CareerPilot.
package models

import (
	"fmt"
	"time"
)

// Admission rejection reasons.
const (
	ReasonCooldownActive        = "cooldown_active"
	ReasonRequestRateExceeded   = "request_rate_exceeded"
	ReasonTokenRateExceeded     = "token_rate_exceeded"
	ReasonBurstLimitExceeded    = "burst_limit_exceeded"
	ReasonErrorThresholdTripped = "error_threshold_exceeded"
)

// Wait-time recommendation strategies returned alongside a rejection.
const (
	StrategyLinearBackoff      = "linear_backoff"
	StrategyJitterBackoff      = "jitter_backoff"
	StrategyExponentialBackoff = "exponential_backoff"
)

// AdmissionResult is the outcome of a rate-limit check for one provider call.
type AdmissionResult struct {
	Allowed  bool          `json:"allowed"`
	Provider string        `json:"provider"`
	Reason   string        `json:"reason,omitempty"`
	WaitTime time.Duration `json:"wait_time,omitempty"`
	Strategy string        `json:"strategy,omitempty"`
}

// ProviderLimits is the static per-provider admission configuration.
type ProviderLimits struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	TokensPerMinute   int           `json:"tokens_per_minute"`
	BurstLimit        int           `json:"burst_limit"` // requests per 10s
	Cooldown          time.Duration `json:"cooldown"`
	ErrorThreshold    int           `json:"error_threshold"`
}

// DefaultProviderLimits returns the limits applied to providers with no
// explicit configuration.
func DefaultProviderLimits() ProviderLimits {
	return ProviderLimits{
		RequestsPerMinute: 60,
		TokensPerMinute:   90000,
		BurstLimit:        10,
		Cooldown:          60 * time.Second,
		ErrorThreshold:    5,
	}
}

// RateLimitError reports a rejected provider call. It is returned to the
// caller with a wait-time hint and is never retried internally.
type RateLimitError struct {
	Provider string
	Reason   string
	WaitTime time.Duration
	Strategy string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for provider %s: %s (retry after %s, %s)",
		e.Provider, e.Reason, e.WaitTime, e.Strategy)
}

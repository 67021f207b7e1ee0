package resilience

import (
	"strings"
	"time"
)

// generateSuffix marks generation calls ("ollama.generate",
// "openai.generate"). They get exactly one attempt whatever the overrides
// say: a failed rewrite is reported, not produced twice.
const generateSuffix = ".generate"

// Config tunes retries and circuit breaking for backend calls. Retries are
// opt-in: the default is a single attempt.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// OperationAttempts overrides RetryMaxAttempts for operations whose name
	// starts with the key, e.g. "reranker." or "classifier.classify". The
	// longest matching key wins.
	OperationAttempts map[string]int

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// MaxAttempts resolves the attempt budget for one operation.
func (c Config) MaxAttempts(operation string) int {
	if strings.HasSuffix(operation, generateSuffix) {
		return 1
	}
	attempts, matched := c.RetryMaxAttempts, -1
	for prefix, n := range c.OperationAttempts {
		if len(prefix) > matched && strings.HasPrefix(operation, prefix) {
			attempts, matched = n, len(prefix)
		}
	}
	return attempts
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	// Own copy without blank keys or non-positive budgets.
	overrides := make(map[string]int, len(c.OperationAttempts))
	for prefix, n := range c.OperationAttempts {
		if prefix = strings.TrimSpace(prefix); prefix != "" && n > 0 {
			overrides[prefix] = n
		}
	}
	out.OperationAttempts = overrides

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

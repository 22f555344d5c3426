// Package throttle implements the process-wide token-bucket rate limiter
// and circuit breaker that protects shared external providers (at minimum,
// the reasoning LLM). Every provider gets one rateBucket pair (request-rate,
// token-rate) and one circuitState; both are process-wide singletons shared
// by all runs. Each rateBucket wraps a golang.org/x/time/rate.Limiter rather
// than hand-rolling a refill timer loop, the same way the example pack's
// adaptive model-client limiter does.
package throttle

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limits configures the refill rates and capacities for one provider's
// buckets, derived from its per-minute limits (e.g. groq_rpm / groq_tpm).
type Limits struct {
	// RequestsPerMinute caps the request-rate bucket's capacity and refill rate.
	RequestsPerMinute float64
	// TokensPerMinute caps the token-rate bucket's capacity and refill rate.
	TokensPerMinute float64
}

// rateBucket wraps a rate.Limiter configured from a per-minute limit: the
// limiter's burst equals the per-minute capacity and its fill rate is
// capacity/60 events per second, so a provider with no traffic for a full
// minute is back at full capacity, matching the per-minute-limit semantics
// §3 describes.
type rateBucket struct {
	limiter *rate.Limiter
}

func newRateBucket(perMinute float64) rateBucket {
	if perMinute <= 0 {
		// An unconfigured provider gets an effectively unlimited bucket so it
		// is never blocked by a limit nobody specified.
		perMinute = 1e9
	}
	burst := int(math.Ceil(perMinute))
	if burst < 1 {
		burst = 1
	}
	return rateBucket{limiter: rate.NewLimiter(rate.Limit(perMinute/60.0), burst)}
}

// reserve commits need tokens from the bucket and returns the Reservation
// describing how long the caller must wait before they are actually
// available. Callers that decide not to honor the wait must Cancel it.
func (b rateBucket) reserve(now time.Time, need float64) *rate.Reservation {
	n := int(math.Ceil(need))
	if n < 1 {
		n = 1
	}
	return b.limiter.ReserveN(now, n)
}

// drainPenalty empties the bucket and then reserves (and never cancels)
// penalty worth of refill on top, leaving it in a deficit of penalty
// seconds, so every subsequent caller waits at least that long — the
// rate.Limiter analogue of the hand-rolled "drain into deficit" rule.
func (b rateBucket) drainPenalty(now time.Time, penalty time.Duration) {
	ratePerSec := float64(b.limiter.Limit())
	if ratePerSec <= 0 || penalty <= 0 {
		return
	}
	if avail := int(math.Floor(b.limiter.TokensAt(now))); avail > 0 {
		b.limiter.ReserveN(now, avail)
	}
	n := int(math.Ceil(penalty.Seconds() * ratePerSec))
	if n < 1 {
		n = 1
	}
	b.limiter.ReserveN(now, n)
}

// providerState bundles the two buckets and the circuit for one provider.
// The buckets are individually safe for concurrent use (rate.Limiter guards
// itself); circuit is guarded by mu, matching the "contended acquirers
// serialize through the mutex and then separately sleep outside it" rule
// for the parts of provider state that are not already self-synchronizing.
type providerState struct {
	mu      sync.Mutex
	request rateBucket
	tokens  rateBucket
	circuit circuitState
}

// maxJitter and defaultBackoffMax bound acquire's backoff per §4.1: jitter
// is at most 0.5s, and any single sleep is capped (configurable via
// Throttler.backoffMax, defaulting to defaultBackoffMax).
const (
	maxJitter               = 500 * time.Millisecond
	defaultBackoffMax       = 30 * time.Second
	defaultRateLimitPenalty = 5 * time.Second
)

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxJitter)))
}

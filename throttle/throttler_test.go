package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSucceedsImmediatelyWithinBurst(t *testing.T) {
	th := New(map[string]Limits{"groq": {RequestsPerMinute: 60, TokensPerMinute: 6000}}, Options{})
	start := time.Now()
	err := th.Acquire(context.Background(), "groq", 10)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestAcquireUnconfiguredProviderNeverBlocks(t *testing.T) {
	th := New(map[string]Limits{}, Options{})
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, th.Acquire(context.Background(), "unknown", 1000))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestAcquireWaitsWhenRequestBurstExhausted(t *testing.T) {
	th := New(map[string]Limits{"tight": {RequestsPerMinute: 60, TokensPerMinute: 1e9}}, Options{BackoffMax: time.Second})
	ctx := context.Background()
	for i := 0; i < 60; i++ { // spend the whole 60-request burst
		require.NoError(t, th.Acquire(ctx, "tight", 1))
	}

	start := time.Now()
	require.NoError(t, th.Acquire(ctx, "tight", 1))
	elapsed := time.Since(start)
	assert.Greater(t, elapsed, 500*time.Millisecond, "with the burst spent, the next call must wait roughly 1s for one request to refill")
}

func TestAcquireRejectsRequestLargerThanBurst(t *testing.T) {
	th := New(map[string]Limits{"small": {RequestsPerMinute: 60, TokensPerMinute: 100}}, Options{})
	err := th.Acquire(context.Background(), "small", 1000)
	assert.Error(t, err)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	th := New(map[string]Limits{"tight": {RequestsPerMinute: 1, TokensPerMinute: 1e9}}, Options{})
	ctx := context.Background()
	require.NoError(t, th.Acquire(ctx, "tight", 1))

	cancelCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := th.Acquire(cancelCtx, "tight", 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireHonorsMinCallSpacing(t *testing.T) {
	th := New(map[string]Limits{"groq": {RequestsPerMinute: 1e9, TokensPerMinute: 1e9}}, Options{MinCallSpacing: 100 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, th.Acquire(ctx, "groq", 1))
	start := time.Now()
	require.NoError(t, th.Acquire(ctx, "groq", 1))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestReportSuccessKeepsCircuitClosed(t *testing.T) {
	th := New(map[string]Limits{}, Options{OpenThreshold: 2})
	ctx := context.Background()
	th.Report(ctx, "p", OutcomeFailure)
	th.Report(ctx, "p", OutcomeSuccess)
	assert.False(t, th.IsOpen("p"))
}

func TestReportFailureOpensCircuitAtThreshold(t *testing.T) {
	th := New(map[string]Limits{}, Options{OpenThreshold: 2, RecoveryTimeout: time.Minute})
	ctx := context.Background()
	th.Report(ctx, "p", OutcomeFailure)
	assert.False(t, th.IsOpen("p"))
	th.Report(ctx, "p", OutcomeFailure)
	assert.True(t, th.IsOpen("p"))
}

func TestReportRateLimitedOpensCircuitAndDrainsBucket(t *testing.T) {
	th := New(map[string]Limits{"p": {RequestsPerMinute: 60, TokensPerMinute: 1e9}}, Options{
		OpenThreshold:    1,
		RecoveryTimeout:  time.Minute,
		RateLimitPenalty: 2 * time.Second,
	})
	ctx := context.Background()
	th.Report(ctx, "p", OutcomeRateLimited)
	assert.True(t, th.IsOpen("p"))

	start := time.Now()
	require.NoError(t, th.Acquire(ctx, "p", 1))
	assert.Greater(t, time.Since(start), 500*time.Millisecond, "the drained penalty must delay the next acquisition")
}

func TestIsOpenReturnsFalseForUnknownProvider(t *testing.T) {
	th := New(map[string]Limits{}, Options{})
	assert.False(t, th.IsOpen("never-reported"))
}

// TestTokenBucketNeverOverGrantsProperty exercises the mandated invariant
// that a rateBucket never hands out more capacity than its configured burst
// at a single instant, and that request delays only grow as a fixed-size
// burst is oversubscribed by concurrent callers racing the same clock tick.
func TestTokenBucketNeverOverGrantsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("reservations at a single instant never exceed burst and never report OK for an impossible single request", prop.ForAll(
		func(perMinute float64, needs []int) bool {
			bucket := newRateBucket(perMinute)
			burst := bucket.limiter.Burst()
			now := time.Now()

			var lastDelay time.Duration
			for _, need := range needs {
				n := need % (burst * 2)
				if n < 1 {
					n = 1
				}
				res := bucket.reserve(now, float64(n))
				if n <= burst {
					if !res.OK() {
						return false
					}
					delay := res.DelayFrom(now)
					if delay < lastDelay {
						return false // delays must never shrink as the burst is oversubscribed
					}
					lastDelay = delay
				} else if res.OK() {
					return false // a single request larger than burst can never be satisfiable
				}
			}
			return true
		},
		gen.Float64Range(1, 600),
		gen.SliceOf(gen.IntRange(1, 50)),
	))

	properties.TestingRun(t)
}

func TestAcquireConcurrentCallersNeverExceedBurstProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("N concurrent Acquire calls against a shared 6000-request burst all succeed before the deadline", prop.ForAll(
		func(n int) bool {
			if n < 1 {
				n = 1
			}
			if n > 8 {
				n = 8
			}
			th := New(map[string]Limits{"p": {RequestsPerMinute: 6000, TokensPerMinute: 1e9}}, Options{BackoffMax: 2 * time.Second})
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			results := make(chan error, n)
			for i := 0; i < n; i++ {
				go func() {
					results <- th.Acquire(ctx, "p", 1)
				}()
			}
			for i := 0; i < n; i++ {
				if err := <-results; err != nil {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

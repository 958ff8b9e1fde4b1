package llm

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Budget enforces a free-tier provider quota: requests per minute, requests
// per day, tokens per minute and tokens per day. A call may proceed only when
// all four buckets have room. Token costs are estimated up front and trued up
// once the provider reports actual usage.
//
// All checks and corrections run under one mutex, so two concurrent
// corrections cannot interleave.
type Budget struct {
	mu        sync.Mutex
	reqMinute *rate.Limiter
	reqDay    *rate.Limiter
	tokMinute *tokenBucket
	tokDay    *tokenBucket
}

func NewBudget(requestsPerMinute, requestsPerDay, tokensPerMinute, tokensPerDay int) *Budget {
	return &Budget{
		reqMinute: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), requestsPerMinute),
		reqDay:    rate.NewLimiter(rate.Limit(float64(requestsPerDay)/86400), requestsPerDay),
		tokMinute: newTokenBucket(tokensPerMinute, time.Minute),
		tokDay:    newTokenBucket(tokensPerDay, 24*time.Hour),
	}
}

// TryAcquire reserves one request plus estimatedTokens from every bucket.
// It never blocks: if any bucket lacks room, nothing is consumed and the
// caller is expected to fall back to another provider.
func (b *Budget) TryAcquire(estimatedTokens int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokMinute.refill(now)
	b.tokDay.refill(now)

	if b.tokMinute.tokens < float64(estimatedTokens) || b.tokDay.tokens < float64(estimatedTokens) {
		return false
	}
	if b.reqMinute.TokensAt(now) < 1 || b.reqDay.TokensAt(now) < 1 {
		return false
	}

	b.reqMinute.AllowN(now, 1)
	b.reqDay.AllowN(now, 1)
	b.tokMinute.tokens -= float64(estimatedTokens)
	b.tokDay.tokens -= float64(estimatedTokens)
	return true
}

// Reconcile trues up the token buckets after a call: over-estimates are
// refunded, under-estimates are charged. Refunds never exceed bucket capacity.
func (b *Budget) Reconcile(estimatedTokens, actualTokens int) {
	delta := float64(estimatedTokens - actualTokens)
	if delta == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, tb := range []*tokenBucket{b.tokMinute, b.tokDay} {
		tb.tokens += delta
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		if tb.tokens < 0 {
			tb.tokens = 0
		}
	}
}

// tokenBucket is a refillable budget of provider tokens. Unlike rate.Limiter
// it supports giving tokens back, which the true-up path needs.
type tokenBucket struct {
	capacity float64
	tokens   float64
	perSec   float64
	last     time.Time
}

func newTokenBucket(capacity int, window time.Duration) *tokenBucket {
	return &tokenBucket{
		capacity: float64(capacity),
		tokens:   float64(capacity),
		perSec:   float64(capacity) / window.Seconds(),
		last:     time.Now(),
	}
}

func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.last).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.perSec
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now
}

// EstimateTokens is a cheap token estimator (~4 chars per token).
func EstimateTokens(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += len([]rune(t))
	}
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

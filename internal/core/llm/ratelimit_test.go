package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget_TokenBucketExhaustion(t *testing.T) {
	b := NewBudget(100, 10000, 100, 100000)

	assert.True(t, b.TryAcquire(50))
	assert.False(t, b.TryAcquire(60), "only ~50 tokens left in the minute bucket")
	assert.True(t, b.TryAcquire(40))
}

func TestBudget_RequestBucketExhaustion(t *testing.T) {
	b := NewBudget(2, 10000, 100000, 1000000)

	assert.True(t, b.TryAcquire(1))
	assert.True(t, b.TryAcquire(1))
	assert.False(t, b.TryAcquire(1), "minute request budget is spent")
}

func TestBudget_DailyTokenBucketGates(t *testing.T) {
	b := NewBudget(1000, 100000, 100000, 100)

	assert.True(t, b.TryAcquire(100))
	assert.False(t, b.TryAcquire(1), "daily token budget is spent")
}

func TestBudget_FailedAcquireConsumesNothing(t *testing.T) {
	b := NewBudget(100, 10000, 100, 100000)

	require.False(t, b.TryAcquire(200), "estimate exceeds the whole bucket")
	assert.True(t, b.TryAcquire(100), "the failed attempt must not have consumed tokens")
}

func TestBudget_ReconcileRefundsOverestimate(t *testing.T) {
	b := NewBudget(100, 10000, 100, 100000)

	require.True(t, b.TryAcquire(90))
	require.False(t, b.TryAcquire(50))

	// The call actually used 10 tokens; the refund frees room again.
	b.Reconcile(90, 10)
	assert.True(t, b.TryAcquire(50))
}

func TestBudget_ReconcileChargesUnderestimate(t *testing.T) {
	b := NewBudget(100, 10000, 100, 100000)

	require.True(t, b.TryAcquire(10))
	b.Reconcile(10, 80)
	assert.False(t, b.TryAcquire(50), "the true cost must be charged")
}

func TestBudget_RefundNeverExceedsCapacity(t *testing.T) {
	b := NewBudget(100, 10000, 100, 100000)

	require.True(t, b.TryAcquire(20))
	// A wildly wrong estimate must not mint extra budget.
	b.Reconcile(20, 0)
	b.Reconcile(100, 0)
	assert.False(t, b.TryAcquire(101))
	assert.True(t, b.TryAcquire(100))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens())
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 3, EstimateTokens("hello", "world"))
}

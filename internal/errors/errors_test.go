package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCategoryDrivesRetryability(t *testing.T) {
	require.True(t, IsRetryable(Temporary(CodeNetworkTimeout, "timed out")))
	require.False(t, IsRetryable(Permanent(CodeInitFailed, "bad weights")))
	require.False(t, IsRetryable(User(CodeInvalidInput, "missing id")))
	// Unclassified errors default to retryable; only an explicit
	// Permanent or User categorization rules a retry out.
	require.True(t, IsRetryable(fmt.Errorf("plain error")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, CodeNetworkUnavailable, "engine unreachable", CategoryTemporary)

	require.Equal(t, CodeNetworkUnavailable, GetCode(err))
	require.Equal(t, CategoryTemporary, GetCategory(err))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection refused")
}

func TestBuilderCarriesSuggestionAndRetryAfter(t *testing.T) {
	err := NewBuilder(CodeSessionBusy, "AI is busy").
		User().
		WithSuggestion("Wait and retry").
		WithRetryAfter(2 * time.Second).
		Build()

	require.True(t, IsBusy(err))
	require.Equal(t, []string{"Wait and retry"}, GetSuggestions(err))
	require.Equal(t, 2*time.Second, GetRetryAfter(err))
}

func TestDoRetriesTemporaryFailures(t *testing.T) {
	policy := &Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, RetryIf: IsRetryable}

	attempts := 0
	err := Do(context.Background(), policy, func() error {
		attempts++
		if attempts < 3 {
			return Temporary(CodeNetworkTimeout, "flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoStopsOnPermanentFailure(t *testing.T) {
	policy := &Policy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, RetryIf: IsRetryable}

	attempts := 0
	err := Do(context.Background(), policy, func() error {
		attempts++
		return Permanent(CodeInitFailed, "corrupt artifact")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := &Policy{MaxAttempts: 3, InitialDelay: time.Minute, MaxDelay: time.Minute, Multiplier: 1, RetryIf: IsRetryable}
	err := Do(ctx, policy, func() error {
		return Temporary(CodeNetworkTimeout, "flaky")
	})
	require.Error(t, err)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{
		MaxFailures:      2,
		ResetTimeout:     time.Minute,
		HalfOpenAttempts: 1,
	})

	boom := func() error { return Temporary(CodeNetworkUnavailable, "down") }
	require.Error(t, cb.Execute(boom))
	require.Error(t, cb.Execute(boom))
	require.Equal(t, StateOpen, cb.State())

	// Calls now fail fast without invoking fn.
	invoked := false
	require.Error(t, cb.Execute(func() error { invoked = true; return nil }))
	require.False(t, invoked)

	cb.Reset()
	require.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }))
}

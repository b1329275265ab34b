package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&APIError{StatusCode: 500}))
	assert.True(t, IsTransient(&APIError{StatusCode: 503}))
	assert.True(t, IsTransient(&APIError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsTransient(context.DeadlineExceeded))

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(&APIError{StatusCode: 400}))
	assert.False(t, IsTransient(&APIError{StatusCode: 404}))
	assert.False(t, IsTransient(&ContentError{Reason: "safety filtered"}))
	assert.False(t, IsTransient(errors.New("plain error")))
}

func TestLinearBackoffDelays(t *testing.T) {
	policy := LinearBackoff(3, time.Second)
	transient := &APIError{StatusCode: 500}

	retry, delay := policy(1, transient)
	assert.True(t, retry)
	assert.Equal(t, time.Second, delay)

	retry, delay = policy(2, transient)
	assert.True(t, retry)
	assert.Equal(t, 2*time.Second, delay)

	// Third attempt is the last one.
	retry, _ = policy(3, transient)
	assert.False(t, retry)
}

func TestLinearBackoffNeverRetriesPermanentErrors(t *testing.T) {
	policy := LinearBackoff(3, time.Millisecond)

	retry, _ := policy(1, &APIError{StatusCode: 400})
	assert.False(t, retry)

	retry, _ = policy(1, &ContentError{Reason: "unparseable"})
	assert.False(t, retry)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), LinearBackoff(3, time.Millisecond), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &APIError{StatusCode: 503}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	failure := &APIError{StatusCode: 502}
	err := Do(context.Background(), LinearBackoff(3, time.Millisecond), func(ctx context.Context) error {
		calls++
		return failure
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 502, apiErr.StatusCode)
}

func TestDoStopsImmediatelyOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), LinearBackoff(3, time.Millisecond), func(ctx context.Context) error {
		calls++
		return &APIError{StatusCode: 400}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, LinearBackoff(3, time.Hour), func(ctx context.Context) error {
		calls++
		return &APIError{StatusCode: 500}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyContextErrors(t *testing.T) {
	assert.Equal(t, Retriable, Classify(context.DeadlineExceeded))
	assert.Equal(t, Retriable, Classify(context.Canceled))
}

func TestClassifyRetriableKeywords(t *testing.T) {
	assert.Equal(t, Retriable, Classify(errors.New("dial tcp: connection refused")))
	assert.Equal(t, Retriable, Classify(errors.New("rate limit exceeded")))
	assert.Equal(t, Retriable, Classify(errors.New("server temporarily unavailable")))
}

func TestClassifyNonRetriableKeywords(t *testing.T) {
	assert.Equal(t, NonRetriable, Classify(errors.New("open /etc/shadow: permission denied")))
	assert.Equal(t, NonRetriable, Classify(errors.New("deployments.apps \"forecast-api\" not found")))
	assert.Equal(t, NonRetriable, Classify(errors.New("invalid bearer token")))
}

func TestClassifyPriority(t *testing.T) {
	// When both kinds of keywords appear, the permanent reading wins.
	err := errors.New("connection rejected: unauthorized")
	assert.Equal(t, NonRetriable, Classify(err))
}

func TestClassifyUnknown(t *testing.T) {
	assert.Equal(t, Unknown, Classify(errors.New("some weird failure")))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "RETRIABLE", Retriable.String())
	assert.Equal(t, "NON_RETRIABLE", NonRetriable.String())
	assert.Equal(t, "UNKNOWN", Unknown.String())
}

func TestPermanentWrapping(t *testing.T) {
	base := errors.New("boom")
	wrapped := Permanent(base)
	assert.True(t, IsPermanent(wrapped))
	assert.True(t, errors.Is(wrapped, base))
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoSucceedsOnThird(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("still settling")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 4, time.Millisecond, func(ctx context.Context) error {
		calls++
		return errors.New("still broken")
	})
	assert.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		calls++
		return Permanent(errors.New("no backups to validate against"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "a permanent error must not be retried")
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, 100, time.Second, func(ctx context.Context) error {
		calls++
		return errors.New("still broken")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "the interval wait must notice context expiry")
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), 0, time.Millisecond, func(ctx context.Context) error {
		calls++
		return errors.New("x")
	})
	assert.Equal(t, 1, calls)
}

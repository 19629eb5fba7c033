package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestRetryPolicyDo(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Delay: 200 * time.Millisecond}

	t.Run("first attempt succeeds", func(t *testing.T) {
		s := &recordingSleeper{}
		calls := 0
		err := policy.Do(context.Background(), s.sleep, func(int) error {
			calls++
			return nil
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, s.waits)
	})

	t.Run("single retry after delay", func(t *testing.T) {
		s := &recordingSleeper{}
		var retried []int
		err := policy.Do(context.Background(), s.sleep, func(attempt int) error {
			if attempt == 1 {
				return errors.New("flaky")
			}
			return nil
		}, func(attempt int, err error) {
			retried = append(retried, attempt)
		})

		require.NoError(t, err)
		assert.Equal(t, []int{1}, retried)
		assert.Equal(t, []time.Duration{200 * time.Millisecond}, s.waits)
	})

	t.Run("returns the last error once exhausted", func(t *testing.T) {
		s := &recordingSleeper{}
		calls := 0
		err := policy.Do(context.Background(), s.sleep, func(attempt int) error {
			calls++
			return errors.New("attempt " + string(rune('0'+attempt)))
		}, nil)

		require.EqualError(t, err, "attempt 2")
		assert.Equal(t, 2, calls)
		assert.Len(t, s.waits, 1)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{}.Do(context.Background(), nil, func(int) error {
			calls++
			return errors.New("boom")
		}, nil)

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := RetryPolicy{MaxAttempts: 3, Delay: time.Hour}.Do(ctx, Sleep, func(int) error {
			calls++
			return errors.New("boom")
		}, nil)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestPrivateKey(t *testing.T) {
	const anvilKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	key, err := ParsePrivateKey("  0x" + anvilKey + "\n")
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", AddressFromKey(key).Hex())

	_, err = ParsePrivateKey("not-a-key")
	assert.Error(t, err)
}

package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/lumina/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("success on first try", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			return nil
		}, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("eventual success", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			if attempts < 3 {
				return core.ErrEmbeddingUnavailable
			}
			return nil
		}, 5, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("returns last error", func(t *testing.T) {
		attempts := 0
		expected := errors.New("persistent error")
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			return expected
		}, 3, time.Millisecond)
		assert.Equal(t, expected, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		for _, sentinel := range []error{core.ErrConfiguration, core.ErrDimensionMismatch} {
			attempts := 0
			err := RetryWithBackoff(ctx, func() error {
				attempts++
				return fmt.Errorf("%w: bad model", sentinel)
			}, 5, time.Millisecond)
			assert.ErrorIs(t, err, sentinel)
			assert.Equal(t, 1, attempts)
		}
	})

	t.Run("context cancelled between attempts", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		attempts := 0
		err := RetryWithBackoff(cctx, func() error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("error")
		}, 10, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})

	t.Run("context deadline during backoff", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err := RetryWithBackoff(cctx, func() error {
			return errors.New("error")
		}, 10, time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("delays grow", func(t *testing.T) {
		attempts := 0
		var delays []time.Duration
		last := time.Now()
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			if attempts > 1 {
				delays = append(delays, time.Since(last))
			}
			last = time.Now()
			if attempts < 4 {
				return errors.New("error")
			}
			return nil
		}, 5, 10*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, delays, 3)
		assert.GreaterOrEqual(t, delays[0], 10*time.Millisecond)
		assert.GreaterOrEqual(t, delays[1], 20*time.Millisecond)
		assert.GreaterOrEqual(t, delays[2], 40*time.Millisecond)
	})

	t.Run("invalid max attempts", func(t *testing.T) {
		for _, n := range []int{0, -1} {
			attempts := 0
			err := RetryWithBackoff(ctx, func() error {
				attempts++
				return nil
			}, n, time.Millisecond)
			assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
			assert.Zero(t, attempts)
		}
	})
}

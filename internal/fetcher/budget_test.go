package fetcher

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBudget(t *testing.T) {
	fixedNow := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	newBudget := func(remaining int, reset time.Time) *RequestBudget {
		b := NewRequestBudget()
		b.now = func() time.Time { return fixedNow }
		b.remaining = remaining
		b.reset = reset
		return b
	}

	headers := func(kv ...string) *http.Response {
		resp := &http.Response{Header: make(http.Header)}
		for i := 0; i+1 < len(kv); i += 2 {
			resp.Header.Set(kv[i], kv[i+1])
		}
		return resp
	}

	t.Run("acquire decrements", func(t *testing.T) {
		b := newBudget(3, fixedNow.Add(time.Hour))
		require.NoError(t, b.Acquire(context.Background()))
		assert.Equal(t, 2, b.Remaining())
	})

	t.Run("headers update remaining and reset", func(t *testing.T) {
		b := newBudget(5000, fixedNow.Add(time.Hour))
		b.UpdateFromResponse(headers("X-RateLimit-Remaining", "10", "X-RateLimit-Reset", "1700000000"))
		assert.Equal(t, 10, b.Remaining())
		assert.True(t, b.ResetAt().Equal(time.Unix(1700000000, 0)))
	})

	t.Run("malformed headers ignored", func(t *testing.T) {
		b := newBudget(7, time.Unix(123, 0))
		b.UpdateFromResponse(headers("X-RateLimit-Remaining", "nope", "X-RateLimit-Reset", "soon", "Retry-After", "-1"))
		assert.Equal(t, 7, b.Remaining())
		assert.True(t, b.ResetAt().Equal(time.Unix(123, 0)))
		assert.True(t, b.cooldown.IsZero())
	})

	t.Run("retry-after keeps the longest cooldown", func(t *testing.T) {
		b := newBudget(5000, fixedNow.Add(-time.Hour))
		b.UpdateFromResponse(headers("Retry-After", "60"))
		b.UpdateFromResponse(headers("Retry-After", "10"))
		assert.True(t, b.cooldown.Equal(fixedNow.Add(60*time.Second)))
	})

	t.Run("cooldown fails acquire immediately", func(t *testing.T) {
		b := newBudget(5000, fixedNow.Add(-time.Hour))
		b.UpdateFromResponse(headers("Retry-After", "60"))

		var be *BudgetError
		require.ErrorAs(t, b.Acquire(context.Background()), &be)
		assert.True(t, be.Cooldown)
		assert.True(t, be.Until.Equal(fixedNow.Add(60*time.Second)))
		assert.Equal(t, 5000, b.Remaining())
	})

	t.Run("exhausted before reset fails immediately", func(t *testing.T) {
		reset := fixedNow.Add(time.Hour)
		b := newBudget(0, reset)

		start := time.Now()
		var be *BudgetError
		require.ErrorAs(t, b.Acquire(context.Background()), &be)
		assert.Less(t, time.Since(start), time.Second)
		assert.False(t, be.Cooldown)
		assert.True(t, be.Until.Equal(reset))
		assert.True(t, b.ResumeAt().Equal(reset))
	})

	t.Run("rolled over window lets requests through", func(t *testing.T) {
		b := newBudget(0, fixedNow.Add(-time.Second))
		require.NoError(t, b.Acquire(context.Background()))
		require.NoError(t, b.Acquire(context.Background()))
		assert.Equal(t, 0, b.Remaining())
		assert.True(t, b.ResumeAt().IsZero())
	})

	t.Run("response restores budget", func(t *testing.T) {
		b := newBudget(0, fixedNow.Add(time.Hour))
		require.Error(t, b.Acquire(context.Background()))

		b.UpdateFromResponse(headers("X-RateLimit-Remaining", "1"))
		require.NoError(t, b.Acquire(context.Background()))
		assert.True(t, b.ResumeAt().Equal(fixedNow.Add(time.Hour)))
	})

	t.Run("canceled context", func(t *testing.T) {
		b := newBudget(10, fixedNow.Add(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, b.Acquire(ctx), context.Canceled)
		assert.Equal(t, 10, b.Remaining())
	})

	t.Run("nil context rejected", func(t *testing.T) {
		b := newBudget(1, fixedNow.Add(time.Hour))
		var ctx context.Context
		assert.Error(t, b.Acquire(ctx))
	})
}

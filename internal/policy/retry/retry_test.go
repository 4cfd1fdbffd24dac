package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponential(3, 100*time.Millisecond, time.Second)
	boom := errors.New("connection reset")

	assert.False(t, p.ShouldRetry(nil, 1))
	assert.True(t, p.ShouldRetry(boom, 1))
	assert.True(t, p.ShouldRetry(boom, 2))
	assert.False(t, p.ShouldRetry(boom, 3))
	assert.False(t, p.ShouldRetry(fmt.Errorf("fetch: %w", context.Canceled), 1))
	assert.True(t, p.ShouldRetry(context.DeadlineExceeded, 1), "a per-request timeout is worth another try")
	assert.Equal(t, 3, p.MaxAttempts())
}

func TestNewExponentialDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponential(0, 0, 0)
	assert.Equal(t, 1, p.MaxAttempts())
	assert.False(t, p.ShouldRetry(errors.New("x"), 1))
	assert.Equal(t, 250*time.Millisecond, p.maxDelay)
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	p := NewExponential(5, 100*time.Millisecond, 400*time.Millisecond)
	for attempt := 1; attempt <= 5; attempt++ {
		want := 100 * time.Millisecond << (attempt - 1)
		if want > 400*time.Millisecond {
			want = 400 * time.Millisecond
		}
		for i := 0; i < 20; i++ {
			got := p.Backoff(attempt)
			assert.GreaterOrEqual(t, got, want/2, "attempt %d", attempt)
			assert.LessOrEqual(t, got, want, "attempt %d", attempt)
		}
	}
}

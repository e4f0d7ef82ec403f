package webhook_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/chatbridge/pkg/webhook"
)

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	cb := webhook.NewCircuitBreaker(2, 1, 20*time.Millisecond)
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, webhook.StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, webhook.StateOpen, cb.State())
	assert.False(t, cb.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, cb.Allow())
	assert.Equal(t, webhook.StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, webhook.StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, webhook.StateClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}
